/*

This file contains the constant-product math shared by the spot and
conditional pools. All arithmetic uses SDK integers; division truncates in
the pool's favor.

*/

package amm

import (
	"math/big"

	sdkmath "cosmossdk.io/math"

	"github.com/futarchylabs/famm/internal/types"
)

// SwapOutput computes the constant-product output for amountIn against the
// given reserves with feeBps deducted from the input. Returns the output and
// the fee amount retained from the input.
func SwapOutput(reserveIn, reserveOut, amountIn sdkmath.Int, feeBps uint64) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if !amountIn.IsPositive() {
		return zero, zero, types.ErrZeroAmount
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return zero, zero, types.ErrInsufficientLiquidity
	}

	fee := amountIn.MulRaw(int64(feeBps)).QuoRaw(types.BpsDenom)
	inAfterFee := amountIn.Sub(fee)
	if !inAfterFee.IsPositive() {
		return zero, zero, types.ErrZeroAmount
	}

	out := reserveOut.Mul(inAfterFee).Quo(reserveIn.Add(inAfterFee))
	if out.GTE(reserveOut) {
		return zero, zero, types.ErrInsufficientLiquidity
	}
	return out, fee, nil
}

// IntSqrt returns floor(sqrt(v)) for a non-negative SDK integer.
func IntSqrt(v sdkmath.Int) sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Sqrt(v.BigInt()))
}

// SpotPrice returns the marginal price stable/asset, or zero for an empty
// asset reserve.
func SpotPrice(assetReserve, stableReserve sdkmath.Int) sdkmath.LegacyDec {
	if !assetReserve.IsPositive() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromInt(stableReserve).Quo(sdkmath.LegacyNewDecFromInt(assetReserve))
}
