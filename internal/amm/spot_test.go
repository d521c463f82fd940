package amm

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/futarchylabs/famm/internal/types"
)

func newTestPool(t *testing.T, feeBps uint64, minLiquidity int64) *SpotPool {
	t.Helper()
	pool, err := NewSpotPool(SpotPoolConfig{
		FeeBps:                feeBps,
		MinLiquidity:          sdkmath.NewInt(minLiquidity),
		LiquidityRatioPercent: 20,
		ProtocolFeeShareBps:   0,
		ProposalCooldownMs:    10_000,
		OracleMinWindowMs:     100,
		OracleLongPeriods:     4,
	})
	require.NoError(t, err)
	return pool
}

func TestSwapOutputMath(t *testing.T) {
	require := require.New(t)

	// No fee: out = 1000*500/(1000+500) = 333.
	out, fee, err := SwapOutput(sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.NewInt(500), 0)
	require.NoError(err)
	require.True(fee.IsZero())
	require.Equal(int64(333), out.Int64())

	// 30 bps fee on 100000 input retains 300.
	_, fee, err = SwapOutput(sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_000_000), sdkmath.NewInt(100_000), 30)
	require.NoError(err)
	require.Equal(int64(300), fee.Int64())

	_, _, err = SwapOutput(sdkmath.NewInt(1000), sdkmath.NewInt(1000), sdkmath.ZeroInt(), 0)
	require.ErrorIs(err, types.ErrZeroAmount)

	_, _, err = SwapOutput(sdkmath.ZeroInt(), sdkmath.NewInt(1000), sdkmath.NewInt(10), 0)
	require.ErrorIs(err, types.ErrInsufficientLiquidity)
}

func TestIntSqrt(t *testing.T) {
	require := require.New(t)

	require.Equal(int64(0), IntSqrt(sdkmath.ZeroInt()).Int64())
	require.Equal(int64(2_000_000), IntSqrt(sdkmath.NewInt(4_000_000_000_000)).Int64())
	require.Equal(int64(3), IntSqrt(sdkmath.NewInt(15)).Int64())
}

func TestFirstDepositMintsSqrtMinusMinimum(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	receipt, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	// sqrt(1e6 * 4e6) = 2e6 total, minus the 1000 burned shares.
	require.Equal(int64(1_999_000), receipt.LPMinted.Int64())
	require.Equal(int64(2_000_000), pool.LPSupply.Int64())
	require.True(receipt.AssetRefund.IsZero())
	require.True(receipt.StableRefund.IsZero())
}

func TestFirstDepositTooSmall(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(10), sdkmath.NewInt(10), sdkmath.ZeroInt())
	require.ErrorIs(err, types.ErrBelowMinimumLiquidity)
	require.True(pool.LPSupply.IsZero())
}

func TestProportionalDepositRefundsExcess(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	// The pool holds 4 stable per asset; offering 10 per asset refunds 6.
	receipt, err := pool.AddLiquidity(sdkmath.NewInt(100_000), sdkmath.NewInt(1_000_000), sdkmath.ZeroInt())
	require.NoError(err)
	require.Equal(int64(200_000), receipt.LPMinted.Int64())
	require.Equal(int64(100_000), receipt.AssetUsed.Int64())
	require.Equal(int64(400_000), receipt.StableUsed.Int64())
	require.True(receipt.AssetRefund.IsZero())
	require.Equal(int64(600_000), receipt.StableRefund.Int64())
}

func TestSwapPreservesProduct(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	kBefore := pool.AssetReserve.Mul(pool.StableReserve)
	out, err := pool.Swap(types.TokenStable, sdkmath.NewInt(100_000), sdkmath.ZeroInt(), 1000)
	require.NoError(err)
	require.True(out.IsPositive())

	kAfter := pool.AssetReserve.Mul(pool.StableReserve)
	require.True(kAfter.GTE(kBefore), "constant product decreased: %s -> %s", kBefore, kAfter)
}

func TestSwapSlippageGuard(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	assetBefore, stableBefore := pool.AssetReserve, pool.StableReserve
	_, err = pool.Swap(types.TokenStable, sdkmath.NewInt(100_000), sdkmath.NewInt(10_000_000), 1000)
	require.ErrorIs(err, types.ErrSlippageExceeded)
	require.True(pool.AssetReserve.Equal(assetBefore))
	require.True(pool.StableReserve.Equal(stableBefore))
}

func TestSwapOnEmptyPoolFails(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.Swap(types.TokenAsset, sdkmath.NewInt(1000), sdkmath.ZeroInt(), 0)
	require.ErrorIs(err, types.ErrInsufficientLiquidity)
}

func TestSwapAccruesProtocolFees(t *testing.T) {
	require := require.New(t)
	pool, err := NewSpotPool(SpotPoolConfig{
		FeeBps:                30,
		MinLiquidity:          sdkmath.NewInt(1000),
		LiquidityRatioPercent: 20,
		ProtocolFeeShareBps:   5000,
		ProposalCooldownMs:    10_000,
		OracleMinWindowMs:     100,
		OracleLongPeriods:     4,
	})
	require.NoError(err)

	_, err = pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	// Fee on 100000 at 30 bps is 300; half goes to the protocol.
	_, err = pool.Swap(types.TokenStable, sdkmath.NewInt(100_000), sdkmath.ZeroInt(), 1000)
	require.NoError(err)
	require.Equal(int64(150), pool.Aggregator.ProtocolFeesStable.Int64())
	require.True(pool.Aggregator.ProtocolFeesAsset.IsZero())
}

func TestSwapObservesOracle(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	require.False(pool.Oracle().Initialized())
	_, err = pool.Swap(types.TokenStable, sdkmath.NewInt(100_000), sdkmath.ZeroInt(), 1000)
	require.NoError(err)
	require.True(pool.Oracle().Initialized())

	// The observation carries the pre-trade price of 4.
	require.True(pool.Oracle().LastPrice.Equal(sdkmath.LegacyNewDec(4)))
}

func TestScheduledFeeAppliesDuringDecay(t *testing.T) {
	require := require.New(t)
	pool, err := NewSpotPool(SpotPoolConfig{
		FeeBps:       30,
		MinLiquidity: sdkmath.NewInt(1000),
		Schedule:     &types.FeeSchedule{InitialFeeBps: 500, DurationMs: 1000},
		FeeStartedAt: 0,

		LiquidityRatioPercent: 20,
		ProposalCooldownMs:    10_000,
		OracleMinWindowMs:     100,
		OracleLongPeriods:     4,
	})
	require.NoError(err)

	require.Equal(uint64(500), pool.CurrentFeeBps(0))
	require.Equal(uint64(30), pool.CurrentFeeBps(1000))
}

func TestRemoveLiquidityProportional(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	assetOut, stableOut, err := pool.RemoveLiquidity(sdkmath.NewInt(200_000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.NoError(err)
	require.Equal(int64(100_000), assetOut.Int64())
	require.Equal(int64(400_000), stableOut.Int64())
	require.Equal(int64(1_800_000), pool.LPSupply.Int64())
}

func TestRemoveLiquidityFloorViolationLeavesPoolUnchanged(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	// A lopsided pool where a full withdrawal leaves the asset side at dust.
	_, err := pool.AddLiquidity(sdkmath.NewInt(100), sdkmath.NewInt(100_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	assetBefore, stableBefore := pool.AssetReserve, pool.StableReserve
	lpBefore := pool.LPSupply

	_, _, err = pool.RemoveLiquidity(sdkmath.NewInt(99_000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(err, types.ErrBelowMinimumLiquidity)

	require.True(pool.AssetReserve.Equal(assetBefore))
	require.True(pool.StableReserve.Equal(stableBefore))
	require.True(pool.LPSupply.Equal(lpBefore))
}

func TestProposalLifecycleOnPool(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	ctx := &types.ProposalContext{ProposalID: 7, OutcomeCount: 2, InitPrice: sdkmath.LegacyNewDec(4)}
	require.NoError(pool.MarkLiquidityToProposal(ctx, 1000))
	require.True(pool.ProposalActive())
	require.Equal(uint64(20), ctx.LiquidityRatioPercent)

	// Liquidity operations are frozen while the proposal is live.
	_, err = pool.AddLiquidity(sdkmath.NewInt(1000), sdkmath.NewInt(4000), sdkmath.ZeroInt())
	require.ErrorIs(err, types.ErrProposalActive)
	_, _, err = pool.RemoveLiquidity(sdkmath.NewInt(1000), sdkmath.ZeroInt(), sdkmath.ZeroInt())
	require.ErrorIs(err, types.ErrProposalActive)

	// A second proposal cannot attach.
	require.ErrorIs(pool.MarkLiquidityToProposal(&types.ProposalContext{ProposalID: 8}, 1000), types.ErrProposalActive)

	lockedAsset, lockedStable, err := pool.LockConditionalLiquidity()
	require.NoError(err)
	require.Equal(int64(200_000), lockedAsset.Int64())
	require.Equal(int64(800_000), lockedStable.Int64())
	require.Equal(int64(800_000), pool.AssetReserve.Int64())
	require.Equal(int64(3_200_000), pool.StableReserve.Int64())

	pool.ReturnLiquidity(lockedAsset, lockedStable)
	require.Equal(int64(1_000_000), pool.AssetReserve.Int64())

	require.NoError(pool.ClearProposal(5000))
	require.False(pool.ProposalActive())

	// The cool-down blocks the next proposal until it elapses.
	require.ErrorIs(pool.CheckProposalGap(6000), types.ErrCooldownNotElapsed)
	require.NoError(pool.CheckProposalGap(15_000))
}

func TestCloneIsolation(t *testing.T) {
	require := require.New(t)
	pool := newTestPool(t, 30, 1000)

	_, err := pool.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(4_000_000), sdkmath.ZeroInt())
	require.NoError(err)

	cp := pool.Clone()
	_, err = cp.Swap(types.TokenStable, sdkmath.NewInt(500_000), sdkmath.ZeroInt(), 1000)
	require.NoError(err)

	require.Equal(int64(1_000_000), pool.AssetReserve.Int64())
	require.Equal(int64(4_000_000), pool.StableReserve.Int64())
	require.False(pool.Oracle().Initialized())
	require.True(cp.Oracle().Initialized())
}
