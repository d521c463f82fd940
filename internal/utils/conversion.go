/*
This file contains common utility functions for converting between SDK math
types, basis points, and the float64 views used by snapshots and the web
layer. Nothing in the market path itself uses float64.
*/

package utils

import (
	"errors"
	"fmt"
	"math"

	sdkmath "cosmossdk.io/math"
)

// Error definitions for zero-tolerance error handling
var (
	ErrAmountNil      = errors.New("amount is nil")
	ErrAmountNegative = errors.New("amount is negative")
	ErrNotFinite      = errors.New("value is not finite")
)

// BpsToDec converts a basis-point value to its decimal fraction.
func BpsToDec(bps uint64) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(int64(bps)).QuoInt64(10_000)
}

// SDKIntToFloat64 converts an SDK Int to float64 for display purposes.
func SDKIntToFloat64(amount sdkmath.Int) (float64, error) {
	if amount.IsNil() {
		return 0, ErrAmountNil
	}
	if amount.IsNegative() {
		return 0, ErrAmountNegative
	}
	result, err := sdkmath.LegacyNewDecFromInt(amount).Float64()
	if err != nil {
		return 0, fmt.Errorf("conversion failed: %w", err)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: result is %f", ErrNotFinite, result)
	}
	return result, nil
}

// DecToFloat64 converts a LegacyDec to float64 for display purposes, falling
// back to 0 on non-finite results.
func DecToFloat64(d sdkmath.LegacyDec) float64 {
	if d.IsNil() {
		return 0
	}
	f, err := d.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
