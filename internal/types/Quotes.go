/*

This file contains the computed swap views returned to callers: the read-only
SwapQuote, the settled SwapResult, and the incomplete-set dust balance that
repeated callers may accumulate across swaps.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// SwapQuote is a read-only view of what a swap would do right now. It is
// computed from current reserves and never persisted.
type SwapQuote struct {
	AmountIn          sdkmath.Int `json:"amount_in"`
	DirectOutput      sdkmath.Int `json:"direct_output"`
	OptimalArbAmount  sdkmath.Int `json:"optimal_arb_amount"`
	ExpectedArbProfit sdkmath.Int `json:"expected_arb_profit"`
	ArbAvailable      bool        `json:"arb_available"`
}

// SwapResult is the settled outcome of a routed swap. AmountOut is the
// caller's net output including any arbitrage profit, which settles in
// stable and is converted into the requested token when needed; ArbProfit
// reports the stable-denominated profit before that conversion.
type SwapResult struct {
	AmountOut   sdkmath.Int  `json:"amount_out"`
	FeeBpsPaid  uint64       `json:"fee_bps_paid"`
	ArbExecuted bool         `json:"arb_executed"`
	ArbProfit   sdkmath.Int  `json:"arb_profit"`
	Dust        *DustBalance `json:"dust,omitempty"`
}

// DustBalance holds per-outcome conditional token remainders left over when
// an arbitrage burns the minimum complete set across outcomes. Callers that
// swap repeatedly (e.g. a recurring bot) can merge dust across calls and
// redeem it as a complete set once every outcome's balance lines up.
type DustBalance struct {
	Asset  []sdkmath.Int `json:"asset"`
	Stable []sdkmath.Int `json:"stable"`
}

// NewDustBalance returns an empty dust balance for n outcomes.
func NewDustBalance(n int) *DustBalance {
	d := &DustBalance{
		Asset:  make([]sdkmath.Int, n),
		Stable: make([]sdkmath.Int, n),
	}
	for i := 0; i < n; i++ {
		d.Asset[i] = sdkmath.ZeroInt()
		d.Stable[i] = sdkmath.ZeroInt()
	}
	return d
}

// OutcomeCount returns the number of outcomes this balance tracks.
func (d *DustBalance) OutcomeCount() int {
	return len(d.Asset)
}

// Merge adds other's balances into d. Outcome counts must match.
func (d *DustBalance) Merge(other *DustBalance) error {
	if other == nil {
		return nil
	}
	if other.OutcomeCount() != d.OutcomeCount() {
		return fmt.Errorf("%w: have %d, merging %d", ErrOutcomeMismatch, d.OutcomeCount(), other.OutcomeCount())
	}
	for i := range d.Asset {
		d.Asset[i] = d.Asset[i].Add(other.Asset[i])
		d.Stable[i] = d.Stable[i].Add(other.Stable[i])
	}
	return nil
}

// Clone returns a deep copy.
func (d *DustBalance) Clone() *DustBalance {
	if d == nil {
		return nil
	}
	cp := NewDustBalance(d.OutcomeCount())
	copy(cp.Asset, d.Asset)
	copy(cp.Stable, d.Stable)
	return cp
}

// IsZero reports whether every tracked balance is zero.
func (d *DustBalance) IsZero() bool {
	for i := range d.Asset {
		if !d.Asset[i].IsZero() || !d.Stable[i].IsZero() {
			return false
		}
	}
	return true
}
