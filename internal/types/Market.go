/*

This file contains the shared market primitives: the token side enum, the
time-decaying fee schedule, and the per-proposal context attached to the spot
pool while a conditional market is live.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

const (
	// BpsDenom is the basis-point denominator used for every fee and ratio.
	BpsDenom = 10_000

	// MaxScheduleFeeBps is the highest launch fee a schedule may start from.
	MaxScheduleFeeBps = 9_900

	// MaxScheduleDurationMs caps fee decay at 24 hours.
	MaxScheduleDurationMs = 86_400_000
)

// Token identifies one side of a pool's reserve pair.
type Token int

const (
	TokenAsset Token = iota
	TokenStable
)

// Other returns the opposite side of the pair.
func (t Token) Other() Token {
	if t == TokenAsset {
		return TokenStable
	}
	return TokenAsset
}

func (t Token) String() string {
	if t == TokenAsset {
		return "asset"
	}
	return "stable"
}

// FeeSchedule describes a fee that decays linearly from InitialFeeBps at
// activation down to the pool's steady-state fee over DurationMs.
type FeeSchedule struct {
	InitialFeeBps uint64 `json:"initial_fee_bps"`
	DurationMs    uint64 `json:"duration_ms"`
}

// Validate enforces the documented input bounds for a schedule.
func (fs FeeSchedule) Validate() error {
	if fs.InitialFeeBps > MaxScheduleFeeBps {
		return fmt.Errorf("initial fee %d bps exceeds maximum %d", fs.InitialFeeBps, MaxScheduleFeeBps)
	}
	if fs.DurationMs > MaxScheduleDurationMs {
		return fmt.Errorf("decay duration %d ms exceeds maximum %d", fs.DurationMs, MaxScheduleDurationMs)
	}
	return nil
}

// ProposalContext is the per-proposal record the spot pool carries while a
// conditional market is live. The spot pool owns it; at most one may be
// attached at a time (nil means no proposal is active).
type ProposalContext struct {
	ProposalID            uint64             `json:"proposal_id"`
	OutcomeCount          int                `json:"outcome_count"`
	LiquidityRatioPercent uint64             `json:"liquidity_ratio_percent"`
	StartedAt             uint64             `json:"started_at"`
	CumulativeAtStart     sdkmath.LegacyDec  `json:"cumulative_at_start"`
	InitPrice             sdkmath.LegacyDec  `json:"init_price"`
}
