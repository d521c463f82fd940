/*

This file contains the persisted views of the engine: the point-in-time
market snapshot written after operations, and the tunable engine parameters
stored and versioned in the database.

*/

package types

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
)

// OutcomeSnapshot captures one conditional pool's state at snapshot time.
type OutcomeSnapshot struct {
	Outcome       int         `json:"outcome"`
	AssetReserve  sdkmath.Int `json:"asset_reserve"`
	StableReserve sdkmath.Int `json:"stable_reserve"`
	Price         float64     `json:"price"`
}

// MarketSnapshot is the full persisted view of the market at a point in time.
type MarketSnapshot struct {
	SnapshotID uint64    `json:"snapshot_id,omitempty"` // Auto-incremented by DB
	OpSequence int       `json:"op_sequence"`
	Timestamp  time.Time `json:"timestamp"`
	ClockMs    uint64    `json:"clock_ms"`

	// Spot pool
	AssetReserve       sdkmath.Int `json:"asset_reserve"`
	StableReserve      sdkmath.Int `json:"stable_reserve"`
	LPSupply           sdkmath.Int `json:"lp_supply"`
	SpotPrice          float64     `json:"spot_price"`
	SpotFeeBps         uint64      `json:"spot_fee_bps"`
	ProtocolFeesAsset  sdkmath.Int `json:"protocol_fees_asset"`
	ProtocolFeesStable sdkmath.Int `json:"protocol_fees_stable"`

	// Conditional market, present while a proposal is live
	ActiveProposalID *uint64           `json:"active_proposal_id,omitempty"`
	Outcomes         []OutcomeSnapshot `json:"outcomes,omitempty"`
	EscrowedAsset    sdkmath.Int       `json:"escrowed_asset"`
	EscrowedStable   sdkmath.Int       `json:"escrowed_stable"`
	Dust             *DustBalance      `json:"dust,omitempty"`
}

// EngineParameters holds every tunable the market engine consumes. Versioned
// sets live in the database; the active set is loaded at startup.
type EngineParameters struct {
	// --- Fees ---
	SpotFeeBps          uint64 `json:"spot_fee_bps"`           // Steady-state spot swap fee.
	ConditionalFeeBps   uint64 `json:"conditional_fee_bps"`    // Fixed fee for conditional pools.
	LaunchFeeBps        uint64 `json:"launch_fee_bps"`         // Initial fee the decay schedule starts from.
	FeeDecayDurationMs  uint64 `json:"fee_decay_duration_ms"`  // Linear decay window from launch to steady state.
	ProtocolFeeShareBps uint64 `json:"protocol_fee_share_bps"` // Share of each fee routed to the protocol accumulator.

	// --- Conditional markets ---
	LiquidityRatioPercent uint64 `json:"liquidity_ratio_percent"` // Percent of spot reserves locked per proposal.
	NoArbBandBps          uint64 `json:"no_arb_band_bps"`         // Tolerated spot vs conditional price divergence after auto-arbitrage.
	MinArbProfit          int64  `json:"min_arb_profit"`          // Smallest stable-denominated profit worth executing.
	ProposalCooldownMs    uint64 `json:"proposal_cooldown_ms"`    // Mandatory gap between consecutive proposals.

	// --- Oracle ---
	TwapWindowMs      uint64 `json:"twap_window_ms"`       // Short averaging window.
	LongWindowPeriods int    `json:"long_window_periods"`  // Observation count for the long average.
	MinOracleWindowMs uint64 `json:"min_oracle_window_ms"` // History required before the oracle is usable.

	// --- Pool floors ---
	MinLiquidity int64 `json:"min_liquidity"` // Reserve-product floor; also the share amount burned at pool creation.
}

// Validate checks the parameter set for internally consistent values.
func (p EngineParameters) Validate() error {
	if p.SpotFeeBps >= BpsDenom || p.ConditionalFeeBps >= BpsDenom {
		return fmt.Errorf("swap fees must be below %d bps", BpsDenom)
	}
	if p.LaunchFeeBps > MaxScheduleFeeBps {
		return fmt.Errorf("launch fee %d bps exceeds maximum %d", p.LaunchFeeBps, MaxScheduleFeeBps)
	}
	if p.FeeDecayDurationMs > MaxScheduleDurationMs {
		return fmt.Errorf("fee decay duration %d ms exceeds maximum %d", p.FeeDecayDurationMs, MaxScheduleDurationMs)
	}
	if p.ProtocolFeeShareBps > BpsDenom {
		return fmt.Errorf("protocol fee share %d bps exceeds %d", p.ProtocolFeeShareBps, BpsDenom)
	}
	if p.LiquidityRatioPercent == 0 || p.LiquidityRatioPercent >= 100 {
		return fmt.Errorf("liquidity ratio %d%% must be within (0, 100)", p.LiquidityRatioPercent)
	}
	if p.NoArbBandBps == 0 {
		return fmt.Errorf("no-arbitrage band cannot be zero")
	}
	if p.MinArbProfit < 0 {
		return fmt.Errorf("minimum arbitrage profit cannot be negative")
	}
	if p.TwapWindowMs == 0 || p.MinOracleWindowMs == 0 {
		return fmt.Errorf("oracle windows must be positive")
	}
	if p.LongWindowPeriods <= 0 {
		return fmt.Errorf("long window periods must be positive")
	}
	if p.MinLiquidity <= 0 {
		return fmt.Errorf("minimum liquidity must be positive")
	}
	return nil
}
