/*

This file contains the default engine parameters.

These values are used when no active parameter set exists in the database at
startup. They are calibrated for a mid-cap DAO treasury where proposal
markets should move real capital without letting one proposal dominate the
spot book.

*/

package config

import (
	"github.com/futarchylabs/famm/internal/types"
)

// DefaultEngineParameters provides a baseline parameter set for the market engine.
// These values are used if no active parameters are found in the database during initialization.
var DefaultEngineParameters = types.EngineParameters{
	// --- Fees ---
	SpotFeeBps: 30, // 0.30% steady-state spot fee.
	// Rationale: The standard constant-product fee. Deep enough to pay LPs,
	// thin enough that the auto-arbitrage loop stays profitable on modest gaps.

	ConditionalFeeBps: 100, // 1.00% fee inside outcome pools.
	// Rationale: Conditional pools are shallower than spot by construction,
	// so a higher fee compensates LP exposure to outcome risk and slows
	// low-information churn during the trading phase.

	LaunchFeeBps: 500, // 5.00% launch fee decaying to the steady-state fee.
	// Rationale: Snipers target the first blocks after a pool opens, before
	// the oracle has history. A high opening fee makes that unprofitable and
	// decays away once organic price discovery has happened.

	FeeDecayDurationMs: 3_600_000, // Decay over one hour.
	// Rationale: Long enough to cover the chaotic opening window, short
	// enough that steady-state trading is not taxed.

	ProtocolFeeShareBps: 1_000, // 10% of each fee to the protocol accumulator.
	// Rationale: Funds engine operations without materially diluting LP
	// returns. The remaining 90% compounds into the reserves.

	// --- Conditional markets ---
	LiquidityRatioPercent: 20, // Lock 20% of spot reserves per proposal.
	// Rationale: Enough depth for conditional prices to be informative while
	// keeping the spot book tradable. Above ~30% the spot pool thins out and
	// the no-arbitrage loop starts moving spot price too easily.

	NoArbBandBps: 100, // Tolerate 1% spot vs conditional divergence.
	// Rationale: Fees and integer truncation leave a residual gap that no
	// finite trade can close. 1% comfortably covers the fee-induced band at
	// the default fee levels; a tighter band would reject honest swaps.

	MinArbProfit: 1_000, // Ignore opportunities below 1000 stable units.
	// Rationale: Sub-dust arbitrage churns the pools and the snapshot log
	// for no economic effect.

	ProposalCooldownMs: 86_400_000, // One day between proposals.
	// Rationale: The spot oracle needs uncontaminated history between
	// proposals so the next initialization price reflects open trading.

	// --- Oracle ---
	TwapWindowMs: 600_000, // 10-minute short averaging window.
	// Rationale: Short enough to track the market, long enough that a single
	// block of trades cannot drag the average.

	LongWindowPeriods: 48, // Checkpoints retained for the long average.
	// Rationale: Covers a sustained manipulation attempt; initialization
	// prices come from this window, which is the most attack-sensitive read.

	MinOracleWindowMs: 1_800_000, // 30 minutes of history before readiness.
	// Rationale: Proposal markets must not open against a price the pool has
	// only held for seconds.

	// --- Pool floors ---
	MinLiquidity: 1_000, // Reserve-product floor and creation burn.
	// Rationale: The classic first-deposit burn keeps anyone from owning the
	// entire LP supply, and the matching floor keeps swaps from draining a
	// pool to the point where integer math degenerates.
}
