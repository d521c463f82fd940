/*

This file contains the market engine: the single-writer facade over the spot
pool, the conditional market, the escrow ledger, and the swap router. All
public operations serialize on one mutex and take caller-supplied monotonic
millisecond clocks; the engine never reads a system clock on the market path.

Opening and finalizing a proposal market are staged on deep clones and
committed only when every step succeeds, mirroring the router's unit of work.

*/

package engine

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/futarchylabs/famm/internal/amm"
	"github.com/futarchylabs/famm/internal/conditional"
	"github.com/futarchylabs/famm/internal/logger"
	"github.com/futarchylabs/famm/internal/router"
	"github.com/futarchylabs/famm/internal/types"
	"github.com/futarchylabs/famm/internal/utils"
)

// Market owns one asset/stable venue: its spot pool and, while a proposal is
// live, the conditional market attached to it.
type Market struct {
	ID uuid.UUID

	mu     sync.Mutex
	params types.EngineParameters

	spot   *amm.SpotPool
	set    *conditional.Set
	ledger *conditional.Ledger
	exec   *router.Executor

	proposal types.ProposalReader

	log zerolog.Logger
}

// NewMarket creates an empty market. The fee schedule starts decaying from
// the launch fee at `now`.
func NewMarket(params types.EngineParameters, now uint64) (*Market, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine parameters: %w", err)
	}

	var schedule *types.FeeSchedule
	if params.LaunchFeeBps > params.SpotFeeBps && params.FeeDecayDurationMs > 0 {
		schedule = &types.FeeSchedule{
			InitialFeeBps: params.LaunchFeeBps,
			DurationMs:    params.FeeDecayDurationMs,
		}
	}

	spot, err := amm.NewSpotPool(amm.SpotPoolConfig{
		FeeBps:                params.SpotFeeBps,
		MinLiquidity:          sdkmath.NewInt(params.MinLiquidity),
		Schedule:              schedule,
		FeeStartedAt:          now,
		LiquidityRatioPercent: params.LiquidityRatioPercent,
		ProtocolFeeShareBps:   params.ProtocolFeeShareBps,
		ProposalCooldownMs:    params.ProposalCooldownMs,
		OracleMinWindowMs:     params.MinOracleWindowMs,
		OracleLongPeriods:     params.LongWindowPeriods,
	})
	if err != nil {
		return nil, err
	}

	m := &Market{
		ID:     uuid.New(),
		params: params,
		spot:   spot,
		log:    logger.GetForComponent("engine"),
	}
	m.exec = router.NewExecutor(m.spot, nil, nil, params.NoArbBandBps, sdkmath.NewInt(params.MinArbProfit))
	m.log.Info().Str("market_id", m.ID.String()).Msg("market created")
	return m, nil
}

// Params returns the parameter set the market was built with.
func (m *Market) Params() types.EngineParameters {
	return m.params
}

// ProposalActive reports whether a conditional market is currently attached.
func (m *Market) ProposalActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set != nil
}

// SpotPrice returns the current marginal spot price.
func (m *Market) SpotPrice() sdkmath.LegacyDec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spot.Price()
}

// AddLiquidity deposits into the spot pool and mints LP shares.
func (m *Market) AddLiquidity(assetIn, stableIn, minLPOut sdkmath.Int, now uint64) (*amm.LiquidityReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	receipt, err := m.spot.AddLiquidity(assetIn, stableIn, minLPOut)
	if err != nil {
		return nil, err
	}
	// The first deposit establishes the price; later deposits keep it, so the
	// observation is a no-op price-wise but extends oracle history.
	if o := m.spot.Oracle(); o != nil {
		o.Observe(m.spot.Price(), now)
	}
	m.log.Info().
		Str("lp_minted", receipt.LPMinted.String()).
		Str("asset_used", receipt.AssetUsed.String()).
		Str("stable_used", receipt.StableUsed.String()).
		Msg("liquidity added")
	return receipt, nil
}

// RemoveLiquidity burns LP shares for a proportional share of reserves.
func (m *Market) RemoveLiquidity(lpIn, minAssetOut, minStableOut sdkmath.Int, now uint64) (sdkmath.Int, sdkmath.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	assetOut, stableOut, err := m.spot.RemoveLiquidity(lpIn, minAssetOut, minStableOut)
	if err != nil {
		return assetOut, stableOut, err
	}
	if o := m.spot.Oracle(); o != nil {
		o.Observe(m.spot.Price(), now)
	}
	m.log.Info().
		Str("lp_burned", lpIn.String()).
		Str("asset_out", assetOut.String()).
		Str("stable_out", stableOut.String()).
		Msg("liquidity removed")
	return assetOut, stableOut, nil
}

// Swap routes a trade through the executor, including any auto-arbitrage.
func (m *Market) Swap(tokenIn types.Token, amountIn, minOut sdkmath.Int, now uint64) (*types.SwapResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exec.Swap(tokenIn, amountIn, minOut, now)
}

// QuoteSwap previews a routed trade without mutating state.
func (m *Market) QuoteSwap(tokenIn types.Token, amountIn sdkmath.Int, now uint64) (*types.SwapQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exec.Quote(tokenIn, amountIn, now)
}

// OpenProposalMarket locks the configured share of spot reserves, mints
// complete conditional sets against it, and seeds one outcome pool per
// outcome. The whole sequence is staged on clones and committed atomically.
func (m *Market) OpenProposalMarket(p types.ProposalReader, now uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p == nil {
		return types.ErrNoActiveProposal
	}
	if m.set != nil {
		return types.ErrProposalActive
	}
	if !p.UsesDAOLiquidity() {
		m.log.Info().Uint64("proposal_id", p.ProposalID()).Msg("proposal does not use DAO liquidity, no market opened")
		return nil
	}
	if !p.InTradingPhase() {
		return fmt.Errorf("proposal %d is not in its trading phase", p.ProposalID())
	}
	if err := m.spot.CheckProposalGap(now); err != nil {
		return err
	}

	o := m.spot.Oracle()
	if o == nil || !o.Ready(now) {
		return types.ErrOracleNotReady
	}
	initPrice, err := o.LongAverage(m.params.TwapWindowMs, now)
	if err != nil {
		return err
	}

	spotC := m.spot.Clone()
	ctx := &types.ProposalContext{
		ProposalID:   p.ProposalID(),
		OutcomeCount: p.OutcomeCount(),
		InitPrice:    initPrice,
	}
	if err := spotC.MarkLiquidityToProposal(ctx, now); err != nil {
		return err
	}
	lockedAsset, lockedStable, err := spotC.LockConditionalLiquidity()
	if err != nil {
		return err
	}

	ledger, err := conditional.NewLedger(p.OutcomeCount())
	if err != nil {
		return err
	}
	if err := ledger.MintCompleteSet(types.TokenAsset, lockedAsset); err != nil {
		return err
	}
	if err := ledger.MintCompleteSet(types.TokenStable, lockedStable); err != nil {
		return err
	}

	set, err := conditional.NewSet(conditional.SetConfig{
		ProposalID:        p.ProposalID(),
		OutcomeCount:      p.OutcomeCount(),
		LockedAsset:       lockedAsset,
		LockedStable:      lockedStable,
		InitPrice:         initPrice,
		FeeBps:            m.params.ConditionalFeeBps,
		OracleMinWindowMs: m.params.MinOracleWindowMs,
		OracleLongPeriods: m.params.LongWindowPeriods,
		Now:               now,
	})
	if err != nil {
		return err
	}

	*m.spot = *spotC
	m.set = set
	m.ledger = ledger
	m.proposal = p
	m.exec = router.NewExecutor(m.spot, m.set, m.ledger, m.params.NoArbBandBps, sdkmath.NewInt(m.params.MinArbProfit))
	m.log.Info().
		Uint64("proposal_id", p.ProposalID()).
		Int("outcomes", p.OutcomeCount()).
		Str("locked_asset", lockedAsset.String()).
		Str("locked_stable", lockedStable.String()).
		Str("init_price", initPrice.String()).
		Msg("proposal market opened")
	return nil
}

// FinalizeProposalMarket retires the conditional market once its proposal has
// a confirmed winning outcome: the winning pool's liquidity is burned, the
// escrow is drained back into the spot pool, and the cool-down starts.
func (m *Market) FinalizeProposalMarket(now uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.set == nil {
		return types.ErrNoActiveProposal
	}
	if m.proposal == nil || !m.proposal.IsFinalized() {
		return types.ErrProposalNotFinal
	}
	winning, ok := m.proposal.WinningOutcome()
	if !ok {
		return types.ErrProposalNotFinal
	}
	if winning < 0 || winning >= m.set.OutcomeCount() {
		return fmt.Errorf("%w: winning outcome %d of %d", types.ErrOutcomeMismatch, winning, m.set.OutcomeCount())
	}

	spotC := m.spot.Clone()
	ledgerC := m.ledger.Clone()

	// The winning pool's reserves are DAO-held conditional liquidity; retire
	// them before the escrow releases so supply never dips below backing.
	pool := m.set.Pools[winning]
	if pool.AssetReserve.IsPositive() {
		if err := ledgerC.BurnOutcome(winning, types.TokenAsset, pool.AssetReserve); err != nil {
			return err
		}
	}
	if pool.StableReserve.IsPositive() {
		if err := ledgerC.BurnOutcome(winning, types.TokenStable, pool.StableReserve); err != nil {
			return err
		}
	}

	asset, stable, err := ledgerC.Resolve(winning)
	if err != nil {
		return err
	}

	if o := spotC.Oracle(); o != nil {
		o.Observe(spotC.Price(), now)
	}
	spotC.ReturnLiquidity(asset, stable)
	if err := spotC.ClearProposal(now); err != nil {
		return err
	}

	*m.spot = *spotC
	proposalID := m.set.ProposalID
	// Dust balances lose their backing at resolution; they are reported here,
	// never redeemed.
	if d := m.exec.Dust; d != nil && !d.IsZero() {
		m.log.Warn().
			Uint64("proposal_id", proposalID).
			Interface("stranded_dust", d).
			Msg("incomplete-set dust stranded at resolution")
	}
	m.set = nil
	m.ledger = nil
	m.proposal = nil
	m.exec = router.NewExecutor(m.spot, nil, nil, m.params.NoArbBandBps, sdkmath.NewInt(m.params.MinArbProfit))
	m.log.Info().
		Uint64("proposal_id", proposalID).
		Int("winning_outcome", winning).
		Str("returned_asset", asset.String()).
		Str("returned_stable", stable.String()).
		Msg("proposal market finalized")
	return nil
}

// Dust returns the accumulated incomplete-set remainders, or nil when no
// conditional market is open.
func (m *Market) Dust() *types.DustBalance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exec.Dust
}

// TWAP returns the spot oracle's average over the configured short window.
func (m *Market) TWAP(now uint64) (sdkmath.LegacyDec, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.spot.Oracle()
	if o == nil {
		return sdkmath.LegacyDec{}, types.ErrOracleNotReady
	}
	return o.TWAP(m.params.TwapWindowMs, now)
}

// Snapshot captures the full market state for persistence. The wall-clock
// timestamp is for storage only; ClockMs carries the market clock.
func (m *Market) Snapshot(now uint64, opSeq int) *types.MarketSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := &types.MarketSnapshot{
		OpSequence:     opSeq,
		Timestamp:      time.Now().UTC(),
		ClockMs:        now,
		AssetReserve:   m.spot.AssetReserve,
		StableReserve:  m.spot.StableReserve,
		LPSupply:       m.spot.LPSupply,
		SpotPrice:      utils.DecToFloat64(m.spot.Price()),
		SpotFeeBps:     m.spot.CurrentFeeBps(now),
		EscrowedAsset:  sdkmath.ZeroInt(),
		EscrowedStable: sdkmath.ZeroInt(),
	}
	if agg := m.spot.Aggregator; agg != nil {
		snap.ProtocolFeesAsset = agg.ProtocolFeesAsset
		snap.ProtocolFeesStable = agg.ProtocolFeesStable
	}
	if m.set != nil {
		id := m.set.ProposalID
		snap.ActiveProposalID = &id
		snap.Outcomes = make([]types.OutcomeSnapshot, len(m.set.Pools))
		for i, p := range m.set.Pools {
			snap.Outcomes[i] = types.OutcomeSnapshot{
				Outcome:       p.Outcome,
				AssetReserve:  p.AssetReserve,
				StableReserve: p.StableReserve,
				Price:         utils.DecToFloat64(p.Price()),
			}
		}
		snap.EscrowedAsset = m.ledger.EscrowedAsset
		snap.EscrowedStable = m.ledger.EscrowedStable
		snap.Dust = m.exec.Dust.Clone()
	}
	return snap
}
