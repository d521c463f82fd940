/*

This file contains the spot pool: the constant-product AMM holding the DAO's
tradable reserves. It owns the price oracle and fee schedule, accrues
protocol fees, and can lock a configured share of its reserves for a live
proposal's conditional markets.

*/

package amm

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/futarchylabs/famm/internal/fees"
	"github.com/futarchylabs/famm/internal/oracle"
	"github.com/futarchylabs/famm/internal/types"
)

// AggregatorConfig is the optional sub-record enabling conditional-market
// aggregation on a spot pool: the oracle, the active proposal context, the
// liquidity ratio, accrued protocol fees, and the last proposal end time.
type AggregatorConfig struct {
	Oracle                *oracle.PriceOracle
	Active                *types.ProposalContext
	LiquidityRatioPercent uint64
	ProtocolFeeShareBps   uint64
	ProposalCooldownMs    uint64
	ProtocolFeesAsset     sdkmath.Int
	ProtocolFeesStable    sdkmath.Int
	LastProposalEndedAt   uint64
}

// SpotPool is the DAO's constant-product market. Reserves and LP supply are
// SDK integers; fees are basis points.
type SpotPool struct {
	AssetReserve  sdkmath.Int
	StableReserve sdkmath.Int
	FeeBps        uint64
	MinLiquidity  sdkmath.Int
	LPSupply      sdkmath.Int

	Schedule     *types.FeeSchedule
	FeeStartedAt uint64

	Aggregator *AggregatorConfig
}

// SpotPoolConfig holds the parameters for creating a spot pool.
type SpotPoolConfig struct {
	FeeBps                uint64
	MinLiquidity          sdkmath.Int
	Schedule              *types.FeeSchedule
	FeeStartedAt          uint64
	LiquidityRatioPercent uint64
	ProtocolFeeShareBps   uint64
	ProposalCooldownMs    uint64
	OracleMinWindowMs     uint64
	OracleLongPeriods     int
}

// NewSpotPool creates an empty pool with aggregation enabled.
func NewSpotPool(cfg SpotPoolConfig) (*SpotPool, error) {
	if cfg.FeeBps >= types.BpsDenom {
		return nil, fmt.Errorf("fee %d bps must be below %d", cfg.FeeBps, types.BpsDenom)
	}
	if cfg.MinLiquidity.IsNil() || !cfg.MinLiquidity.IsPositive() {
		return nil, fmt.Errorf("minimum liquidity must be positive")
	}
	if cfg.LiquidityRatioPercent == 0 || cfg.LiquidityRatioPercent >= 100 {
		return nil, fmt.Errorf("liquidity ratio %d%% must be within (0, 100)", cfg.LiquidityRatioPercent)
	}
	if cfg.ProtocolFeeShareBps > types.BpsDenom {
		return nil, fmt.Errorf("protocol fee share %d bps exceeds %d", cfg.ProtocolFeeShareBps, types.BpsDenom)
	}
	if cfg.Schedule != nil {
		if err := cfg.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("invalid fee schedule: %w", err)
		}
	}

	return &SpotPool{
		AssetReserve:  sdkmath.ZeroInt(),
		StableReserve: sdkmath.ZeroInt(),
		FeeBps:        cfg.FeeBps,
		MinLiquidity:  cfg.MinLiquidity,
		LPSupply:      sdkmath.ZeroInt(),
		Schedule:      cfg.Schedule,
		FeeStartedAt:  cfg.FeeStartedAt,
		Aggregator: &AggregatorConfig{
			Oracle:                oracle.New(cfg.OracleMinWindowMs, cfg.OracleLongPeriods),
			LiquidityRatioPercent: cfg.LiquidityRatioPercent,
			ProtocolFeeShareBps:   cfg.ProtocolFeeShareBps,
			ProposalCooldownMs:    cfg.ProposalCooldownMs,
			ProtocolFeesAsset:     sdkmath.ZeroInt(),
			ProtocolFeesStable:    sdkmath.ZeroInt(),
		},
	}, nil
}

// ProposalActive reports whether a proposal context is attached.
func (p *SpotPool) ProposalActive() bool {
	return p.Aggregator != nil && p.Aggregator.Active != nil
}

// Oracle returns the pool's price oracle, or nil without aggregation.
func (p *SpotPool) Oracle() *oracle.PriceOracle {
	if p.Aggregator == nil {
		return nil
	}
	return p.Aggregator.Oracle
}

// Price returns the marginal spot price stable/asset.
func (p *SpotPool) Price() sdkmath.LegacyDec {
	return SpotPrice(p.AssetReserve, p.StableReserve)
}

// CurrentFeeBps evaluates the decay schedule at `now`, or returns the flat
// fee when no schedule is attached.
func (p *SpotPool) CurrentFeeBps(now uint64) uint64 {
	if p.Schedule == nil {
		return p.FeeBps
	}
	return fees.ScheduleFee(*p.Schedule, p.FeeBps, p.FeeStartedAt, now)
}

// LiquidityReceipt reports what an AddLiquidity call consumed and minted.
type LiquidityReceipt struct {
	LPMinted     sdkmath.Int
	AssetUsed    sdkmath.Int
	StableUsed   sdkmath.Int
	AssetRefund  sdkmath.Int
	StableRefund sdkmath.Int
}

// AddLiquidity deposits reserves and mints LP shares. The first deposit
// mints sqrt(asset*stable) shares and permanently burns MinLiquidity of
// them; later deposits are proportional, refunding any excess input. Fails
// while a proposal market is active.
func (p *SpotPool) AddLiquidity(assetIn, stableIn, minLPOut sdkmath.Int) (*LiquidityReceipt, error) {
	if p.ProposalActive() {
		return nil, types.ErrProposalActive
	}
	if !assetIn.IsPositive() || !stableIn.IsPositive() {
		return nil, types.ErrZeroAmount
	}

	zero := sdkmath.ZeroInt()
	if p.LPSupply.IsZero() {
		total := IntSqrt(assetIn.Mul(stableIn))
		minted := total.Sub(p.MinLiquidity)
		if !minted.IsPositive() {
			return nil, fmt.Errorf("%w: initial deposit too small", types.ErrBelowMinimumLiquidity)
		}
		if minted.LT(minLPOut) {
			return nil, fmt.Errorf("%w: minted %s < min %s", types.ErrSlippageExceeded, minted, minLPOut)
		}
		p.AssetReserve = assetIn
		p.StableReserve = stableIn
		p.LPSupply = total
		return &LiquidityReceipt{
			LPMinted:     minted,
			AssetUsed:    assetIn,
			StableUsed:   stableIn,
			AssetRefund:  zero,
			StableRefund: zero,
		}, nil
	}

	// Proportional deposit limited by the scarcer side; the surplus on the
	// other side is returned unconsumed.
	var minted, assetUsed, stableUsed sdkmath.Int
	if assetIn.Mul(p.StableReserve).LTE(stableIn.Mul(p.AssetReserve)) {
		minted = p.LPSupply.Mul(assetIn).Quo(p.AssetReserve)
		assetUsed = assetIn
		stableUsed = assetIn.Mul(p.StableReserve).Quo(p.AssetReserve)
	} else {
		minted = p.LPSupply.Mul(stableIn).Quo(p.StableReserve)
		stableUsed = stableIn
		assetUsed = stableIn.Mul(p.AssetReserve).Quo(p.StableReserve)
	}
	if !minted.IsPositive() {
		return nil, types.ErrZeroAmount
	}
	if minted.LT(minLPOut) {
		return nil, fmt.Errorf("%w: minted %s < min %s", types.ErrSlippageExceeded, minted, minLPOut)
	}

	p.AssetReserve = p.AssetReserve.Add(assetUsed)
	p.StableReserve = p.StableReserve.Add(stableUsed)
	p.LPSupply = p.LPSupply.Add(minted)
	return &LiquidityReceipt{
		LPMinted:     minted,
		AssetUsed:    assetUsed,
		StableUsed:   stableUsed,
		AssetRefund:  assetIn.Sub(assetUsed),
		StableRefund: stableIn.Sub(stableUsed),
	}, nil
}

// RemoveLiquidity burns LP shares for a proportional share of reserves. The
// remaining reserves must stay above the minimum-liquidity floor, including
// a projected floor for the share earmarked for conditional markets. Fails
// while a proposal market is active.
func (p *SpotPool) RemoveLiquidity(lpIn, minAssetOut, minStableOut sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if p.ProposalActive() {
		return zero, zero, types.ErrProposalActive
	}
	if !lpIn.IsPositive() {
		return zero, zero, types.ErrZeroAmount
	}
	if lpIn.GT(p.LPSupply) {
		return zero, zero, fmt.Errorf("%w: burning %s of %s supply", types.ErrInsufficientLiquidity, lpIn, p.LPSupply)
	}

	assetOut := p.AssetReserve.Mul(lpIn).Quo(p.LPSupply)
	stableOut := p.StableReserve.Mul(lpIn).Quo(p.LPSupply)
	if assetOut.LT(minAssetOut) || stableOut.LT(minStableOut) {
		return zero, zero, fmt.Errorf("%w: out (%s, %s) below (%s, %s)",
			types.ErrSlippageExceeded, assetOut, stableOut, minAssetOut, minStableOut)
	}

	remainingAsset := p.AssetReserve.Sub(assetOut)
	remainingStable := p.StableReserve.Sub(stableOut)
	if err := p.checkLiquidityFloor(remainingAsset, remainingStable); err != nil {
		return zero, zero, err
	}

	p.AssetReserve = remainingAsset
	p.StableReserve = remainingStable
	p.LPSupply = p.LPSupply.Sub(lpIn)
	return assetOut, stableOut, nil
}

// checkLiquidityFloor verifies asset*stable stays above the floor, projected
// through the conditional-liquidity earmark when aggregation is configured.
func (p *SpotPool) checkLiquidityFloor(asset, stable sdkmath.Int) error {
	projAsset, projStable := asset, stable
	if p.Aggregator != nil {
		keep := int64(100 - p.Aggregator.LiquidityRatioPercent)
		projAsset = asset.MulRaw(keep).QuoRaw(100)
		projStable = stable.MulRaw(keep).QuoRaw(100)
	}
	if asset.Mul(stable).LT(p.MinLiquidity) || projAsset.Mul(projStable).LT(p.MinLiquidity) {
		return types.ErrBelowMinimumLiquidity
	}
	return nil
}

// Swap trades amountIn of tokenIn for the opposite token. The current
// scheduled fee is deducted from the input, a configured share of it accrues
// to the protocol accumulator, and the oracle observes the pre-trade price
// before reserves move.
func (p *SpotPool) Swap(tokenIn types.Token, amountIn, minOut sdkmath.Int, now uint64) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	reserveIn, reserveOut := p.reserves(tokenIn)

	feeBps := p.CurrentFeeBps(now)
	out, feeAmount, err := SwapOutput(reserveIn, reserveOut, amountIn, feeBps)
	if err != nil {
		return zero, err
	}
	if out.LT(minOut) {
		return zero, fmt.Errorf("%w: out %s < min %s", types.ErrSlippageExceeded, out, minOut)
	}

	protocolCut := zero
	if p.Aggregator != nil && p.Aggregator.ProtocolFeeShareBps > 0 {
		protocolCut = feeAmount.MulRaw(int64(p.Aggregator.ProtocolFeeShareBps)).QuoRaw(types.BpsDenom)
	}

	if o := p.Oracle(); o != nil {
		o.Observe(p.Price(), now)
	}

	// The protocol's fee share leaves the pool; the rest of the fee stays in
	// the reserves for LPs.
	credited := amountIn.Sub(protocolCut)
	if tokenIn == types.TokenAsset {
		p.AssetReserve = p.AssetReserve.Add(credited)
		p.StableReserve = p.StableReserve.Sub(out)
		if !protocolCut.IsZero() {
			p.Aggregator.ProtocolFeesAsset = p.Aggregator.ProtocolFeesAsset.Add(protocolCut)
		}
	} else {
		p.StableReserve = p.StableReserve.Add(credited)
		p.AssetReserve = p.AssetReserve.Sub(out)
		if !protocolCut.IsZero() {
			p.Aggregator.ProtocolFeesStable = p.Aggregator.ProtocolFeesStable.Add(protocolCut)
		}
	}
	return out, nil
}

func (p *SpotPool) reserves(tokenIn types.Token) (sdkmath.Int, sdkmath.Int) {
	if tokenIn == types.TokenAsset {
		return p.AssetReserve, p.StableReserve
	}
	return p.StableReserve, p.AssetReserve
}

// CheckProposalGap asserts the mandatory cool-down has elapsed since the last
// proposal ended.
func (p *SpotPool) CheckProposalGap(now uint64) error {
	if p.Aggregator == nil {
		return nil
	}
	last := p.Aggregator.LastProposalEndedAt
	if last != 0 && now < last+p.Aggregator.ProposalCooldownMs {
		return fmt.Errorf("%w: %d ms remaining",
			types.ErrCooldownNotElapsed, last+p.Aggregator.ProposalCooldownMs-now)
	}
	return nil
}

// MarkLiquidityToProposal snapshots the oracle, stamps the context, and
// attaches it as the active proposal. The caller must have passed
// CheckProposalGap and an oracle readiness check.
func (p *SpotPool) MarkLiquidityToProposal(ctx *types.ProposalContext, now uint64) error {
	if p.Aggregator == nil {
		return fmt.Errorf("%w: pool has no aggregator", types.ErrNoActiveProposal)
	}
	if p.Aggregator.Active != nil {
		return types.ErrProposalActive
	}
	if err := p.CheckProposalGap(now); err != nil {
		return err
	}
	if ctx.LiquidityRatioPercent == 0 {
		ctx.LiquidityRatioPercent = p.Aggregator.LiquidityRatioPercent
	}
	ctx.StartedAt = now
	ctx.CumulativeAtStart = p.Aggregator.Oracle.CumulativeAt(now)
	p.Aggregator.Active = ctx
	return nil
}

// LockConditionalLiquidity carves the active proposal's ratio out of the
// reserves and returns the locked amounts. The remainder must stay above the
// liquidity floor.
func (p *SpotPool) LockConditionalLiquidity() (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if !p.ProposalActive() {
		return zero, zero, types.ErrNoActiveProposal
	}
	ratio := int64(p.Aggregator.Active.LiquidityRatioPercent)
	lockedAsset := p.AssetReserve.MulRaw(ratio).QuoRaw(100)
	lockedStable := p.StableReserve.MulRaw(ratio).QuoRaw(100)
	if !lockedAsset.IsPositive() || !lockedStable.IsPositive() {
		return zero, zero, types.ErrZeroAmount
	}

	remainingAsset := p.AssetReserve.Sub(lockedAsset)
	remainingStable := p.StableReserve.Sub(lockedStable)
	if remainingAsset.Mul(remainingStable).LT(p.MinLiquidity) {
		return zero, zero, types.ErrBelowMinimumLiquidity
	}

	p.AssetReserve = remainingAsset
	p.StableReserve = remainingStable
	return lockedAsset, lockedStable, nil
}

// ReturnLiquidity adds recombined reserves back after proposal resolution.
func (p *SpotPool) ReturnLiquidity(asset, stable sdkmath.Int) {
	p.AssetReserve = p.AssetReserve.Add(asset)
	p.StableReserve = p.StableReserve.Add(stable)
}

// ClearProposal detaches the active context and stamps the cool-down start.
func (p *SpotPool) ClearProposal(now uint64) error {
	if !p.ProposalActive() {
		return types.ErrNoActiveProposal
	}
	p.Aggregator.Active = nil
	p.Aggregator.LastProposalEndedAt = now
	return nil
}

// Clone returns a deep copy for staged mutation.
func (p *SpotPool) Clone() *SpotPool {
	cp := *p
	if p.Schedule != nil {
		s := *p.Schedule
		cp.Schedule = &s
	}
	if p.Aggregator != nil {
		agg := *p.Aggregator
		agg.Oracle = p.Aggregator.Oracle.Clone()
		if p.Aggregator.Active != nil {
			active := *p.Aggregator.Active
			agg.Active = &active
		}
		cp.Aggregator = &agg
	}
	return &cp
}
