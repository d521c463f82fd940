/*

This file contains the conditional pool set: one constant-product AMM per
proposal outcome, seeded proportionally from the spot pool's locked reserves
and priced from the spot oracle at proposal start.

*/

package conditional

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/futarchylabs/famm/internal/amm"
	"github.com/futarchylabs/famm/internal/oracle"
	"github.com/futarchylabs/famm/internal/types"
)

// Pool is a single outcome's constant-product market. Unlike the spot pool
// it carries a fixed fee and no decay schedule. Reserves and deposits are
// conditional tokens of this outcome; TotalShares tracks pool ownership the
// same way the spot pool's LP supply does.
type Pool struct {
	Outcome       int
	AssetReserve  sdkmath.Int
	StableReserve sdkmath.Int
	TotalShares   sdkmath.Int
	FeeBps        uint64
	Oracle        *oracle.PriceOracle
}

// Price returns the marginal price stable/asset for this outcome.
func (p *Pool) Price() sdkmath.LegacyDec {
	return amm.SpotPrice(p.AssetReserve, p.StableReserve)
}

// Swap trades conditional tokens within this outcome's market.
func (p *Pool) Swap(tokenIn types.Token, amountIn, minOut sdkmath.Int, now uint64) (sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	reserveIn, reserveOut := p.AssetReserve, p.StableReserve
	if tokenIn == types.TokenStable {
		reserveIn, reserveOut = p.StableReserve, p.AssetReserve
	}

	out, _, err := amm.SwapOutput(reserveIn, reserveOut, amountIn, p.FeeBps)
	if err != nil {
		return zero, fmt.Errorf("outcome %d: %w", p.Outcome, err)
	}
	if out.LT(minOut) {
		return zero, fmt.Errorf("outcome %d: %w: out %s < min %s", p.Outcome, types.ErrSlippageExceeded, out, minOut)
	}

	if p.Oracle != nil {
		p.Oracle.Observe(p.Price(), now)
	}
	if tokenIn == types.TokenAsset {
		p.AssetReserve = p.AssetReserve.Add(amountIn)
		p.StableReserve = p.StableReserve.Sub(out)
	} else {
		p.StableReserve = p.StableReserve.Add(amountIn)
		p.AssetReserve = p.AssetReserve.Sub(out)
	}
	return out, nil
}

// AddLiquidity deposits conditional tokens of this outcome proportionally
// and mints pool shares. Pools are born seeded, so there is no first-deposit
// branch; the surplus on the richer side is returned unconsumed. Deposits
// are already-minted conditional tokens, so the escrow backing is unchanged.
func (p *Pool) AddLiquidity(assetIn, stableIn, minSharesOut sdkmath.Int) (*amm.LiquidityReceipt, error) {
	if !assetIn.IsPositive() || !stableIn.IsPositive() {
		return nil, fmt.Errorf("outcome %d: %w", p.Outcome, types.ErrZeroAmount)
	}
	if !p.TotalShares.IsPositive() {
		return nil, fmt.Errorf("outcome %d: %w", p.Outcome, types.ErrInsufficientLiquidity)
	}

	// Proportional deposit limited by the scarcer side, as in the spot pool.
	var minted, assetUsed, stableUsed sdkmath.Int
	if assetIn.Mul(p.StableReserve).LTE(stableIn.Mul(p.AssetReserve)) {
		minted = p.TotalShares.Mul(assetIn).Quo(p.AssetReserve)
		assetUsed = assetIn
		stableUsed = assetIn.Mul(p.StableReserve).Quo(p.AssetReserve)
	} else {
		minted = p.TotalShares.Mul(stableIn).Quo(p.StableReserve)
		stableUsed = stableIn
		assetUsed = stableIn.Mul(p.AssetReserve).Quo(p.StableReserve)
	}
	if !minted.IsPositive() {
		return nil, fmt.Errorf("outcome %d: %w", p.Outcome, types.ErrZeroAmount)
	}
	if minted.LT(minSharesOut) {
		return nil, fmt.Errorf("outcome %d: %w: minted %s < min %s",
			p.Outcome, types.ErrSlippageExceeded, minted, minSharesOut)
	}

	p.AssetReserve = p.AssetReserve.Add(assetUsed)
	p.StableReserve = p.StableReserve.Add(stableUsed)
	p.TotalShares = p.TotalShares.Add(minted)
	return &amm.LiquidityReceipt{
		LPMinted:     minted,
		AssetUsed:    assetUsed,
		StableUsed:   stableUsed,
		AssetRefund:  assetIn.Sub(assetUsed),
		StableRefund: stableIn.Sub(stableUsed),
	}, nil
}

// RemoveLiquidity burns pool shares for a proportional share of the
// conditional reserves. The pool may never be drained completely while its
// market is live; the winning pool's remainder is retired at finalization.
func (p *Pool) RemoveLiquidity(sharesIn, minAssetOut, minStableOut sdkmath.Int) (sdkmath.Int, sdkmath.Int, error) {
	zero := sdkmath.ZeroInt()
	if !sharesIn.IsPositive() {
		return zero, zero, fmt.Errorf("outcome %d: %w", p.Outcome, types.ErrZeroAmount)
	}
	if sharesIn.GTE(p.TotalShares) {
		return zero, zero, fmt.Errorf("outcome %d: %w: burning %s of %s shares",
			p.Outcome, types.ErrInsufficientLiquidity, sharesIn, p.TotalShares)
	}

	assetOut := p.AssetReserve.Mul(sharesIn).Quo(p.TotalShares)
	stableOut := p.StableReserve.Mul(sharesIn).Quo(p.TotalShares)
	if assetOut.LT(minAssetOut) || stableOut.LT(minStableOut) {
		return zero, zero, fmt.Errorf("outcome %d: %w: out (%s, %s) below (%s, %s)",
			p.Outcome, types.ErrSlippageExceeded, assetOut, stableOut, minAssetOut, minStableOut)
	}

	p.AssetReserve = p.AssetReserve.Sub(assetOut)
	p.StableReserve = p.StableReserve.Sub(stableOut)
	p.TotalShares = p.TotalShares.Sub(sharesIn)
	return assetOut, stableOut, nil
}

// Clone returns a deep copy for staged mutation.
func (p *Pool) Clone() *Pool {
	cp := *p
	cp.Oracle = p.Oracle.Clone()
	return &cp
}

// Set is the group of outcome pools backing one proposal's market. All pools
// share the proposal id; exactly one outcome wins at finalization.
type Set struct {
	ProposalID uint64
	Pools      []*Pool
}

// SetConfig holds the seeding parameters for a new conditional market.
type SetConfig struct {
	ProposalID        uint64
	OutcomeCount      int
	LockedAsset       sdkmath.Int
	LockedStable      sdkmath.Int
	InitPrice         sdkmath.LegacyDec
	FeeBps            uint64
	OracleMinWindowMs uint64
	OracleLongPeriods int
	Now               uint64
}

// NewSet seeds one pool per outcome with an equal slice of the locked asset
// reserve, pricing the stable side from the supplied initialization price.
// The stable side is capped by the locked stable so seeding never exceeds
// the escrowed backing.
func NewSet(cfg SetConfig) (*Set, error) {
	if cfg.OutcomeCount < 2 {
		return nil, fmt.Errorf("%w: need at least 2 outcomes, got %d", types.ErrOutcomeMismatch, cfg.OutcomeCount)
	}
	if !cfg.LockedAsset.IsPositive() || !cfg.LockedStable.IsPositive() {
		return nil, types.ErrZeroAmount
	}
	if cfg.InitPrice.IsNil() || !cfg.InitPrice.IsPositive() {
		return nil, fmt.Errorf("init price must be positive")
	}

	n := int64(cfg.OutcomeCount)
	assetSeed := cfg.LockedAsset.QuoRaw(n)
	stableSeed := cfg.InitPrice.MulInt(assetSeed).TruncateInt()
	if cap := cfg.LockedStable.QuoRaw(n); stableSeed.GT(cap) {
		stableSeed = cap
	}
	if !assetSeed.IsPositive() || !stableSeed.IsPositive() {
		return nil, fmt.Errorf("%w: locked reserves too small for %d outcomes", types.ErrBelowMinimumLiquidity, cfg.OutcomeCount)
	}

	set := &Set{ProposalID: cfg.ProposalID, Pools: make([]*Pool, cfg.OutcomeCount)}
	for i := 0; i < cfg.OutcomeCount; i++ {
		o := oracle.New(cfg.OracleMinWindowMs, cfg.OracleLongPeriods)
		o.Observe(cfg.InitPrice, cfg.Now)
		set.Pools[i] = &Pool{
			Outcome:       i,
			AssetReserve:  assetSeed,
			StableReserve: stableSeed,
			TotalShares:   amm.IntSqrt(assetSeed.Mul(stableSeed)),
			FeeBps:        cfg.FeeBps,
			Oracle:        o,
		}
	}
	return set, nil
}

// OutcomeCount returns the number of outcome pools.
func (s *Set) OutcomeCount() int {
	return len(s.Pools)
}

// ImpliedPrice returns the mean marginal price across outcome pools, the
// reference for the no-arbitrage band.
func (s *Set) ImpliedPrice() sdkmath.LegacyDec {
	sum := sdkmath.LegacyZeroDec()
	for _, p := range s.Pools {
		sum = sum.Add(p.Price())
	}
	return sum.QuoInt64(int64(len(s.Pools)))
}

// Reserves returns the current reserve pairs for the solver.
func (s *Set) Reserves() []ReservePair {
	out := make([]ReservePair, len(s.Pools))
	for i, p := range s.Pools {
		out[i] = ReservePair{Asset: p.AssetReserve, Stable: p.StableReserve}
	}
	return out
}

// ReservePair is a read-only reserve view of one outcome pool.
type ReservePair struct {
	Asset  sdkmath.Int
	Stable sdkmath.Int
}

// Clone returns a deep copy for staged mutation.
func (s *Set) Clone() *Set {
	if s == nil {
		return nil
	}
	cp := &Set{ProposalID: s.ProposalID, Pools: make([]*Pool, len(s.Pools))}
	for i, p := range s.Pools {
		cp.Pools[i] = p.Clone()
	}
	return cp
}
