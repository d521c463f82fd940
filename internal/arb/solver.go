/*

This file contains the arbitrage solver: a pure quoting function that finds
the trade size maximizing risk-free profit between the spot pool and the
conditional pool set. It never mutates pool state; execution belongs to the
router.

The round trip in the conditional-to-spot direction is: escrow X stable into
complete conditional-stable sets, swap stable for asset inside every outcome
pool, burn the minimum asset amount across outcomes as a complete set back
into spot asset, and sell that asset on the spot pool. The mirror direction
buys asset on spot first. Profit as a function of X is unimodal on a
constant-product curve, so an integer ternary search converges without
square roots.

*/

package arb

import (
	sdkmath "cosmossdk.io/math"

	"github.com/futarchylabs/famm/internal/conditional"
	"github.com/futarchylabs/famm/internal/types"
)

// Direction says which way value flows to capture the spread.
type Direction int

const (
	DirectionNone Direction = iota
	// DirectionSpotToConditional buys asset on spot and sells it into the
	// conditional pools (spot price below the conditional price).
	DirectionSpotToConditional
	// DirectionConditionalToSpot buys asset in the conditional pools and
	// sells it on spot (spot price above the conditional price).
	DirectionConditionalToSpot
)

func (d Direction) String() string {
	switch d {
	case DirectionSpotToConditional:
		return "spot->conditional"
	case DirectionConditionalToSpot:
		return "conditional->spot"
	default:
		return "none"
	}
}

// Inputs is the read-only reserve state the solver quotes against. Amounts
// are denominated in stable units.
type Inputs struct {
	SpotAsset         sdkmath.Int
	SpotStable        sdkmath.Int
	SpotFeeBps        uint64
	Conditionals      []conditional.ReservePair
	ConditionalFeeBps uint64
	// BudgetHint bounds the search; routers pass the user's direct-swap
	// output. Zero falls back to a reserve-derived bound.
	BudgetHint sdkmath.Int
	// MinProfit is the smallest stable profit worth executing.
	MinProfit sdkmath.Int
}

// Quote is the solver's answer. Amount is the stable principal to commit;
// Direction is DirectionNone when nothing clears MinProfit.
type Quote struct {
	Amount    sdkmath.Int
	Profit    sdkmath.Int
	Direction Direction
}

// Solve searches both directions and returns the more profitable one, or a
// zero quote when no opportunity clears the minimum-profit threshold.
func Solve(in Inputs) Quote {
	none := Quote{Amount: sdkmath.ZeroInt(), Profit: sdkmath.ZeroInt(), Direction: DirectionNone}
	if len(in.Conditionals) == 0 || !in.SpotAsset.IsPositive() || !in.SpotStable.IsPositive() {
		return none
	}
	for _, c := range in.Conditionals {
		if !c.Asset.IsPositive() || !c.Stable.IsPositive() {
			return none
		}
	}

	bound := searchBound(in)
	if !bound.IsPositive() {
		return none
	}

	best := none
	for _, dir := range []Direction{DirectionConditionalToSpot, DirectionSpotToConditional} {
		amount, profit := maximize(in, dir, bound)
		if profit.GT(best.Profit) {
			best = Quote{Amount: amount, Profit: profit, Direction: dir}
		}
	}

	minProfit := in.MinProfit
	if minProfit.IsNil() {
		minProfit = sdkmath.ZeroInt()
	}
	if !best.Profit.IsPositive() || best.Profit.LT(minProfit) {
		return none
	}
	return best
}

// searchBound caps the principal: a multiple of the budget hint, never more
// than the spot stable depth.
func searchBound(in Inputs) sdkmath.Int {
	base := in.BudgetHint
	if base.IsNil() || !base.IsPositive() {
		base = in.SpotStable.QuoRaw(10)
	}
	bound := base.MulRaw(16)
	if bound.GT(in.SpotStable) {
		bound = in.SpotStable
	}
	return bound
}

// maximize runs an integer ternary search for the given direction. A cheap
// probe near zero prunes directions whose prices are already aligned before
// any search work happens.
func maximize(in Inputs, dir Direction, bound sdkmath.Int) (sdkmath.Int, sdkmath.Int) {
	zero := sdkmath.ZeroInt()

	probe := bound.QuoRaw(1000)
	if !probe.IsPositive() {
		probe = sdkmath.OneInt()
	}
	if p, ok := profitAt(in, dir, probe); !ok || !p.IsPositive() {
		// No marginal edge at small size means none at any size either,
		// since marginal profit only shrinks as the trade grows.
		if p2, ok2 := profitAt(in, dir, sdkmath.OneInt()); !ok2 || !p2.IsPositive() {
			return zero, zero
		}
	}

	lo := sdkmath.OneInt()
	hi := bound
	for hi.Sub(lo).GT(sdkmath.NewInt(2)) {
		third := hi.Sub(lo).QuoRaw(3)
		m1 := lo.Add(third)
		m2 := hi.Sub(third)
		p1, ok1 := profitAt(in, dir, m1)
		p2, ok2 := profitAt(in, dir, m2)
		// Infeasible points only occur at sizes too small to clear fee
		// truncation, so the search moves up past them.
		if !ok1 {
			lo = m1
			continue
		}
		if !ok2 {
			lo = m2
			continue
		}
		if p1.GTE(p2) {
			hi = m2
		} else {
			lo = m1
		}
	}

	bestX, bestP := zero, zero
	for x := lo; x.LTE(hi); x = x.Add(sdkmath.OneInt()) {
		if p, ok := profitAt(in, dir, x); ok && p.GT(bestP) {
			bestX, bestP = x, p
		}
	}
	return bestX, bestP
}

// profitAt simulates the full round trip for principal x stable. ok is false
// when any leg is infeasible (drained pool or dust-sized intermediate).
func profitAt(in Inputs, dir Direction, x sdkmath.Int) (sdkmath.Int, bool) {
	zero := sdkmath.ZeroInt()
	if !x.IsPositive() {
		return zero, false
	}

	switch dir {
	case DirectionConditionalToSpot:
		// Complete stable sets in, minimum asset set out, sold on spot.
		minAsset := sdkmath.Int{}
		for _, c := range in.Conditionals {
			out, ok := cpOut(c.Stable, c.Asset, x, in.ConditionalFeeBps)
			if !ok {
				return zero, false
			}
			if minAsset.IsNil() || out.LT(minAsset) {
				minAsset = out
			}
		}
		if !minAsset.IsPositive() {
			return zero, false
		}
		stableOut, ok := cpOut(in.SpotAsset, in.SpotStable, minAsset, in.SpotFeeBps)
		if !ok {
			return zero, false
		}
		return stableOut.Sub(x), true

	case DirectionSpotToConditional:
		// Asset bought on spot, complete asset sets in, minimum stable set out.
		asset, ok := cpOut(in.SpotStable, in.SpotAsset, x, in.SpotFeeBps)
		if !ok || !asset.IsPositive() {
			return zero, false
		}
		minStable := sdkmath.Int{}
		for _, c := range in.Conditionals {
			out, ok := cpOut(c.Asset, c.Stable, asset, in.ConditionalFeeBps)
			if !ok {
				return zero, false
			}
			if minStable.IsNil() || out.LT(minStable) {
				minStable = out
			}
		}
		if !minStable.IsPositive() {
			return zero, false
		}
		return minStable.Sub(x), true
	}
	return zero, false
}

// cpOut is the constant-product output with fee, without error plumbing.
func cpOut(reserveIn, reserveOut, amountIn sdkmath.Int, feeBps uint64) (sdkmath.Int, bool) {
	inAfterFee := amountIn.Sub(amountIn.MulRaw(int64(feeBps)).QuoRaw(types.BpsDenom))
	if !inAfterFee.IsPositive() {
		return sdkmath.ZeroInt(), false
	}
	out := reserveOut.Mul(inAfterFee).Quo(reserveIn.Add(inAfterFee))
	if out.GTE(reserveOut) {
		return sdkmath.ZeroInt(), false
	}
	return out, true
}
