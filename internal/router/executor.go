/*

This file contains the swap router: the single entry point for trades while a
conditional market may be live. Every operation runs against deep clones of
the spot pool, the conditional set, and the escrow ledger; only a fully
successful sequence is copied back into the live state, so a failure at any
step leaves no partial mutation.

After the user's direct swap the router asks the solver for an arbitrage
quote and, when profitable, executes the full mint/swap/burn round trip in
the same unit of work, converting the realized profit into the user's
requested token and folding it into the net output. The committed state must
leave the spot price inside the no-arbitrage band around the conditional
implied price.

*/

package router

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/futarchylabs/famm/internal/amm"
	"github.com/futarchylabs/famm/internal/arb"
	"github.com/futarchylabs/famm/internal/conditional"
	"github.com/futarchylabs/famm/internal/logger"
	"github.com/futarchylabs/famm/internal/types"
)

// Executor routes swaps through the spot pool and keeps it aligned with the
// active conditional market. Spot, Set and Ledger point at the live state;
// Set and Ledger are nil outside a proposal's trading phase.
type Executor struct {
	Spot   *amm.SpotPool
	Set    *conditional.Set
	Ledger *conditional.Ledger

	NoArbBandBps uint64
	MinArbProfit sdkmath.Int

	// Dust accumulates the sub-minimum conditional remainders stranded by
	// complete-set burns. It survives until resolution.
	Dust *types.DustBalance

	log zerolog.Logger
}

// NewExecutor wires a router over the live market state. set and ledger may
// be nil when no conditional market is open.
func NewExecutor(spot *amm.SpotPool, set *conditional.Set, ledger *conditional.Ledger, noArbBandBps uint64, minArbProfit sdkmath.Int) *Executor {
	e := &Executor{
		Spot:         spot,
		Set:          set,
		Ledger:       ledger,
		NoArbBandBps: noArbBandBps,
		MinArbProfit: minArbProfit,
		log:          logger.GetForComponent("router"),
	}
	if set != nil {
		e.Dust = types.NewDustBalance(set.OutcomeCount())
	}
	return e
}

// Swap executes the user's trade and any follow-on arbitrage atomically.
func (e *Executor) Swap(tokenIn types.Token, amountIn, minOut sdkmath.Int, now uint64) (*types.SwapResult, error) {
	spotC := e.Spot.Clone()
	var setC *conditional.Set
	var ledgerC *conditional.Ledger
	if e.Set != nil {
		setC = e.Set.Clone()
		ledgerC = e.Ledger.Clone()
	}

	feeBps := spotC.CurrentFeeBps(now)
	out, err := spotC.Swap(tokenIn, amountIn, minOut, now)
	if err != nil {
		return nil, err
	}

	result := &types.SwapResult{
		AmountOut:  out,
		FeeBpsPaid: feeBps,
		ArbProfit:  sdkmath.ZeroInt(),
	}

	if setC != nil {
		quote := e.solve(spotC, setC, stableLeg(tokenIn, amountIn, out), now)
		if quote.Direction != arb.DirectionNone {
			profit, dust, arbErr := e.runArb(spotC, setC, ledgerC, quote, now)
			if arbErr != nil {
				return nil, fmt.Errorf("arbitrage leg failed: %w", arbErr)
			}
			result.ArbExecuted = true
			result.ArbProfit = profit
			result.Dust = dust

			// Profit settles in stable. A caller who asked for asset gets it
			// converted through one more spot swap with a zero floor, since
			// profitability is already established.
			bonus := profit
			if tokenIn == types.TokenStable {
				bonus, arbErr = spotC.Swap(types.TokenStable, profit, sdkmath.ZeroInt(), now)
				if arbErr != nil {
					return nil, fmt.Errorf("profit conversion failed: %w", arbErr)
				}
			}
			result.AmountOut = result.AmountOut.Add(bonus)
		}
		if err := e.checkBand(spotC, setC); err != nil {
			return nil, err
		}
	}

	e.commit(spotC, setC, ledgerC, result.Dust)
	e.log.Debug().
		Str("token_in", tokenIn.String()).
		Str("amount_in", amountIn.String()).
		Str("amount_out", out.String()).
		Uint64("fee_bps", feeBps).
		Bool("arb", result.ArbExecuted).
		Str("arb_profit", result.ArbProfit.String()).
		Msg("swap committed")
	return result, nil
}

// Quote previews a swap without touching live state: the direct output at the
// current fee plus the arbitrage the router would append.
func (e *Executor) Quote(tokenIn types.Token, amountIn sdkmath.Int, now uint64) (*types.SwapQuote, error) {
	spotC := e.Spot.Clone()
	out, err := spotC.Swap(tokenIn, amountIn, sdkmath.ZeroInt(), now)
	if err != nil {
		return nil, err
	}

	q := &types.SwapQuote{
		AmountIn:          amountIn,
		DirectOutput:      out,
		OptimalArbAmount:  sdkmath.ZeroInt(),
		ExpectedArbProfit: sdkmath.ZeroInt(),
	}
	if e.Set != nil {
		setC := e.Set.Clone()
		aq := e.solve(spotC, setC, stableLeg(tokenIn, amountIn, out), now)
		if aq.Direction != arb.DirectionNone {
			q.ArbAvailable = true
			q.OptimalArbAmount = aq.Amount
			q.ExpectedArbProfit = aq.Profit
		}
	}
	return q, nil
}

// stableLeg picks the stable-denominated side of the trade as the solver's
// budget hint.
func stableLeg(tokenIn types.Token, amountIn, amountOut sdkmath.Int) sdkmath.Int {
	if tokenIn == types.TokenStable {
		return amountIn
	}
	return amountOut
}

func (e *Executor) solve(spot *amm.SpotPool, set *conditional.Set, hint sdkmath.Int, now uint64) arb.Quote {
	condFee := uint64(0)
	if len(set.Pools) > 0 {
		condFee = set.Pools[0].FeeBps
	}
	return arb.Solve(arb.Inputs{
		SpotAsset:         spot.AssetReserve,
		SpotStable:        spot.StableReserve,
		SpotFeeBps:        spot.CurrentFeeBps(now),
		Conditionals:      set.Reserves(),
		ConditionalFeeBps: condFee,
		BudgetHint:        hint,
		MinProfit:         e.MinArbProfit,
	})
}

// runArb executes the solver's quote on the staged clones. The principal is
// a flash borrow repaid out of the final leg's proceeds, so the legs trade
// against the same reserves the solver simulated; the stable-denominated
// profit is returned to the caller for conversion into the requested token.
func (e *Executor) runArb(spot *amm.SpotPool, set *conditional.Set, ledger *conditional.Ledger, q arb.Quote, now uint64) (sdkmath.Int, *types.DustBalance, error) {
	zero := sdkmath.ZeroInt()
	x := q.Amount
	if !x.IsPositive() || x.GTE(spot.StableReserve) {
		return zero, nil, types.ErrInsufficientLiquidity
	}

	dust := types.NewDustBalance(set.OutcomeCount())

	switch q.Direction {
	case arb.DirectionConditionalToSpot:
		if err := ledger.MintCompleteSet(types.TokenStable, x); err != nil {
			return zero, nil, err
		}
		minAsset := sdkmath.Int{}
		outs := make([]sdkmath.Int, len(set.Pools))
		for i, pool := range set.Pools {
			out, err := pool.Swap(types.TokenStable, x, zero, now)
			if err != nil {
				return zero, nil, err
			}
			outs[i] = out
			if minAsset.IsNil() || out.LT(minAsset) {
				minAsset = out
			}
		}
		if _, err := ledger.BurnCompleteSet(types.TokenAsset, minAsset); err != nil {
			return zero, nil, err
		}
		for i, out := range outs {
			dust.Asset[i] = out.Sub(minAsset)
		}
		stableOut, err := spot.Swap(types.TokenAsset, minAsset, zero, now)
		if err != nil {
			return zero, nil, err
		}
		// The repaid principal sits in escrow backing the minted sets; the
		// surplus belongs to the caller.
		profit := stableOut.Sub(x)
		if !profit.IsPositive() {
			return zero, nil, types.ErrArbUnprofitable
		}
		return profit, dust, nil

	case arb.DirectionSpotToConditional:
		assetOut, err := spot.Swap(types.TokenStable, x, zero, now)
		if err != nil {
			return zero, nil, err
		}
		if err := ledger.MintCompleteSet(types.TokenAsset, assetOut); err != nil {
			return zero, nil, err
		}
		minStable := sdkmath.Int{}
		outs := make([]sdkmath.Int, len(set.Pools))
		for i, pool := range set.Pools {
			out, err := pool.Swap(types.TokenAsset, assetOut, zero, now)
			if err != nil {
				return zero, nil, err
			}
			outs[i] = out
			if minStable.IsNil() || out.LT(minStable) {
				minStable = out
			}
		}
		released, err := ledger.BurnCompleteSet(types.TokenStable, minStable)
		if err != nil {
			return zero, nil, err
		}
		for i, out := range outs {
			dust.Stable[i] = out.Sub(minStable)
		}
		profit := released.Sub(x)
		if !profit.IsPositive() {
			return zero, nil, types.ErrArbUnprofitable
		}
		return profit, dust, nil
	}
	return zero, nil, types.ErrArbUnprofitable
}

// checkBand asserts the committed spot price sits within the configured band
// of the conditional implied price.
func (e *Executor) checkBand(spot *amm.SpotPool, set *conditional.Set) error {
	implied := set.ImpliedPrice()
	if !implied.IsPositive() {
		return nil
	}
	diff := spot.Price().Sub(implied).Abs()
	tolerance := implied.MulInt64(int64(e.NoArbBandBps)).QuoInt64(types.BpsDenom)
	if diff.GT(tolerance) {
		return fmt.Errorf("%w: spot %s vs implied %s exceeds %d bps",
			types.ErrPriceBandViolated, spot.Price(), implied, e.NoArbBandBps)
	}
	return nil
}

// commit copies the staged clones over the live state and folds in new dust.
func (e *Executor) commit(spot *amm.SpotPool, set *conditional.Set, ledger *conditional.Ledger, dust *types.DustBalance) {
	*e.Spot = *spot
	if set != nil {
		*e.Set = *set
		*e.Ledger = *ledger
	}
	if dust != nil && e.Dust != nil {
		if err := e.Dust.Merge(dust); err != nil {
			e.log.Warn().Err(err).Msg("dust merge skipped")
		}
	}
}
