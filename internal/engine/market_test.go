package engine

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/futarchylabs/famm/internal/types"
)

func testParams() types.EngineParameters {
	return types.EngineParameters{
		SpotFeeBps:            30,
		ConditionalFeeBps:     100,
		LaunchFeeBps:          0,
		FeeDecayDurationMs:    0,
		ProtocolFeeShareBps:   0,
		LiquidityRatioPercent: 20,
		NoArbBandBps:          1000,
		MinArbProfit:          100,
		ProposalCooldownMs:    10_000,
		TwapWindowMs:          1000,
		LongWindowPeriods:     4,
		MinOracleWindowMs:     1000,
		MinLiquidity:          1000,
	}
}

func newSeededMarket(t *testing.T) *Market {
	t.Helper()
	m, err := NewMarket(testParams(), 0)
	require.NoError(t, err)
	_, err = m.AddLiquidity(sdkmath.NewInt(1_000_000), sdkmath.NewInt(1_500_000), sdkmath.ZeroInt(), 0)
	require.NoError(t, err)
	return m
}

func tradingProposal(id uint64) *types.StaticProposal {
	return &types.StaticProposal{ID: id, Outcomes: 2, DAOLiquidity: true, Trading: true}
}

func TestNewMarketRejectsInvalidParameters(t *testing.T) {
	require := require.New(t)

	params := testParams()
	params.NoArbBandBps = 0
	_, err := NewMarket(params, 0)
	require.Error(err)
}

func TestOpenProposalMarketLocksLiquidity(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	require.NoError(m.OpenProposalMarket(tradingProposal(7), 2000))
	require.True(m.ProposalActive())

	snap := m.Snapshot(2000, 1)
	require.NotNil(snap.ActiveProposalID)
	require.Equal(uint64(7), *snap.ActiveProposalID)

	// 20% of each side moved out of the spot pool and into escrow.
	require.Equal(int64(800_000), snap.AssetReserve.Int64())
	require.Equal(int64(1_200_000), snap.StableReserve.Int64())
	require.Equal(int64(200_000), snap.EscrowedAsset.Int64())
	require.Equal(int64(300_000), snap.EscrowedStable.Int64())

	// Outcome pools open at the oracle's initialization price of 1.5.
	require.Len(snap.Outcomes, 2)
	for _, o := range snap.Outcomes {
		require.Equal(int64(100_000), o.AssetReserve.Int64())
		require.Equal(int64(150_000), o.StableReserve.Int64())
	}
}

func TestOpenProposalMarketGuards(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	// The oracle has no 1000 ms of history yet.
	require.ErrorIs(m.OpenProposalMarket(tradingProposal(1), 500), types.ErrOracleNotReady)

	// Outside the trading phase nothing may open.
	idle := tradingProposal(2)
	idle.Trading = false
	require.Error(m.OpenProposalMarket(idle, 2000))

	require.NoError(m.OpenProposalMarket(tradingProposal(3), 2000))
	require.ErrorIs(m.OpenProposalMarket(tradingProposal(4), 2500), types.ErrProposalActive)

	// Spot liquidity is frozen while the proposal trades.
	_, err := m.AddLiquidity(sdkmath.NewInt(1000), sdkmath.NewInt(1500), sdkmath.ZeroInt(), 3000)
	require.ErrorIs(err, types.ErrProposalActive)
}

func TestOpenProposalMarketSkipsNonDAOLiquidity(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	p := tradingProposal(9)
	p.DAOLiquidity = false
	require.NoError(m.OpenProposalMarket(p, 2000))
	require.False(m.ProposalActive())
}

func TestFinalizeRestoresSpotReserves(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	p := tradingProposal(7)
	require.NoError(m.OpenProposalMarket(p, 2000))

	require.ErrorIs(m.FinalizeProposalMarket(3000), types.ErrProposalNotFinal)

	p.Finalized = true
	p.Winner = 1
	require.NoError(m.FinalizeProposalMarket(4000))
	require.False(m.ProposalActive())

	// Without any trading the escrow returns exactly what was locked.
	snap := m.Snapshot(4000, 1)
	require.Equal(int64(1_000_000), snap.AssetReserve.Int64())
	require.Equal(int64(1_500_000), snap.StableReserve.Int64())
	require.True(snap.EscrowedAsset.IsZero())
	require.True(snap.EscrowedStable.IsZero())
	require.Nil(snap.ActiveProposalID)

	// The cool-down blocks the next proposal until it elapses.
	require.ErrorIs(m.OpenProposalMarket(tradingProposal(8), 5000), types.ErrCooldownNotElapsed)
	require.NoError(m.OpenProposalMarket(tradingProposal(8), 15_000))
}

func TestFinalizeWithoutMarket(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	require.ErrorIs(m.FinalizeProposalMarket(1000), types.ErrNoActiveProposal)
}

func TestSwapDuringProposalKeepsPricesAligned(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	require.NoError(m.OpenProposalMarket(tradingProposal(7), 2000))

	res, err := m.Swap(types.TokenStable, sdkmath.NewInt(50_000), sdkmath.ZeroInt(), 3000)
	require.NoError(err)
	require.True(res.AmountOut.IsPositive())

	// A buy this large opens a spread the executor must close back into the
	// 10% band around the conditional implied price.
	snap := m.Snapshot(3000, 1)
	implied := sdkmath.LegacyZeroDec()
	for _, o := range snap.Outcomes {
		implied = implied.Add(sdkmath.LegacyNewDecFromInt(o.StableReserve).Quo(sdkmath.LegacyNewDecFromInt(o.AssetReserve)))
	}
	implied = implied.QuoInt64(int64(len(snap.Outcomes)))

	spot := m.SpotPrice()
	diff := spot.Sub(implied).Abs()
	tolerance := implied.MulInt64(1000).QuoInt64(types.BpsDenom)
	require.True(diff.LTE(tolerance), "spot %s vs implied %s outside band", spot, implied)
}

func TestSnapshotReportsDustWhileProposalActive(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	p := tradingProposal(7)
	require.NoError(m.OpenProposalMarket(p, 2000))
	_, err := m.Swap(types.TokenStable, sdkmath.NewInt(50_000), sdkmath.ZeroInt(), 3000)
	require.NoError(err)

	snap := m.Snapshot(3000, 1)
	require.NotNil(snap.Dust)
	require.Equal(2, snap.Dust.OutcomeCount())

	// After finalization the dust loses its backing and leaves the snapshot.
	p.Finalized = true
	p.Winner = 0
	require.NoError(m.FinalizeProposalMarket(4000))
	require.Nil(m.Snapshot(4000, 2).Dust)
}

func TestQuoteSwapDoesNotMutate(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	require.NoError(m.OpenProposalMarket(tradingProposal(7), 2000))
	before := m.Snapshot(2500, 1)

	q, err := m.QuoteSwap(types.TokenStable, sdkmath.NewInt(50_000), 2500)
	require.NoError(err)
	require.True(q.DirectOutput.IsPositive())

	after := m.Snapshot(2500, 2)
	require.True(before.AssetReserve.Equal(after.AssetReserve))
	require.True(before.StableReserve.Equal(after.StableReserve))
	require.True(before.EscrowedStable.Equal(after.EscrowedStable))
}

func TestRemoveLiquidityOutsideProposal(t *testing.T) {
	require := require.New(t)
	m := newSeededMarket(t)

	assetOut, stableOut, err := m.RemoveLiquidity(sdkmath.NewInt(100_000), sdkmath.ZeroInt(), sdkmath.ZeroInt(), 1000)
	require.NoError(err)
	require.True(assetOut.IsPositive())
	require.True(stableOut.IsPositive())
}
