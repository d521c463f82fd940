package conditional

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/futarchylabs/famm/internal/types"
)

func TestNewLedgerRequiresTwoOutcomes(t *testing.T) {
	require := require.New(t)

	_, err := NewLedger(1)
	require.ErrorIs(err, types.ErrOutcomeMismatch)

	l, err := NewLedger(3)
	require.NoError(err)
	require.Equal(3, l.OutcomeCount)
	require.True(l.EscrowedAsset.IsZero())
	require.True(l.EscrowedStable.IsZero())
}

func TestMintCompleteSetMintsEveryOutcome(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(3)
	require.NoError(err)

	require.NoError(l.MintCompleteSet(types.TokenStable, sdkmath.NewInt(500)))
	require.Equal(int64(500), l.EscrowedStable.Int64())
	for i := 0; i < 3; i++ {
		require.Equal(int64(500), l.MintedStable[i].Int64(), "outcome %d", i)
		require.True(l.MintedAsset[i].IsZero(), "outcome %d", i)
	}

	require.ErrorIs(l.MintCompleteSet(types.TokenStable, sdkmath.ZeroInt()), types.ErrZeroAmount)
}

func TestMintBurnRoundTrip(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(2)
	require.NoError(err)

	require.NoError(l.MintCompleteSet(types.TokenAsset, sdkmath.NewInt(1000)))
	released, err := l.BurnCompleteSet(types.TokenAsset, sdkmath.NewInt(1000))
	require.NoError(err)
	require.Equal(int64(1000), released.Int64())

	// A full round trip restores the empty ledger exactly.
	require.True(l.EscrowedAsset.IsZero())
	for i := 0; i < 2; i++ {
		require.True(l.MintedAsset[i].IsZero())
	}
}

func TestBurnCompleteSetRequiresEveryOutcome(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(2)
	require.NoError(err)

	require.NoError(l.MintCompleteSet(types.TokenStable, sdkmath.NewInt(1000)))
	require.NoError(l.BurnOutcome(1, types.TokenStable, sdkmath.NewInt(600)))

	// Outcome 1 only holds 400, so a 500-per-outcome burn must fail whole.
	_, err = l.BurnCompleteSet(types.TokenStable, sdkmath.NewInt(500))
	require.ErrorIs(err, types.ErrLedgerUnderflow)
	require.Equal(int64(1000), l.EscrowedStable.Int64())
	require.Equal(int64(1000), l.MintedStable[0].Int64())
}

func TestBurnCompleteSetEscrowUnderflow(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(2)
	require.NoError(err)

	// Supplies exist but the asset escrow does not cover the release.
	require.NoError(l.MintCompleteSet(types.TokenAsset, sdkmath.NewInt(300)))
	l.EscrowedAsset = sdkmath.NewInt(100)

	_, err = l.BurnCompleteSet(types.TokenAsset, sdkmath.NewInt(300))
	require.ErrorIs(err, types.ErrEscrowUnderflow)
}

func TestBurnOutcomeBounds(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(2)
	require.NoError(err)

	require.NoError(l.MintCompleteSet(types.TokenAsset, sdkmath.NewInt(100)))

	require.ErrorIs(l.BurnOutcome(5, types.TokenAsset, sdkmath.NewInt(10)), types.ErrOutcomeMismatch)
	require.ErrorIs(l.BurnOutcome(-1, types.TokenAsset, sdkmath.NewInt(10)), types.ErrOutcomeMismatch)
	require.ErrorIs(l.BurnOutcome(0, types.TokenAsset, sdkmath.NewInt(200)), types.ErrLedgerUnderflow)
	require.NoError(l.BurnOutcome(0, types.TokenAsset, sdkmath.NewInt(100)))
	require.True(l.MintedAsset[0].IsZero())

	// Escrow does not move on a single-outcome burn.
	require.Equal(int64(100), l.EscrowedAsset.Int64())
}

func TestResolveDrainsEscrow(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(2)
	require.NoError(err)

	require.NoError(l.MintCompleteSet(types.TokenAsset, sdkmath.NewInt(700)))
	require.NoError(l.MintCompleteSet(types.TokenStable, sdkmath.NewInt(900)))

	_, _, err = l.Resolve(9)
	require.ErrorIs(err, types.ErrOutcomeMismatch)

	asset, stable, err := l.Resolve(1)
	require.NoError(err)
	require.Equal(int64(700), asset.Int64())
	require.Equal(int64(900), stable.Int64())

	require.True(l.EscrowedAsset.IsZero())
	require.True(l.EscrowedStable.IsZero())
	for i := 0; i < 2; i++ {
		require.True(l.MintedAsset[i].IsZero())
		require.True(l.MintedStable[i].IsZero())
	}
}

func TestLedgerCloneIsolation(t *testing.T) {
	require := require.New(t)
	l, err := NewLedger(2)
	require.NoError(err)

	require.NoError(l.MintCompleteSet(types.TokenStable, sdkmath.NewInt(100)))
	cp := l.Clone()
	require.NoError(cp.MintCompleteSet(types.TokenStable, sdkmath.NewInt(400)))

	require.Equal(int64(100), l.EscrowedStable.Int64())
	require.Equal(int64(100), l.MintedStable[0].Int64())
	require.Equal(int64(500), cp.EscrowedStable.Int64())
}
