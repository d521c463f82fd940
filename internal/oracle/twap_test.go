package oracle

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/require"

	"github.com/futarchylabs/famm/internal/types"
)

func dec(v int64) sdkmath.LegacyDec {
	return sdkmath.LegacyNewDec(v)
}

func TestOracleReadiness(t *testing.T) {
	require := require.New(t)

	o := New(1000, 5)
	require.False(o.Ready(5000), "oracle ready without any observation")

	o.Observe(dec(2), 0)
	require.False(o.Ready(999))
	require.True(o.Ready(1000))

	_, err := New(1000, 5).TWAP(500, 100)
	require.ErrorIs(err, types.ErrOracleNotReady)
}

func TestTWAPConstantPrice(t *testing.T) {
	require := require.New(t)

	o := New(1000, 5)
	o.Observe(dec(2), 0)

	avg, err := o.TWAP(1000, 1000)
	require.NoError(err)
	require.True(avg.Equal(dec(2)), "got %s", avg)
}

func TestTWAPWindowedAverage(t *testing.T) {
	require := require.New(t)

	o := New(1000, 5)
	o.Observe(dec(2), 0)
	o.Observe(dec(4), 1000)

	// The trailing 1000 ms saw only the new price.
	avg, err := o.TWAP(1000, 2000)
	require.NoError(err)
	require.True(avg.Equal(dec(4)), "got %s", avg)

	// The trailing 2000 ms saw 1000 ms at 2 and 1000 ms at 4.
	avg, err = o.TWAP(2000, 2000)
	require.NoError(err)
	require.True(avg.Equal(dec(3)), "got %s", avg)
}

func TestTWAPUsesRetainedHistoryWhenWindowTooLong(t *testing.T) {
	require := require.New(t)

	o := New(100, 5)
	o.Observe(dec(5), 0)
	o.Observe(dec(5), 500)

	avg, err := o.TWAP(1_000_000, 600)
	require.NoError(err)
	require.True(avg.Equal(dec(5)), "got %s", avg)
}

func TestLongAverageFallsBackToShortWindow(t *testing.T) {
	require := require.New(t)

	o := New(100, 10)
	o.Observe(dec(2), 0)
	o.Observe(dec(4), 1000)

	long, err := o.LongAverage(1000, 2000)
	require.NoError(err)
	short, err := o.TWAP(1000, 2000)
	require.NoError(err)
	require.True(long.Equal(short), "fallback long %s != short %s", long, short)
}

func TestLongAverageSpansRetainedCheckpoints(t *testing.T) {
	require := require.New(t)

	o := New(100, 2)
	o.Observe(dec(1), 0)
	o.Observe(dec(3), 100)

	// 100 ms at 1 then 100 ms at 3 averages to 2 over the full window.
	avg, err := o.LongAverage(50, 200)
	require.NoError(err)
	require.True(avg.Equal(dec(2)), "got %s", avg)
}

func TestObserveIgnoresStaleClock(t *testing.T) {
	require := require.New(t)

	o := New(100, 5)
	o.Observe(dec(2), 1000)
	o.Observe(dec(9), 500)

	require.True(o.LastPrice.Equal(dec(2)))
	require.Equal(uint64(1000), o.LastTimestamp)
}

func TestObserveSameTimestampReplacesPrice(t *testing.T) {
	require := require.New(t)

	o := New(100, 5)
	o.Observe(dec(2), 1000)
	o.Observe(dec(3), 1000)

	require.True(o.LastPrice.Equal(dec(3)))
	require.True(o.Cumulative.IsZero(), "same-timestamp observation must not accumulate")
}

func TestCloneIsIndependent(t *testing.T) {
	require := require.New(t)

	o := New(100, 5)
	o.Observe(dec(2), 0)
	cp := o.Clone()

	o.Observe(dec(10), 1000)
	require.True(cp.LastPrice.Equal(dec(2)))
	require.True(cp.Cumulative.IsZero())
}
