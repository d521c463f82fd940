/*

This file contains the time-weighted average price oracle. It accumulates a
cumulative price integral (price * elapsed ms) on every price-moving
operation and answers windowed averages as ratios of integral differences.

*/

package oracle

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/futarchylabs/famm/internal/types"
)

// Checkpoint records the cumulative integral at one observation time.
type Checkpoint struct {
	Timestamp  uint64            `json:"timestamp"`
	Cumulative sdkmath.LegacyDec `json:"cumulative"`
}

// PriceOracle tracks the cumulative price-time integral for one pool.
// Timestamps are caller-supplied monotonic milliseconds; the oracle never
// reads a system clock.
type PriceOracle struct {
	MinWindowMs uint64 `json:"min_window_ms"`
	LongPeriods int    `json:"long_periods"`

	FirstObservedAt uint64            `json:"first_observed_at"`
	LastTimestamp   uint64            `json:"last_timestamp"`
	LastPrice       sdkmath.LegacyDec `json:"last_price"`
	Cumulative      sdkmath.LegacyDec `json:"cumulative"`

	initialized bool
	checkpoints []Checkpoint
}

// New returns an oracle that becomes ready once minWindowMs of history has
// accumulated, retaining up to longPeriods checkpoints for the long average.
func New(minWindowMs uint64, longPeriods int) *PriceOracle {
	return &PriceOracle{
		MinWindowMs: minWindowMs,
		LongPeriods: longPeriods,
		LastPrice:   sdkmath.LegacyZeroDec(),
		Cumulative:  sdkmath.LegacyZeroDec(),
	}
}

// Initialized reports whether the oracle has seen at least one observation.
func (o *PriceOracle) Initialized() bool {
	return o.initialized
}

// Ready reports whether enough history exists for averages to be meaningful.
func (o *PriceOracle) Ready(now uint64) bool {
	return o.Initialized() && now-o.FirstObservedAt >= o.MinWindowMs
}

// Observe folds the price that held until `now` into the cumulative integral
// and records the new marginal price. Called with the pre-trade price before
// every price-moving operation.
func (o *PriceOracle) Observe(price sdkmath.LegacyDec, now uint64) {
	if !o.Initialized() {
		o.initialized = true
		o.FirstObservedAt = now
		o.LastTimestamp = now
		o.LastPrice = price
		o.pushCheckpoint(now)
		return
	}
	if now < o.LastTimestamp {
		// Clock values are monotonic by contract; ignore a stale one.
		return
	}
	if now == o.LastTimestamp {
		o.LastPrice = price
		return
	}
	elapsed := now - o.LastTimestamp
	o.Cumulative = o.Cumulative.Add(o.LastPrice.MulInt64(int64(elapsed)))
	o.LastTimestamp = now
	o.LastPrice = price
	o.pushCheckpoint(now)
}

func (o *PriceOracle) pushCheckpoint(now uint64) {
	o.checkpoints = append(o.checkpoints, Checkpoint{Timestamp: now, Cumulative: o.Cumulative})
	if o.LongPeriods > 0 && len(o.checkpoints) > o.LongPeriods {
		o.checkpoints = o.checkpoints[len(o.checkpoints)-o.LongPeriods:]
	}
}

// projected returns the integral extended from the last observation to `now`
// at the last marginal price.
func (o *PriceOracle) projected(now uint64) sdkmath.LegacyDec {
	if now <= o.LastTimestamp {
		return o.Cumulative
	}
	return o.Cumulative.Add(o.LastPrice.MulInt64(int64(now - o.LastTimestamp)))
}

// TWAP returns the average price over the trailing window, computed as the
// ratio of integral differences. If retained history is shorter than the
// window, the full retained history is used.
func (o *PriceOracle) TWAP(windowMs, now uint64) (sdkmath.LegacyDec, error) {
	if !o.Initialized() || len(o.checkpoints) == 0 {
		return sdkmath.LegacyDec{}, types.ErrOracleNotReady
	}

	var cutoff uint64
	if now > windowMs {
		cutoff = now - windowMs
	}

	// Newest checkpoint at or before the window start; the oldest retained
	// checkpoint when the window predates retained history.
	anchor := o.checkpoints[0]
	for i := len(o.checkpoints) - 1; i >= 0; i-- {
		if o.checkpoints[i].Timestamp <= cutoff {
			anchor = o.checkpoints[i]
			break
		}
	}

	if now <= anchor.Timestamp {
		return o.LastPrice, nil
	}
	elapsed := now - anchor.Timestamp
	return o.projected(now).Sub(anchor.Cumulative).QuoInt64(int64(elapsed)), nil
}

// LongAverage returns the average over the retained long window, falling back
// to the short window when insufficient history exists.
func (o *PriceOracle) LongAverage(shortWindowMs, now uint64) (sdkmath.LegacyDec, error) {
	if !o.Initialized() {
		return sdkmath.LegacyDec{}, types.ErrOracleNotReady
	}
	if len(o.checkpoints) < o.LongPeriods {
		return o.TWAP(shortWindowMs, now)
	}
	anchor := o.checkpoints[0]
	if now <= anchor.Timestamp {
		return o.LastPrice, nil
	}
	elapsed := now - anchor.Timestamp
	return o.projected(now).Sub(anchor.Cumulative).QuoInt64(int64(elapsed)), nil
}

// CumulativeAt returns the integral projected to `now` for snapshotting.
func (o *PriceOracle) CumulativeAt(now uint64) sdkmath.LegacyDec {
	return o.projected(now)
}

// Clone returns a deep copy for staged mutation.
func (o *PriceOracle) Clone() *PriceOracle {
	if o == nil {
		return nil
	}
	cp := *o
	cp.checkpoints = make([]Checkpoint, len(o.checkpoints))
	copy(cp.checkpoints, o.checkpoints)
	return &cp
}

func (o *PriceOracle) String() string {
	return fmt.Sprintf("oracle{last=%s cum=%s n=%d}", o.LastPrice, o.Cumulative, len(o.checkpoints))
}
