/*

This file contains the fee scheduler: a pure function that decays a swap fee
linearly from a launch value down to the pool's steady-state value.

*/

package fees

import "github.com/futarchylabs/famm/internal/types"

// CurrentFee returns the fee in basis points at `now` for a fee that started
// decaying at `startTime` from `initialBps` toward `finalBps` over
// `durationMs`. Pure function; the edge cases are checked in priority order.
func CurrentFee(initialBps, finalBps, durationMs, startTime, now uint64) uint64 {
	if durationMs == 0 {
		return finalBps
	}
	if finalBps >= initialBps {
		return finalBps
	}
	if now <= startTime {
		return initialBps
	}
	elapsed := now - startTime
	if elapsed >= durationMs {
		return finalBps
	}

	// initial <= 9900 and duration <= 86_400_000, so the product stays far
	// below the uint64 range.
	decay := (initialBps - finalBps) * elapsed / durationMs
	fee := initialBps - decay
	if fee < finalBps {
		fee = finalBps
	}
	return fee
}

// ScheduleFee evaluates a FeeSchedule against the pool's steady-state fee.
func ScheduleFee(s types.FeeSchedule, finalBps, startTime, now uint64) uint64 {
	return CurrentFee(s.InitialFeeBps, finalBps, s.DurationMs, startTime, now)
}
