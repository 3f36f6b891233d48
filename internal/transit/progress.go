// Package transit holds the pure time/route math behind letter and flight
// movement: progress over a time interval, position along a waypoint route,
// and the letter lifecycle state machine. Nothing here touches storage or
// the clock; callers pass "now" in.
package transit

import "time"

// Progress returns the fraction of the [start, end] interval elapsed at now,
// clamped to [0,1]. Degenerate intervals (end not after start) yield 0 so
// callers never divide by zero.
func Progress(start, end, now time.Time) float64 {
	total := end.Sub(start)
	if total <= 0 {
		return 0
	}
	frac := float64(now.Sub(start)) / float64(total)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}
