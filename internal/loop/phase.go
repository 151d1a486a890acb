package loop

import "math"

// CompletedLoops counts the full loops the voice has finished by the
// given time. The offset is added to the elapsed time because it encodes
// how far into its loop the voice already was at the origin; at a fresh
// start the count is 0, so the generic formula already yields the correct
// first trigger with no special bootstrap path.
func CompletedLoops(v Voice, origin, now float64) int64 {
	return int64(math.Floor(((now - origin) + v.Offset) / v.Period))
}

// TriggerInstant returns the absolute time of the voice's k-th reference
// crossing after the origin. The scheduler walks k upward to commit each
// crossing exactly once.
func TriggerInstant(v Voice, origin float64, k int64) float64 {
	return origin + float64(k)*v.Period - v.Offset
}

// NextTriggerAfter returns the smallest absolute time >= now at which the
// voice's phase crosses the reference point. It is derived only from the
// origin, the offset and the period, never from "time since last
// trigger", so repeated recomputation cannot accumulate drift.
func NextTriggerAfter(v Voice, origin, now float64) float64 {
	return TriggerInstant(v, origin, CompletedLoops(v, origin, now)+1)
}

// PhaseAt maps an absolute time to the voice's phase in [0, 1). The
// leading "1 -" makes the phase run against elapsed time, matching the
// direction the renderer moves its indicators relative to the fixed
// reference marker. At the exact instants NextTriggerAfter returns, the
// phase is 0 (mod 1); both functions are views of the same elapsed-time
// formula and must stay algebraically consistent.
func PhaseAt(v Voice, origin, t float64) float64 {
	x := (t - origin + v.Offset) / v.Period
	p := 1 - (x - math.Floor(x))
	if p >= 1 {
		p -= 1
	}
	return p
}

// RestPhase is the phase shown while the transport is idle: the "time =
// origin" convention, so the renderer has a meaningful arrangement before
// playback begins.
func RestPhase(v Voice) float64 {
	return PhaseAt(v, 0, 0)
}
