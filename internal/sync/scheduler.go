package sync

import "time"

// Default interval between heavy work passes. The tick loop runs every
// frame; the gate keeps per-frame cost down to a handful of atomic checks.
const DefaultTickInterval = 200 * time.Millisecond

// TickGate rate-limits per-frame work to a wall-clock interval. The first
// call always passes so startup work is not delayed by a full interval.
// Not safe for concurrent use; the tick loop is single-threaded.
type TickGate struct {
	interval time.Duration
	last     time.Time
	frames   uint64
	now      func() time.Time
}

func NewTickGate(interval time.Duration) *TickGate {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &TickGate{interval: interval, now: time.Now}
}

// Allow counts the frame and reports whether enough wall time has elapsed
// since the last allowed frame.
func (g *TickGate) Allow() bool {
	g.frames++
	now := g.now()
	if !g.last.IsZero() && now.Sub(g.last) < g.interval {
		return false
	}
	g.last = now
	return true
}

// Frames returns the total number of frames observed.
func (g *TickGate) Frames() uint64 { return g.frames }
