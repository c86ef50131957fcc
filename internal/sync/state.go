package sync

import (
	"sync/atomic"
	"time"
)

// State holds the cross-cutting flags the tick loop and the session
// callbacks coordinate through. Everything here may be touched from the
// tick goroutine and the session apply path, so all fields are atomics.
type State struct {
	shutdown    atomic.Bool
	syncEnabled atomic.Bool
	goalFired   atomic.Bool
	goalSent    atomic.Bool

	deferredProgressRefresh atomic.Bool
	rescanRequested         atomic.Bool

	// Unix-nano deadline until which world interaction is suppressed after
	// a level transition. Zero means no cooldown active.
	transitionCooldownUntil atomic.Int64

	// Option toggles, set once from config at startup.
	deathLinkEnabled     atomic.Bool
	randomizePurpleSigil atomic.Bool
	randomizeStars       atomic.Bool
	reusableTetrominoes  atomic.Bool
}

func NewState() *State { return &State{} }

func (s *State) RequestShutdown()  { s.shutdown.Store(true) }
func (s *State) ShuttingDown() bool { return s.shutdown.Load() }

// EnableSync marks the slot as connected and authenticated; collection
// enforcement and location sends stay inert until this is set.
func (s *State) EnableSync()      { s.syncEnabled.Store(true) }
func (s *State) DisableSync()     { s.syncEnabled.Store(false) }
func (s *State) SyncEnabled() bool { return s.syncEnabled.Load() }

func (s *State) MarkGoalFired() bool { return s.goalFired.CompareAndSwap(false, true) }
func (s *State) GoalFired() bool     { return s.goalFired.Load() }
func (s *State) MarkGoalSent() bool  { return s.goalSent.CompareAndSwap(false, true) }

// UnmarkGoalSent backs out a failed goal report so it retries next pass.
func (s *State) UnmarkGoalSent() { s.goalSent.Store(false) }

// ResetGoal clears goal latches, used when the player switches slots.
func (s *State) ResetGoal() {
	s.goalFired.Store(false)
	s.goalSent.Store(false)
}

func (s *State) RequestProgressRefresh()     { s.deferredProgressRefresh.Store(true) }
func (s *State) TakeProgressRefresh() bool   { return s.deferredProgressRefresh.CompareAndSwap(true, false) }
func (s *State) RequestRescan()              { s.rescanRequested.Store(true) }
func (s *State) TakeRescanRequest() bool     { return s.rescanRequested.CompareAndSwap(true, false) }

// ArmTransitionCooldown suppresses world interaction for d from now.
func (s *State) ArmTransitionCooldown(d time.Duration) {
	s.transitionCooldownUntil.Store(time.Now().Add(d).UnixNano())
}

// InTransitionCooldown reports whether the cooldown is still running. When
// it has just expired the deadline is cleared and expired=true is returned
// exactly once, so the caller can run its edge-triggered work.
func (s *State) InTransitionCooldown(now time.Time) (active, expired bool) {
	until := s.transitionCooldownUntil.Load()
	if until == 0 {
		return false, false
	}
	if now.UnixNano() < until {
		return true, false
	}
	if s.transitionCooldownUntil.CompareAndSwap(until, 0) {
		return false, true
	}
	return false, false
}

func (s *State) SetDeathLinkEnabled(v bool)     { s.deathLinkEnabled.Store(v) }
func (s *State) DeathLinkEnabled() bool         { return s.deathLinkEnabled.Load() }
func (s *State) SetRandomizePurpleSigils(v bool) { s.randomizePurpleSigil.Store(v) }
func (s *State) RandomizePurpleSigils() bool    { return s.randomizePurpleSigil.Load() }
func (s *State) SetRandomizeStars(v bool)       { s.randomizeStars.Store(v) }
func (s *State) RandomizeStars() bool           { return s.randomizeStars.Load() }
func (s *State) SetReusableTetrominoes(v bool)  { s.reusableTetrominoes.Store(v) }
func (s *State) ReusableTetrominoes() bool      { return s.reusableTetrominoes.Load() }
