package sync

import (
	"log"
	"time"

	"talosync.gg/internal/gamelink"
)

// DefaultTransitionCooldown suspends world interaction after a level
// change while the new level streams in and old handles die.
const DefaultTransitionCooldown = 3 * time.Second

// Transitions applies world lifecycle events to session state. Death
// events are not handled here; the orchestrator routes those to the
// death-link bridge directly.
type Transitions struct {
	log      *log.Logger
	state    *State
	goal     *GoalDetector
	cooldown time.Duration
}

func NewTransitions(logger *log.Logger, state *State, goal *GoalDetector, cooldown time.Duration) *Transitions {
	if cooldown <= 0 {
		cooldown = DefaultTransitionCooldown
	}
	return &Transitions{log: logger, state: state, goal: goal, cooldown: cooldown}
}

func (t *Transitions) Apply(ev gamelink.Event) {
	switch ev.Kind {
	case gamelink.EventLevelTransition:
		t.log.Printf("level transition: %s", ev.Level)
		t.state.ArmTransitionCooldown(t.cooldown)
		t.state.RequestProgressRefresh()
		t.state.RequestRescan()
	case gamelink.EventSlotSwitch:
		t.log.Printf("save slot switched")
		t.state.ArmTransitionCooldown(t.cooldown)
		t.state.RequestProgressRefresh()
		t.state.RequestRescan()
		t.state.ResetGoal()
		t.goal.Reset()
	case gamelink.EventQuit:
		t.log.Printf("quit requested by world")
		t.state.RequestShutdown()
	}
}
