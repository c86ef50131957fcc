package sync

import (
	"log"
	"strings"
	"time"

	"talosync.gg/internal/gamelink"
	"talosync.gg/internal/hud"
)

// Goal completion needs 90 granted items before the Transcendence ending
// object can legitimately exist.
const transcendenceItemThreshold = 90

// DefaultGoalWarmup delays ending detection after startup or a slot
// switch: media players report stale URLs while the menu videos load.
const DefaultGoalWarmup = 20 * time.Second

const transcendencePath = "/Game/Cinematics/Sequences/Endings/Ending_Transcendence.Ending_Transcendence"

// Property names an engine media player may expose its current URL under.
var urlProps = []string{"Url", "URL", "CurrentUrl"}

// GoalDetector watches the world for evidence that the player finished the
// game. Three strategies run in order each pass, cheapest and most precise
// first; the first hit wins and the detector latches.
type GoalDetector struct {
	log    *log.Logger
	world  gamelink.World
	state  *State
	notify Notifier

	warmup       time.Duration
	startedAt    time.Time
	lastURLs     map[string]string
	lastComplete bool
	goalName     string
	now          func() time.Time
}

func NewGoalDetector(logger *log.Logger, world gamelink.World, state *State, notify Notifier, warmup time.Duration) *GoalDetector {
	if warmup <= 0 {
		warmup = DefaultGoalWarmup
	}
	g := &GoalDetector{
		log:    logger,
		world:  world,
		state:  state,
		notify: notify,
		warmup: warmup,
		now:    time.Now,
	}
	g.Reset()
	return g
}

// Reset restarts the warm-up window and clears per-slot detection state.
func (g *GoalDetector) Reset() {
	g.startedAt = g.now()
	g.lastURLs = map[string]string{}
	g.lastComplete = false
	g.goalName = ""
}

// Tick runs one detection pass. grantedCount is the number of items the
// server has granted this slot, used to gate the Transcendence check.
func (g *GoalDetector) Tick(grantedCount int) {
	if g.state.GoalFired() {
		return
	}
	if g.now().Sub(g.startedAt) < g.warmup {
		return
	}
	if name, ok := g.checkEndingVideo(); ok {
		g.fire(name)
		return
	}
	if grantedCount >= transcendenceItemThreshold && g.checkTranscendenceObject() {
		g.fire("Transcendence")
		return
	}
	if g.checkCompletedFlag() {
		g.fire("Unknown (polling fallback)")
	}
}

// GoalName returns the ending that fired the goal, or "".
func (g *GoalDetector) GoalName() string { return g.goalName }

func (g *GoalDetector) fire(name string) {
	if !g.state.MarkGoalFired() {
		return
	}
	g.goalName = name
	g.log.Printf("goal reached: %s", name)
	g.notify.Notify(hud.Text("Goal complete: "), hud.Segment{Text: name, Color: hud.ColorServer})
}

// checkEndingVideo scans ending cinematic players for a URL change to one
// of the known ending videos. Only the secondary sequential player carries
// ending footage; the primary plays ambient loops constantly.
func (g *GoalDetector) checkEndingVideo() (string, bool) {
	players, err := g.world.FindAllOf("BinkMediaPlayer")
	if err != nil {
		return "", false
	}
	for _, p := range players {
		full, err := p.FullName()
		if err != nil || !strings.Contains(full, "SequentialMediaPlayer_Secondary") {
			continue
		}
		url := ""
		for _, prop := range urlProps {
			if v, err := p.GetString(prop); err == nil && v != "" {
				url = v
				break
			}
		}
		if url == "" || g.lastURLs[full] == url {
			continue
		}
		g.lastURLs[full] = url
		if strings.Contains(url, "Ending_Ascension") {
			return "Ascension", true
		}
	}
	return "", false
}

// checkTranscendenceObject looks for the Transcendence ending sequence
// asset, which the engine only instantiates once that ending starts.
func (g *GoalDetector) checkTranscendenceObject() bool {
	_, err := g.world.StaticFindObject(transcendencePath)
	return err == nil
}

// checkCompletedFlag polls the game's own completion flag and fires on its
// false-to-true edge. Least precise: it cannot name the ending.
func (g *GoalDetector) checkCompletedFlag() bool {
	gs, err := g.world.FindFirstOf("GameState")
	if err != nil {
		return false
	}
	v, err := gs.Invoke("IsGameCompleted")
	if err != nil {
		return false
	}
	complete, ok := v.(bool)
	if !ok {
		return false
	}
	edge := complete && !g.lastComplete
	g.lastComplete = complete
	return edge
}
