package sync

import (
	"log"
	"time"

	"talosync.gg/internal/gamelink"
	"talosync.gg/internal/hud"
)

// ClientEventKind tags an inbound session event.
type ClientEventKind int

const (
	// EventConnected: handshake confirmed, slot accepted.
	EventConnected ClientEventKind = iota
	// EventItemsReset: the server is about to replay the full receipt
	// history from index zero.
	EventItemsReset
	// EventItemReceived: one granted item.
	EventItemReceived
	// EventDeathLinkReceived: another player died.
	EventDeathLinkReceived
)

// ClientEvent is one inbound session event, already decoded.
type ClientEvent struct {
	Kind ClientEventKind

	// EventConnected
	CheckedLocations []int64

	// EventItemReceived
	ItemID int64

	// EventDeathLinkReceived
	Source string
	Cause  string
}

// Client is the session connection as the orchestrator sees it. Poll must
// never block; a stalled network must not stall the tick goroutine.
type Client interface {
	Poll() []ClientEvent
	SendLocationCheck(locationID int64) error
	SendDeathLink(cause string) error
	SendGoalComplete() error
}

// Recorder journals notable session moments. May be nil.
type Recorder interface {
	Record(kind string, detail map[string]any)
}

// Core sequences every sync pass. One Tick per host frame; heavy work only
// when the gate opens. Single goroutine, no internal locking beyond what
// State and Progress carry.
type Core struct {
	log      *log.Logger
	world    gamelink.World
	client   Client
	state    *State
	progress *Progress
	ids      *IdentifierMap
	notify   Notifier

	gate  *TickGate
	inv   *Inventory
	dl    *DeathLink
	goal  *GoalDetector
	vis   *Visibility
	debug *Debug
	trans *Transitions

	rec       Recorder
	refreshFn func()
}

// CoreConfig collects the knobs cmd/bridge wires from file config.
type CoreConfig struct {
	TickInterval       time.Duration
	TransitionCooldown time.Duration
	GoalWarmup         time.Duration
	PlayerName         string
}

func NewCore(logger *log.Logger, world gamelink.World, client Client, state *State, progress *Progress, ids *IdentifierMap, notify Notifier, cfg CoreConfig) *Core {
	c := &Core{
		log:      logger,
		world:    world,
		client:   client,
		state:    state,
		progress: progress,
		ids:      ids,
		notify:   notify,
		gate:     NewTickGate(cfg.TickInterval),
	}
	c.inv = NewInventory(logger, world, ids, state)
	c.dl = NewDeathLink(logger, world, state, notify, client, cfg.PlayerName)
	c.goal = NewGoalDetector(logger, world, state, notify, cfg.GoalWarmup)
	c.vis = NewVisibility(logger, world, ids, state, progress, client)
	c.debug = NewDebug(logger, world, ids, notify)
	c.trans = NewTransitions(logger, state, c.goal, cfg.TransitionCooldown)
	return c
}

// SetRecorder attaches an event journal.
func (c *Core) SetRecorder(r Recorder) { c.rec = r }

// SetRefreshFunc attaches the deferred progress refresh, typically a
// reload from the local progress store.
func (c *Core) SetRefreshFunc(fn func()) { c.refreshFn = fn }

// Debug exposes the troubleshooting one-shots for signal handlers.
func (c *Core) Debug() *Debug { return c.debug }

// GoalName returns the detected ending, or "".
func (c *Core) GoalName() string { return c.goal.GoalName() }

// Tick runs one pass. The order is load-bearing: session and world events
// drain every frame so network and engine stay responsive, everything else
// waits for the gate and respects the transition cooldown.
func (c *Core) Tick() {
	if c.state.ShuttingDown() {
		return
	}

	for _, ev := range c.client.Poll() {
		c.applyClientEvent(ev)
	}
	c.drainWorldEvents()

	if !c.gate.Allow() {
		return
	}

	active, expired := c.state.InTransitionCooldown(time.Now())
	if active {
		return
	}
	if expired {
		c.dl.RearmDeferred()
	}

	if c.state.TakeProgressRefresh() && c.refreshFn != nil {
		c.refreshFn()
	}

	c.dl.TickIncoming()
	c.dl.TickOutgoing()
	c.debug.Tick()

	if c.state.TakeRescanRequest() {
		c.log.Printf("rescanning level after transition")
		c.vis.Enforce()
	}

	if err := c.inv.Enforce(c.progress.Granted()); err != nil {
		c.log.Printf("reconcile: %v", err)
	}
	c.vis.Enforce()
	c.vis.RetryFenceOpens()

	c.goal.Tick(c.progress.GrantedCount())
	c.reportGoal()
}

func (c *Core) applyClientEvent(ev ClientEvent) {
	switch ev.Kind {
	case EventConnected:
		c.ids.ResetCounters()
		c.reportResumedChecks(ev.CheckedLocations)
		c.progress.SeedChecked(ev.CheckedLocations)
		c.state.EnableSync()
		c.notify.Notify(hud.Segment{Text: "Connected to session", Color: hud.ColorServer})
		c.log.Printf("session connected, %d locations already checked", len(ev.CheckedLocations))
		c.record("connected", map[string]any{"checked": len(ev.CheckedLocations)})

	case EventItemsReset:
		c.ids.ResetCounters()
		c.progress.ResetGranted()
		c.log.Printf("full item replay starting")

	case EventItemReceived:
		modID, ok := c.ids.ResolveNext(ev.ItemID)
		if !ok {
			return
		}
		worldKey := c.ids.ToWorldKey(modID)
		if !c.progress.Grant(worldKey) {
			return
		}
		color := hud.ColorItem
		if IsPurpleSigil(modID) {
			color = hud.ColorProgression
		}
		c.notify.Notify(hud.Text("Received "), hud.Segment{Text: c.ids.DisplayName(ev.ItemID), Color: color})
		c.record("item", map[string]any{"id": ev.ItemID, "object": modID})
		if IsPurpleSigil(modID) {
			c.vis.RequestFenceOpen(modID)
		}

	case EventDeathLinkReceived:
		c.dl.QueueIncoming(ev.Source, ev.Cause)
		c.record("deathlink_in", map[string]any{"source": ev.Source})
	}
}

// reportResumedChecks pushes locations checked while disconnected (resumed
// from the slot store, or found after a send failed) up to the server. A
// failed send here stays in the local set and is pushed again on the next
// handshake, since the server replays CONNECTED on every reconnect.
func (c *Core) reportResumedChecks(serverChecked []int64) {
	known := make(map[int64]bool, len(serverChecked))
	for _, id := range serverChecked {
		known[id] = true
	}
	for _, id := range c.progress.Checked() {
		if known[id] {
			continue
		}
		if err := c.client.SendLocationCheck(id); err != nil {
			c.log.Printf("report resumed check %d: %v", id, err)
			continue
		}
		c.log.Printf("resumed check reported: %s (%d)", c.ids.LocationName(id), id)
	}
}

// drainWorldEvents empties the world's event queue without blocking.
func (c *Core) drainWorldEvents() {
	for {
		select {
		case ev := <-c.world.Events():
			if ev.Kind == gamelink.EventDeath {
				c.dl.NoteLocalDeath()
				c.record("death", nil)
				continue
			}
			c.trans.Apply(ev)
		default:
			return
		}
	}
}

func (c *Core) reportGoal() {
	if !c.state.GoalFired() || !c.state.SyncEnabled() {
		return
	}
	if !c.state.MarkGoalSent() {
		return
	}
	if err := c.client.SendGoalComplete(); err != nil {
		c.log.Printf("report goal: %v", err)
		c.state.UnmarkGoalSent()
		return
	}
	c.log.Printf("goal reported: %s", c.goal.GoalName())
	c.record("goal", map[string]any{"ending": c.goal.GoalName()})
}

func (c *Core) record(kind string, detail map[string]any) {
	if c.rec != nil {
		c.rec.Record(kind, detail)
	}
}
