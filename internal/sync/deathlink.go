package sync

import (
	"log"
	"time"

	"talosync.gg/internal/gamelink"
	"talosync.gg/internal/hud"
)

// How long an outgoing-suppression arm stays valid. If the teleported mine
// never produces a kill (player left the area, level unloaded) the flag
// must not eat the next genuine death.
const suppressionWindow = 10 * time.Second

// Mine actor classes searched when delivering an incoming death.
var mineClasses = []string{"BP_Mine_C", "BP_PassiveMine_C"}

// Notifier is the sliver of the HUD the sync passes need: one message per
// call, built from colored segments.
type Notifier interface {
	Notify(segments ...hud.Segment)
}

// DeathSender sends an outgoing death link to the session.
type DeathSender interface {
	SendDeathLink(cause string) error
}

// DeathLink bridges player deaths between the local game and the session.
//
// Outgoing: a death event from the world becomes a session broadcast,
// unless we inflicted that death ourselves (echo suppression). Incoming: a
// broadcast kills the player by teleporting a mine onto the pawn and
// letting the engine's own overlap tick do the rest; if no mine exists in
// the current level the death is deferred and re-armed after the next
// level transition settles.
//
// All methods run on the tick goroutine except QueueIncoming and
// NoteLocalDeath, which only touch fields behind the state atomics or
// simple assignments applied before the next pass reads them; the
// orchestrator serializes both through its event-drain step.
type DeathLink struct {
	log    *log.Logger
	world  gamelink.World
	state  *State
	notify Notifier
	sender DeathSender

	playerName string

	suppressUntil time.Time
	pendingOut    bool

	pendingIn     bool
	pendingSource string
	pendingCause  string
	deferredIn    bool

	now func() time.Time
}

func NewDeathLink(logger *log.Logger, world gamelink.World, state *State, notify Notifier, sender DeathSender, playerName string) *DeathLink {
	return &DeathLink{
		log:        logger,
		world:      world,
		state:      state,
		notify:     notify,
		sender:     sender,
		playerName: playerName,
		now:        time.Now,
	}
}

// QueueIncoming records a death link received from the session. The kill
// itself happens on the next gated pass, when world access is safe.
func (d *DeathLink) QueueIncoming(source, cause string) {
	if !d.state.DeathLinkEnabled() {
		return
	}
	d.pendingIn = true
	d.pendingSource = source
	d.pendingCause = cause
}

// NoteLocalDeath records a death event drained from the world. A set
// suppression flag means our own teleported mine caused it; consume the
// flag and stay quiet, unless it sat armed past its window, in which case
// this death is genuine after all.
func (d *DeathLink) NoteLocalDeath() {
	if !d.state.DeathLinkEnabled() {
		return
	}
	if !d.suppressUntil.IsZero() {
		expired := d.now().After(d.suppressUntil)
		d.suppressUntil = time.Time{}
		if !expired {
			return
		}
		d.log.Printf("stale suppression flag expired, treating death as genuine")
	}
	d.pendingOut = true
}

// TickIncoming delivers a queued incoming death. No mine in the level
// defers the death rather than dropping it; a target already dead drops it.
func (d *DeathLink) TickIncoming() {
	if !d.pendingIn {
		return
	}
	d.pendingIn = false

	msg := []hud.Segment{
		{Text: d.pendingSource, Color: hud.ColorPlayer},
		{Text: " has died.", Color: hud.ColorTrap},
	}
	if d.pendingCause != "" {
		msg = []hud.Segment{{Text: d.pendingCause, Color: hud.ColorTrap}}
	}

	pawn := d.playerPawn()
	if pawn != nil {
		if dead, err := pawn.GetBool("bIsDead"); err == nil && dead {
			d.log.Printf("death link ignored, player already dead (from %s)", d.pendingSource)
			return
		}
	}
	if d.killPlayer(pawn) {
		d.notify.Notify(msg...)
		d.log.Printf("death link delivered (from %s)", d.pendingSource)
		return
	}
	d.deferredIn = true
	d.notify.Notify(hud.Segment{Text: "Death is coming for you.", Color: hud.ColorTrap})
	d.log.Printf("death link deferred, no mine in level (from %s)", d.pendingSource)
}

// TickOutgoing broadcasts a pending local death, once.
func (d *DeathLink) TickOutgoing() {
	if !d.pendingOut {
		return
	}
	cause := d.playerName + " lost their way."
	if err := d.sender.SendDeathLink(cause); err != nil {
		d.log.Printf("send death link: %v", err)
		return
	}
	d.pendingOut = false
	d.log.Printf("death link sent")
}

// RearmDeferred promotes a deferred incoming death back to pending. Called
// when a level-transition cooldown expires and a new level's mines have
// had a chance to spawn.
func (d *DeathLink) RearmDeferred() {
	if !d.deferredIn {
		return
	}
	d.deferredIn = false
	d.pendingIn = true
	d.log.Printf("deferred death link re-armed (from %s)", d.pendingSource)
}

// Suppressed reports whether the echo guard is currently armed.
func (d *DeathLink) Suppressed() bool { return !d.suppressUntil.IsZero() }

// Deferred reports whether an incoming death awaits a usable mine.
func (d *DeathLink) Deferred() bool { return d.deferredIn }

func (d *DeathLink) playerPawn() gamelink.Entity {
	pc, err := d.world.FindFirstOf("PlayerController")
	if err != nil {
		return nil
	}
	pawn, err := pc.GetEntity("Pawn")
	if err != nil {
		return nil
	}
	return pawn
}

// killPlayer teleports the first available mine onto the player pawn. The
// engine's overlap tick detects the contact and performs the actual kill;
// invoking overlap callbacks directly from here is not safe.
func (d *DeathLink) killPlayer(pawn gamelink.Entity) bool {
	if pawn == nil {
		return false
	}
	root, err := pawn.GetEntity("RootComponent")
	if err != nil {
		return false
	}
	pos, err := root.GetVector("RelativeLocation")
	if err != nil {
		return false
	}

	for _, class := range mineClasses {
		mines, err := d.world.FindAllOf(class)
		if err != nil {
			continue
		}
		for _, mine := range mines {
			mroot, err := mine.GetEntity("RootComponent")
			if err != nil {
				continue
			}
			if err := mroot.SetVector("RelativeLocation", pos); err != nil {
				continue
			}
			// Push the transform through without waking overlap callbacks
			// this frame; the engine reconciles on its next tick.
			if _, err := mroot.Invoke("SetAbsolute", true, true, true); err == nil {
				mroot.Invoke("SetAbsolute", false, false, false)
			}
			d.suppressUntil = d.now().Add(suppressionWindow)
			return true
		}
	}
	return false
}
