package sync

import (
	"log"
	"sync/atomic"

	"talosync.gg/internal/gamelink"
	"talosync.gg/internal/hud"
)

// Debug services out-of-band troubleshooting requests. The request flags
// are set from signal handlers or a console and consumed on the gated
// tick, where world access is safe.
type Debug struct {
	log    *log.Logger
	world  gamelink.World
	ids    *IdentifierMap
	notify Notifier

	dumpRequested atomic.Bool
	testRequested atomic.Bool
}

func NewDebug(logger *log.Logger, world gamelink.World, ids *IdentifierMap, notify Notifier) *Debug {
	return &Debug{log: logger, world: world, ids: ids, notify: notify}
}

func (d *Debug) RequestDump()    { d.dumpRequested.Store(true) }
func (d *Debug) RequestHUDTest() { d.testRequested.Store(true) }

// Tick consumes any pending requests. Each flag is read-and-cleared
// exactly once per request.
func (d *Debug) Tick() {
	if d.dumpRequested.CompareAndSwap(true, false) {
		d.dumpCollection()
	}
	if d.testRequested.CompareAndSwap(true, false) {
		d.notify.Notify(
			hud.Text("HUD test: "),
			hud.Segment{Text: "if you can read this, ", Color: hud.ColorItem},
			hud.Segment{Text: "notifications work", Color: hud.ColorProgression},
		)
	}
}

func (d *Debug) dumpCollection() {
	col, err := d.world.AcquireCollection()
	if err != nil {
		d.log.Printf("debug dump: acquire collection: %v", err)
		return
	}
	entries, err := col.Entries()
	if err != nil {
		d.log.Printf("debug dump: enumerate collection: %v", err)
		return
	}
	d.log.Printf("collection dump: %d entries", len(entries))
	for _, e := range entries {
		modID := d.ids.FromWorldKey(e.Key)
		name := d.ids.DisplayNameFor(modID)
		if name == "" {
			name = "not ours"
		}
		d.log.Printf("  %-6s used=%-5v %s", e.Key, e.Used, name)
	}
}
