// Package hud pushes on-screen notifications through the game's HUD
// actor. Messages queue until a HUD exists; losing the HUD mid-session
// (menu, level load) just queues again.
package hud

import (
	"log"
	"strings"
	"sync"

	"talosync.gg/internal/gamelink"
)

// Color tags understood by the in-game message widget.
const (
	ColorDefault     = "white"
	ColorPlayer      = "magenta"
	ColorItem        = "cyan"
	ColorProgression = "plum"
	ColorTrap        = "salmon"
	ColorServer      = "yellow"
)

const maxQueued = 64

const hudClass = "BP_SyncHUD_C"

// Segment is one colored run of text within a notification line.
type Segment struct {
	Text  string
	Color string
}

// Text wraps a plain string as a default-colored segment.
func Text(s string) Segment {
	return Segment{Text: s, Color: ColorDefault}
}

// Notifier queues messages and flushes them to the HUD actor on the tick
// goroutine. Notify is safe from any goroutine and never blocks; when the
// queue is full the oldest message is dropped.
type Notifier struct {
	log   *log.Logger
	world gamelink.World

	mu    sync.Mutex
	queue [][]Segment
}

func NewNotifier(logger *log.Logger, world gamelink.World) *Notifier {
	return &Notifier{log: logger, world: world}
}

// Notify queues one notification line built from colored segments.
func (n *Notifier) Notify(segments ...Segment) {
	if len(segments) == 0 {
		return
	}
	msg := make([]Segment, len(segments))
	for i, s := range segments {
		if s.Color == "" {
			s.Color = ColorDefault
		}
		msg[i] = s
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.queue) >= maxQueued {
		n.queue = n.queue[1:]
	}
	n.queue = append(n.queue, msg)
	n.log.Printf("hud: %s", joinText(msg))
}

// Tick flushes queued messages to the HUD actor. Messages stay queued
// while no HUD exists; a failed show re-queues the remainder.
func (n *Notifier) Tick() {
	n.mu.Lock()
	pending := n.queue
	n.queue = nil
	n.mu.Unlock()
	if len(pending) == 0 {
		return
	}

	hudActor, err := n.world.FindFirstOf(hudClass)
	if err != nil {
		n.requeue(pending)
		return
	}
	for i, msg := range pending {
		// The widget takes a flattened (text, color) pair list.
		args := make([]any, 0, 2*len(msg))
		for _, s := range msg {
			args = append(args, s.Text, s.Color)
		}
		if _, err := hudActor.Invoke("ShowMessage", args...); err != nil {
			n.requeue(pending[i:])
			return
		}
	}
}

// Pending reports how many messages await a HUD.
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.queue)
}

func (n *Notifier) requeue(msgs [][]Segment) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.queue = append(msgs, n.queue...)
	if len(n.queue) > maxQueued {
		n.queue = n.queue[:maxQueued]
	}
}

func joinText(msg []Segment) string {
	var b strings.Builder
	for _, s := range msg {
		b.WriteString(s.Text)
	}
	return b.String()
}
