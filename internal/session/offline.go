package session

import (
	"log"
	"sync"

	syncer "talosync.gg/internal/sync"
)

// Offline is a session stand-in for running without a server. It reports
// a successful handshake on the first poll so sync activates immediately,
// and swallows every send. Local progress still lands in the slot store.
type Offline struct {
	log *log.Logger

	mu        sync.Mutex
	announced bool
	queue     []syncer.ClientEvent
}

func NewOffline(logger *log.Logger) *Offline {
	return &Offline{log: logger}
}

func (o *Offline) Poll() []syncer.ClientEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.announced {
		o.announced = true
		o.queue = append(o.queue, syncer.ClientEvent{Kind: syncer.EventConnected})
	}
	out := o.queue
	o.queue = nil
	return out
}

// InjectItem feeds a granted item, for local testing.
func (o *Offline) InjectItem(itemID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, syncer.ClientEvent{Kind: syncer.EventItemReceived, ItemID: itemID})
}

// InjectDeathLink feeds a remote death, for local testing.
func (o *Offline) InjectDeathLink(source, cause string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, syncer.ClientEvent{
		Kind:   syncer.EventDeathLinkReceived,
		Source: source,
		Cause:  cause,
	})
}

func (o *Offline) SendLocationCheck(locationID int64) error {
	o.log.Printf("offline: location check %d", locationID)
	return nil
}

func (o *Offline) SendDeathLink(cause string) error {
	o.log.Printf("offline: death link: %s", cause)
	return nil
}

func (o *Offline) SendGoalComplete() error {
	o.log.Printf("offline: goal complete")
	return nil
}
