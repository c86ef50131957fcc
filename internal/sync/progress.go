package sync

import "sync"

// Progress is the shared record of what the session has granted us and
// what we have reported back. The session apply path and the tick loop
// both touch it, hence the lock. Granted items are keyed by collection
// world key; checked locations by session location ID.
type Progress struct {
	mu      sync.Mutex
	granted map[string]bool
	checked map[int64]bool
}

func NewProgress() *Progress {
	return &Progress{
		granted: map[string]bool{},
		checked: map[int64]bool{},
	}
}

// Grant records a granted item. Returns false if it was already granted.
func (p *Progress) Grant(worldKey string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.granted[worldKey] {
		return false
	}
	p.granted[worldKey] = true
	return true
}

// Revoke removes a granted item, used only for desync recovery when the
// server replays a full history that no longer contains it.
func (p *Progress) Revoke(worldKey string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.granted, worldKey)
}

// ResetGranted clears the granted set ahead of a full history replay.
func (p *Progress) ResetGranted() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.granted = map[string]bool{}
}

// Granted returns a copy of the granted set.
func (p *Progress) Granted() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]bool, len(p.granted))
	for k := range p.granted {
		out[k] = true
	}
	return out
}

// GrantedCount returns the number of granted items.
func (p *Progress) GrantedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.granted)
}

// MarkChecked records a reported location. Returns false if already
// reported; callers use that to avoid duplicate sends.
func (p *Progress) MarkChecked(locationID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.checked[locationID] {
		return false
	}
	p.checked[locationID] = true
	return true
}

// IsChecked reports whether a location was already reported.
func (p *Progress) IsChecked(locationID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.checked[locationID]
}

// Checked returns a copy of the checked-location set.
func (p *Progress) Checked() []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int64, 0, len(p.checked))
	for id := range p.checked {
		out = append(out, id)
	}
	return out
}

// SeedChecked preloads already-checked locations, from the server's
// connect payload or the local progress store.
func (p *Progress) SeedChecked(ids []int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		p.checked[id] = true
	}
}
