package sync

import (
	"log"
	"strings"
	"time"

	"talosync.gg/internal/gamelink"
)

// Pickup and gate actor classes in the current level.
const (
	classTetromino = "BP_Tetromino_C"
	classFence     = "BP_Fence_C"
)

const (
	maxFenceRetries  = 10
	fenceRetrySpacing = 2 * time.Second
)

// CheckSender reports a found location to the session.
type CheckSender interface {
	SendLocationCheck(locationID int64) error
}

type fenceOpen struct {
	key      string
	attempts int
	nextTry  time.Time
}

// Visibility keeps the physical pickups in the current level in agreement
// with session progress: pickups whose locations were already reported are
// hidden, newly collected ones become location checks, and progression
// gates are opened with bounded retries since a gate actor may not have
// streamed in yet.
//
// Entity handles are never kept across passes; every pass starts from a
// fresh lookup.
type Visibility struct {
	log      *log.Logger
	world    gamelink.World
	ids      *IdentifierMap
	state    *State
	progress *Progress
	sender   CheckSender

	pendingFences []fenceOpen
	now           func() time.Time
}

func NewVisibility(logger *log.Logger, world gamelink.World, ids *IdentifierMap, state *State, progress *Progress, sender CheckSender) *Visibility {
	return &Visibility{
		log:      logger,
		world:    world,
		ids:      ids,
		state:    state,
		progress: progress,
		sender:   sender,
		now:      time.Now,
	}
}

// Enforce runs one pickup pass over the level: report newly picked-up
// tetrominoes as location checks, then hide every pickup whose location is
// already checked. Per-entity failures are logged and skipped.
func (v *Visibility) Enforce() {
	if !v.state.SyncEnabled() {
		return
	}
	pickups, err := v.world.FindAllOf(classTetromino)
	if err != nil {
		v.log.Printf("visibility: scan: %v", err)
		return
	}
	for _, p := range pickups {
		modID, err := p.GetString("TetrominoID")
		if err != nil || modID == "" {
			continue
		}
		locID := v.ids.LocationID(modID)
		if locID < 0 {
			continue
		}
		picked, err := p.GetBool("bPickedUp")
		if err == nil && picked {
			v.reportCheck(modID, locID)
		}
		if v.progress.IsChecked(locID) {
			if _, err := p.Invoke("SetActorHiddenInGame", true); err != nil {
				v.log.Printf("visibility: hide %s: %v", modID, err)
			}
		}
	}
}

func (v *Visibility) reportCheck(modID string, locID int64) {
	if !v.progress.MarkChecked(locID) {
		return
	}
	if err := v.sender.SendLocationCheck(locID); err != nil {
		v.log.Printf("visibility: report %s: %v", modID, err)
		return
	}
	v.log.Printf("location checked: %s (%d)", modID, locID)
}

// RequestFenceOpen queues a progression gate to be opened. key matches a
// fragment of the gate actor's full name.
func (v *Visibility) RequestFenceOpen(key string) {
	for _, f := range v.pendingFences {
		if f.key == key {
			return
		}
	}
	v.pendingFences = append(v.pendingFences, fenceOpen{key: key})
}

// RetryFenceOpens attempts every queued gate open. A gate that cannot be
// found yet stays queued with spacing between attempts; after the retry
// budget it is dropped with a warning, since the player may simply be in a
// different level.
func (v *Visibility) RetryFenceOpens() {
	if len(v.pendingFences) == 0 {
		return
	}
	now := v.now()
	remaining := v.pendingFences[:0]
	for _, f := range v.pendingFences {
		if now.Before(f.nextTry) {
			remaining = append(remaining, f)
			continue
		}
		if v.openFence(f.key) {
			v.log.Printf("fence opened: %s", f.key)
			continue
		}
		f.attempts++
		if f.attempts >= maxFenceRetries {
			v.log.Printf("fence open abandoned after %d attempts: %s", f.attempts, f.key)
			continue
		}
		f.nextTry = now.Add(fenceRetrySpacing)
		remaining = append(remaining, f)
	}
	v.pendingFences = remaining
}

func (v *Visibility) openFence(key string) bool {
	fences, err := v.world.FindAllOf(classFence)
	if err != nil {
		return false
	}
	for _, f := range fences {
		full, err := f.FullName()
		if err != nil || !strings.Contains(full, key) {
			continue
		}
		if _, err := f.Invoke("Open"); err != nil {
			return false
		}
		return true
	}
	return false
}

// PendingFenceCount reports how many gate opens are still queued.
func (v *Visibility) PendingFenceCount() int { return len(v.pendingFences) }
