package sync

import (
	"fmt"
	"log"

	"talosync.gg/internal/gamelink"
)

// Inventory reconciles the game's collection map against the set of items
// the server has granted. The collection map is the game's own save-state
// view, so every mutation goes through the gamelink capability and any
// single failure is isolated: one bad entry must not poison the pass.
type Inventory struct {
	log   *log.Logger
	world gamelink.World
	ids   *IdentifierMap
	state *State
}

func NewInventory(logger *log.Logger, world gamelink.World, ids *IdentifierMap, state *State) *Inventory {
	return &Inventory{log: logger, world: world, ids: ids, state: state}
}

// Grant adds a single item to the collection, unused. Safe to call for an
// item already present; the entry keeps its used flag in that case.
func (inv *Inventory) Grant(modID string) error {
	col, err := inv.world.AcquireCollection()
	if err != nil {
		return fmt.Errorf("acquire collection: %w", err)
	}
	key := inv.ids.ToWorldKey(modID)
	entries, err := col.Entries()
	if err != nil {
		return fmt.Errorf("enumerate collection: %w", err)
	}
	for _, e := range entries {
		if e.Key == key {
			return nil
		}
	}
	if err := col.Add(key, false); err != nil {
		return fmt.Errorf("add %s: %w", key, err)
	}
	inv.log.Printf("granted %s (%s)", modID, inv.ids.DisplayNameFor(modID))
	return nil
}

// Revoke removes a single item from the collection if present.
func (inv *Inventory) Revoke(modID string) error {
	col, err := inv.world.AcquireCollection()
	if err != nil {
		return fmt.Errorf("acquire collection: %w", err)
	}
	key := inv.ids.ToWorldKey(modID)
	if err := col.Remove(key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// Enforce makes the collection map agree with granted, which is keyed by
// collection world key (stars as "**N", everything else by its own ID).
// The pass aborts only when the collection itself cannot be acquired;
// per-entry failures are logged and skipped.
//
// Entries whose keys the identifier map does not recognize belong to the
// base game or other mods and are left alone. Sigils and stars are only
// touched when their randomization toggle is on.
func (inv *Inventory) Enforce(granted map[string]bool) error {
	if !inv.state.SyncEnabled() {
		return nil
	}
	col, err := inv.world.AcquireCollection()
	if err != nil {
		return fmt.Errorf("acquire collection: %w", err)
	}

	entries, err := col.Entries()
	if err != nil {
		return fmt.Errorf("enumerate collection: %w", err)
	}
	present := map[string]gamelink.CollectionEntry{}
	for _, e := range entries {
		present[e.Key] = e
	}

	// Remove what the server has not granted.
	for key := range present {
		if !inv.managed(inv.ids.FromWorldKey(key)) {
			continue
		}
		if granted[key] {
			continue
		}
		if err := col.Remove(key); err != nil {
			inv.log.Printf("enforce: remove %s: %v", key, err)
		}
	}

	// Add what is granted but missing.
	for key := range granted {
		if !inv.managed(inv.ids.FromWorldKey(key)) {
			continue
		}
		if _, ok := present[key]; ok {
			continue
		}
		if err := col.Add(key, false); err != nil {
			inv.log.Printf("enforce: add %s: %v", key, err)
		}
	}

	// Reusable mode means nothing stays spent. The game itself owns the
	// used markers, so this pass covers the whole map, not just our
	// entries.
	if inv.state.ReusableTetrominoes() {
		entries, err := col.Entries()
		if err != nil {
			return fmt.Errorf("enumerate collection: %w", err)
		}
		for _, e := range entries {
			if !e.Used {
				continue
			}
			if err := col.SetUsed(e.Key, false); err != nil {
				inv.log.Printf("enforce: reset used %s: %v", e.Key, err)
			}
		}
	}
	return nil
}

// managed reports whether this mod owns the entry. Anything the identifier
// map cannot place at a location belongs to the base game or another mod,
// even when its key is shaped like one of ours; sigils and stars are ours
// only when randomized.
func (inv *Inventory) managed(modID string) bool {
	if inv.ids.LocationID(modID) < 0 {
		return false
	}
	if IsPurpleSigil(modID) {
		return inv.state.RandomizePurpleSigils()
	}
	if IsStar(modID) {
		return inv.state.RandomizeStars()
	}
	return true
}
