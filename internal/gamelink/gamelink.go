// Package gamelink defines the interface the sync engine uses to observe and
// mutate the running game world. Every handle returned here is a capability
// token into externally-owned memory: the engine may reclaim the underlying
// object between ticks, so callers must re-acquire handles each use and treat
// ErrStale as "state unknown, retry next tick".
package gamelink

import "errors"

var (
	// ErrNotFound reports that no entity, property, or function matched.
	ErrNotFound = errors.New("gamelink: not found")
	// ErrStale reports that a handle refers to a reclaimed object.
	ErrStale = errors.New("gamelink: stale handle")
)

type Vec3 struct {
	X, Y, Z float64
}

// Entity is a live world object. Any method may fail if the engine
// invalidated the object since the handle was acquired.
type Entity interface {
	FullName() (string, error)
	GetString(prop string) (string, error)
	GetBool(prop string) (bool, error)
	GetEntity(prop string) (Entity, error)
	GetVector(prop string) (Vec3, error)
	SetVector(prop string, v Vec3) error
	// Invoke calls a named function on the entity with a fixed argument
	// list and returns its result, if any.
	Invoke(fn string, args ...any) (any, error)
}

// CollectionEntry is one key in the game's collected-items map. Used marks
// an item as spent in an arranger puzzle.
type CollectionEntry struct {
	Key  string
	Used bool
}

// Collection is the game's collected-items map. Handles must not be held
// across tick boundaries.
type Collection interface {
	Entries() ([]CollectionEntry, error)
	Add(key string, used bool) error
	Remove(key string) error
	SetUsed(key string, used bool) error
}

// EventKind tags asynchronous world events delivered through Events().
type EventKind int

const (
	EventDeath EventKind = iota + 1
	EventLevelTransition
	EventSlotSwitch
	EventQuit
)

type Event struct {
	Kind EventKind
	// Level carries the destination level name on transitions.
	Level string
}

// World is the game-side surface the sync engine consumes.
type World interface {
	// FindFirstOf returns any one live entity of the given class.
	FindFirstOf(class string) (Entity, error)
	// FindAllOf returns all live entities of the given class.
	FindAllOf(class string) ([]Entity, error)
	// StaticFindObject resolves an asset path that only exists once the
	// corresponding package has been loaded.
	StaticFindObject(path string) (Entity, error)
	// AcquireCollection re-resolves the progress object and returns a fresh
	// handle on its collected-items map.
	AcquireCollection() (Collection, error)
	// Events delivers death, level-transition, slot-switch and quit events.
	// The channel is buffered; the producer drops rather than blocks.
	Events() <-chan Event
}
