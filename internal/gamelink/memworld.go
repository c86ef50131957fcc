package gamelink

import (
	"fmt"
	"sort"
	"sync"
)

// MemWorld is a complete in-memory World used by tests and by offline mode.
// It models the parts of the engine the sync engine touches: class-indexed
// entities, property bags, invokable functions, a collected-items map, and a
// tiny per-frame simulation that turns mine/player overlap into a death.
type MemWorld struct {
	mu sync.Mutex

	stale         bool
	collectionOK  bool
	entities      map[string][]*MemEntity
	assets        map[string]*MemEntity
	collection    map[string]bool
	collectionSeq []string

	events chan Event
}

func NewMemWorld() *MemWorld {
	return &MemWorld{
		collectionOK: true,
		entities:     map[string][]*MemEntity{},
		assets:       map[string]*MemEntity{},
		collection:   map[string]bool{},
		events:       make(chan Event, 32),
	}
}

// SetStale makes every subsequent handle access fail with ErrStale until
// cleared. Tests use this to model engine GC between ticks.
func (w *MemWorld) SetStale(stale bool) {
	w.mu.Lock()
	w.stale = stale
	w.mu.Unlock()
}

// SetCollectionAvailable controls whether AcquireCollection succeeds.
func (w *MemWorld) SetCollectionAvailable(ok bool) {
	w.mu.Lock()
	w.collectionOK = ok
	w.mu.Unlock()
}

func (w *MemWorld) AddEntity(class, fullName string, props map[string]any) *MemEntity {
	e := &MemEntity{world: w, class: class, fullName: fullName, props: map[string]any{}, funcs: map[string]InvokeFunc{}}
	for k, v := range props {
		e.props[k] = v
	}
	w.mu.Lock()
	w.entities[class] = append(w.entities[class], e)
	w.mu.Unlock()
	return e
}

func (w *MemWorld) RemoveEntity(e *MemEntity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.entities[e.class]
	for i, cand := range list {
		if cand == e {
			w.entities[e.class] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (w *MemWorld) SetAsset(path string, e *MemEntity) {
	w.mu.Lock()
	if e == nil {
		delete(w.assets, path)
	} else {
		w.assets[path] = e
	}
	w.mu.Unlock()
}

func (w *MemWorld) Inject(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}

// CollectionSnapshot returns a copy of the collected-items map.
func (w *MemWorld) CollectionSnapshot() map[string]bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[string]bool, len(w.collection))
	for k, v := range w.collection {
		out[k] = v
	}
	return out
}

func (w *MemWorld) SeedCollection(entries map[string]bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for k, v := range entries {
		if _, ok := w.collection[k]; !ok {
			w.collectionSeq = append(w.collectionSeq, k)
		}
		w.collection[k] = v
	}
}

func (w *MemWorld) FindFirstOf(class string) (Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stale {
		return nil, ErrStale
	}
	list := w.entities[class]
	if len(list) == 0 {
		return nil, ErrNotFound
	}
	return list[0], nil
}

func (w *MemWorld) FindAllOf(class string) ([]Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stale {
		return nil, ErrStale
	}
	list := w.entities[class]
	out := make([]Entity, len(list))
	for i, e := range list {
		out[i] = e
	}
	return out, nil
}

func (w *MemWorld) StaticFindObject(path string) (Entity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stale {
		return nil, ErrStale
	}
	e, ok := w.assets[path]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (w *MemWorld) AcquireCollection() (Collection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stale {
		return nil, ErrStale
	}
	if !w.collectionOK {
		return nil, ErrNotFound
	}
	return &memCollection{world: w}, nil
}

func (w *MemWorld) Events() <-chan Event {
	return w.events
}

// Step runs one engine frame: a mine within killRadius of the player pawn
// sets bIsDead on the pawn and emits a death event, mirroring how the real
// engine's overlap tick converts a teleported mine into a kill.
func (w *MemWorld) Step() {
	const killRadius = 150.0

	pawn := w.playerPawn()
	if pawn == nil {
		return
	}
	dead, _ := pawn.GetBool("bIsDead")
	if dead {
		return
	}
	ppos, err := entityPosition(pawn)
	if err != nil {
		return
	}
	mines, _ := w.FindAllOf("BP_Mine_C")
	passive, _ := w.FindAllOf("BP_PassiveMine_C")
	for _, m := range append(mines, passive...) {
		mpos, err := entityPosition(m)
		if err != nil {
			continue
		}
		dx, dy, dz := ppos.X-mpos.X, ppos.Y-mpos.Y, ppos.Z-mpos.Z
		if dx*dx+dy*dy+dz*dz <= killRadius*killRadius {
			w.mu.Lock()
			pawn.props["bIsDead"] = true
			w.mu.Unlock()
			w.Inject(Event{Kind: EventDeath})
			return
		}
	}
}

// RevivePlayer clears the death flag, as a level reload would.
func (w *MemWorld) RevivePlayer() {
	pawn := w.playerPawn()
	if pawn == nil {
		return
	}
	w.mu.Lock()
	pawn.props["bIsDead"] = false
	w.mu.Unlock()
}

func (w *MemWorld) playerPawn() *MemEntity {
	w.mu.Lock()
	defer w.mu.Unlock()
	pcs := w.entities["PlayerController"]
	if len(pcs) == 0 {
		return nil
	}
	pawn, ok := pcs[0].props["Pawn"].(*MemEntity)
	if !ok {
		return nil
	}
	return pawn
}

func entityPosition(e Entity) (Vec3, error) {
	root, err := e.GetEntity("RootComponent")
	if err != nil {
		return Vec3{}, err
	}
	return root.GetVector("RelativeLocation")
}

type InvokeFunc func(args ...any) (any, error)

// MemEntity is the MemWorld Entity implementation.
type MemEntity struct {
	world    *MemWorld
	class    string
	fullName string
	props    map[string]any
	funcs    map[string]InvokeFunc
}

func (e *MemEntity) SetProp(name string, v any) {
	e.world.mu.Lock()
	e.props[name] = v
	e.world.mu.Unlock()
}

func (e *MemEntity) SetFunc(name string, fn InvokeFunc) {
	e.world.mu.Lock()
	e.funcs[name] = fn
	e.world.mu.Unlock()
}

func (e *MemEntity) FullName() (string, error) {
	e.world.mu.Lock()
	defer e.world.mu.Unlock()
	if e.world.stale {
		return "", ErrStale
	}
	return e.fullName, nil
}

func (e *MemEntity) prop(name string) (any, error) {
	e.world.mu.Lock()
	defer e.world.mu.Unlock()
	if e.world.stale {
		return nil, ErrStale
	}
	v, ok := e.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: property %s", ErrNotFound, name)
	}
	return v, nil
}

func (e *MemEntity) GetString(prop string) (string, error) {
	v, err := e.prop(prop)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("property %s is not a string", prop)
	}
	return s, nil
}

func (e *MemEntity) GetBool(prop string) (bool, error) {
	v, err := e.prop(prop)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not a bool", prop)
	}
	return b, nil
}

func (e *MemEntity) GetEntity(prop string) (Entity, error) {
	v, err := e.prop(prop)
	if err != nil {
		return nil, err
	}
	sub, ok := v.(*MemEntity)
	if !ok || sub == nil {
		return nil, fmt.Errorf("property %s is not an entity", prop)
	}
	return sub, nil
}

func (e *MemEntity) GetVector(prop string) (Vec3, error) {
	v, err := e.prop(prop)
	if err != nil {
		return Vec3{}, err
	}
	vec, ok := v.(Vec3)
	if !ok {
		return Vec3{}, fmt.Errorf("property %s is not a vector", prop)
	}
	return vec, nil
}

func (e *MemEntity) SetVector(prop string, v Vec3) error {
	e.world.mu.Lock()
	defer e.world.mu.Unlock()
	if e.world.stale {
		return ErrStale
	}
	e.props[prop] = v
	return nil
}

func (e *MemEntity) Invoke(fn string, args ...any) (any, error) {
	e.world.mu.Lock()
	f, ok := e.funcs[fn]
	stale := e.world.stale
	e.world.mu.Unlock()
	if stale {
		return nil, ErrStale
	}
	if !ok {
		return nil, fmt.Errorf("%w: function %s", ErrNotFound, fn)
	}
	return f(args...)
}

type memCollection struct {
	world *MemWorld
}

func (c *memCollection) Entries() ([]CollectionEntry, error) {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()
	if c.world.stale {
		return nil, ErrStale
	}
	keys := make([]string, 0, len(c.world.collection))
	for k := range c.world.collection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]CollectionEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, CollectionEntry{Key: k, Used: c.world.collection[k]})
	}
	return out, nil
}

func (c *memCollection) Add(key string, used bool) error {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()
	if c.world.stale {
		return ErrStale
	}
	c.world.collection[key] = used
	return nil
}

func (c *memCollection) Remove(key string) error {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()
	if c.world.stale {
		return ErrStale
	}
	delete(c.world.collection, key)
	return nil
}

func (c *memCollection) SetUsed(key string, used bool) error {
	c.world.mu.Lock()
	defer c.world.mu.Unlock()
	if c.world.stale {
		return ErrStale
	}
	if _, ok := c.world.collection[key]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	c.world.collection[key] = used
	return nil
}
