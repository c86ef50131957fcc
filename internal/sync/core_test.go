package sync

import (
	"sync"
	"testing"
	"time"

	"talosync.gg/internal/gamelink"
)

type fakeClient struct {
	fakeSender

	pmu     sync.Mutex
	pending []ClientEvent
}

func (f *fakeClient) Poll() []ClientEvent {
	f.pmu.Lock()
	defer f.pmu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

func (f *fakeClient) push(ev ClientEvent) {
	f.pmu.Lock()
	defer f.pmu.Unlock()
	f.pending = append(f.pending, ev)
}

func newTestCore(t *testing.T, world *gamelink.MemWorld) (*Core, *fakeClient, *State, *Progress) {
	t.Helper()
	state := NewState()
	progress := NewProgress()
	ids := NewIdentifierMap(testLogger())
	client := &fakeClient{}
	core := NewCore(testLogger(), world, client, state, progress, ids, &fakeNotifier{}, CoreConfig{
		TickInterval:       time.Nanosecond,
		TransitionCooldown: time.Hour,
		GoalWarmup:         time.Hour,
		PlayerName:         "Player",
	})
	return core, client, state, progress
}

func TestCoreConnectEnablesSync(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, state, progress := newTestCore(t, world)

	client.push(ClientEvent{Kind: EventConnected, CheckedLocations: []int64{BaseLocationID, BaseLocationID + 1}})
	core.Tick()

	if !state.SyncEnabled() {
		t.Fatalf("sync not enabled after connect")
	}
	if !progress.IsChecked(BaseLocationID) || !progress.IsChecked(BaseLocationID+1) {
		t.Fatalf("server checked locations not seeded")
	}
}

func TestCoreItemReceivedLandsInCollection(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, _, _ := newTestCore(t, world)

	client.push(ClientEvent{Kind: EventConnected})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	core.Tick()

	got := world.CollectionSnapshot()
	if used, ok := got["DJ1"]; !ok || used {
		t.Fatalf("collection = %v, want DJ1 unused", got)
	}
}

func TestCoreFullReplayDoesNotDuplicate(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, _, progress := newTestCore(t, world)

	client.push(ClientEvent{Kind: EventConnected})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	core.Tick()

	if progress.GrantedCount() != 2 {
		t.Fatalf("granted = %d, want 2", progress.GrantedCount())
	}

	// Server reconnect replays the same history from index zero.
	client.push(ClientEvent{Kind: EventItemsReset})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	core.Tick()

	if progress.GrantedCount() != 2 {
		t.Fatalf("granted after replay = %d, want 2", progress.GrantedCount())
	}
	got := world.CollectionSnapshot()
	if len(got) != 2 {
		t.Fatalf("collection after replay = %v, want DJ1 and DJ2", got)
	}
}

func TestCorePickupBecomesLocationCheckOnce(t *testing.T) {
	world := gamelink.NewMemWorld()
	world.AddEntity("BP_Tetromino_C", "BP_Tetromino_DJ1", map[string]any{
		"TetrominoID": "DJ1",
		"bPickedUp":   true,
	})
	core, client, _, progress := newTestCore(t, world)
	ids := NewIdentifierMap(testLogger())

	client.push(ClientEvent{Kind: EventConnected})
	for i := 0; i < 5; i++ {
		core.Tick()
	}

	wantLoc := ids.LocationID("DJ1")
	client.fakeSender.mu.Lock()
	checks := append([]int64(nil), client.checks...)
	client.fakeSender.mu.Unlock()
	if len(checks) != 1 || checks[0] != wantLoc {
		t.Fatalf("checks = %v, want exactly [%d]", checks, wantLoc)
	}
	if !progress.IsChecked(wantLoc) {
		t.Fatalf("location not recorded as checked")
	}
}

func TestCoreConnectPushesOfflineChecks(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, _, progress := newTestCore(t, world)
	ids := NewIdentifierMap(testLogger())

	// Checked while disconnected, e.g. resumed from the slot store.
	progress.SeedChecked([]int64{ids.LocationID("DJ1"), ids.LocationID("HL1")})

	client.push(ClientEvent{Kind: EventConnected, CheckedLocations: []int64{ids.LocationID("DJ1")}})
	core.Tick()

	client.fakeSender.mu.Lock()
	checks := append([]int64(nil), client.checks...)
	client.fakeSender.mu.Unlock()
	want := ids.LocationID("HL1")
	if len(checks) != 1 || checks[0] != want {
		t.Fatalf("checks = %v, want exactly [%d], the location the server lacks", checks, want)
	}
}

func TestCoreNoCheckWithoutPickup(t *testing.T) {
	world := gamelink.NewMemWorld()
	world.AddEntity("BP_Tetromino_C", "BP_Tetromino_DJ1", map[string]any{
		"TetrominoID": "DJ1",
		"bPickedUp":   false,
	})
	core, client, _, _ := newTestCore(t, world)

	client.push(ClientEvent{Kind: EventConnected})
	for i := 0; i < 5; i++ {
		core.Tick()
	}

	client.fakeSender.mu.Lock()
	defer client.fakeSender.mu.Unlock()
	if len(client.checks) != 0 {
		t.Fatalf("unpicked tetromino was reported: %v", client.checks)
	}
}

func TestCoreTransitionCooldownSuspendsWorldWork(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, _, progress := newTestCore(t, world)

	client.push(ClientEvent{Kind: EventConnected})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	world.Inject(gamelink.Event{Kind: gamelink.EventLevelTransition, Level: "A2"})
	core.Tick()

	// The grant is recorded, but the world is off-limits until the
	// cooldown elapses.
	if progress.GrantedCount() != 1 {
		t.Fatalf("granted = %d, want 1", progress.GrantedCount())
	}
	if got := world.CollectionSnapshot(); len(got) != 0 {
		t.Fatalf("collection touched during cooldown: %v", got)
	}
}

func TestCoreLocalDeathBroadcasts(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, state, _ := newTestCore(t, world)
	state.SetDeathLinkEnabled(true)

	client.push(ClientEvent{Kind: EventConnected})
	world.Inject(gamelink.Event{Kind: gamelink.EventDeath})
	core.Tick()

	if client.deathCount() != 1 {
		t.Fatalf("death broadcasts = %d, want 1", client.deathCount())
	}
}

func TestCoreShutdownStopsAllWork(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, state, progress := newTestCore(t, world)

	state.RequestShutdown()
	client.push(ClientEvent{Kind: EventConnected})
	client.push(ClientEvent{Kind: EventItemReceived, ItemID: BaseItemID})
	core.Tick()

	if state.SyncEnabled() || progress.GrantedCount() != 0 {
		t.Fatalf("tick did work after shutdown")
	}
}

func TestCoreSlotSwitchResetsGoal(t *testing.T) {
	world := gamelink.NewMemWorld()
	core, client, state, _ := newTestCore(t, world)

	client.push(ClientEvent{Kind: EventConnected})
	core.Tick()

	state.MarkGoalFired()
	state.MarkGoalSent()
	world.Inject(gamelink.Event{Kind: gamelink.EventSlotSwitch})
	core.Tick()

	if state.GoalFired() {
		t.Fatalf("goal latch survived slot switch")
	}
}
