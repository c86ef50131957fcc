package sync

import (
	"testing"
	"time"

	"talosync.gg/internal/gamelink"
)

func newTestVisibility(t *testing.T, world *gamelink.MemWorld) (*Visibility, *fakeSender, *Progress) {
	t.Helper()
	state := NewState()
	state.EnableSync()
	progress := NewProgress()
	sender := &fakeSender{}
	vis := NewVisibility(testLogger(), world, NewIdentifierMap(testLogger()), state, progress, sender)
	return vis, sender, progress
}

func addPickup(world *gamelink.MemWorld, modID string, picked bool) *gamelink.MemEntity {
	return world.AddEntity("BP_Tetromino_C", "BP_Tetromino_"+modID, map[string]any{
		"TetrominoID": modID,
		"bPickedUp":   picked,
	})
}

func TestCheckedPickupIsHidden(t *testing.T) {
	world := gamelink.NewMemWorld()
	p := addPickup(world, "DJ1", false)
	hidden := false
	p.SetFunc("SetActorHiddenInGame", func(args ...any) (any, error) {
		hidden = args[0].(bool)
		return nil, nil
	})

	vis, _, progress := newTestVisibility(t, world)
	progress.MarkChecked(NewIdentifierMap(testLogger()).LocationID("DJ1"))
	vis.Enforce()

	if !hidden {
		t.Fatalf("already checked pickup left visible")
	}
}

func TestPickedUpReportedThenHidden(t *testing.T) {
	world := gamelink.NewMemWorld()
	p := addPickup(world, "MT1", true)
	hideCalls := 0
	p.SetFunc("SetActorHiddenInGame", func(args ...any) (any, error) {
		hideCalls++
		return nil, nil
	})

	vis, sender, _ := newTestVisibility(t, world)
	vis.Enforce()
	vis.Enforce()

	sender.mu.Lock()
	checks := append([]int64(nil), sender.checks...)
	sender.mu.Unlock()
	if len(checks) != 1 {
		t.Fatalf("checks = %v, want one", checks)
	}
	if hideCalls == 0 {
		t.Fatalf("reported pickup never hidden")
	}
}

func TestFailedReportKeepsLocalMark(t *testing.T) {
	world := gamelink.NewMemWorld()
	addPickup(world, "HL1", true)

	vis, sender, progress := newTestVisibility(t, world)
	sender.fail = true
	vis.Enforce()

	// The mark is taken before the send, so a failed send must not lose
	// the location: it stays in the local checked set, and the connect
	// handler pushes everything the server lacks on the next handshake.
	wantLoc := NewIdentifierMap(testLogger()).LocationID("HL1")
	if !progress.IsChecked(wantLoc) {
		t.Fatalf("failed report lost the checked mark")
	}
}

func TestUnknownPickupIgnored(t *testing.T) {
	world := gamelink.NewMemWorld()
	addPickup(world, "ZZ9", true)

	vis, sender, _ := newTestVisibility(t, world)
	vis.Enforce()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.checks) != 0 {
		t.Fatalf("unknown pickup reported: %v", sender.checks)
	}
}

func TestFenceOpenRetriesUntilActorStreamsIn(t *testing.T) {
	world := gamelink.NewMemWorld()
	vis, _, _ := newTestVisibility(t, world)

	now := time.Now()
	vis.now = func() time.Time { return now }

	vis.RequestFenceOpen("HL3")
	vis.RequestFenceOpen("HL3")
	if vis.PendingFenceCount() != 1 {
		t.Fatalf("duplicate fence request queued")
	}

	vis.RetryFenceOpens()
	if vis.PendingFenceCount() != 1 {
		t.Fatalf("fence dropped while actor absent")
	}

	opened := false
	fence := world.AddEntity("BP_Fence_C", "BP_Fence_HL3_2", nil)
	fence.SetFunc("Open", func(args ...any) (any, error) {
		opened = true
		return nil, nil
	})

	// Still inside the retry spacing window, nothing happens.
	vis.RetryFenceOpens()
	if opened {
		t.Fatalf("retried before spacing elapsed")
	}

	now = now.Add(fenceRetrySpacing + time.Millisecond)
	vis.RetryFenceOpens()
	if !opened || vis.PendingFenceCount() != 0 {
		t.Fatalf("fence not opened after actor appeared: opened=%v pending=%d", opened, vis.PendingFenceCount())
	}
}

func TestFenceOpenAbandonedAfterRetryBudget(t *testing.T) {
	world := gamelink.NewMemWorld()
	vis, _, _ := newTestVisibility(t, world)

	now := time.Now()
	vis.now = func() time.Time { return now }

	vis.RequestFenceOpen("HL7")
	for i := 0; i < maxFenceRetries; i++ {
		vis.RetryFenceOpens()
		now = now.Add(fenceRetrySpacing + time.Millisecond)
	}
	if vis.PendingFenceCount() != 0 {
		t.Fatalf("fence still queued after retry budget, pending=%d", vis.PendingFenceCount())
	}
}
