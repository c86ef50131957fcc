package gamelink

import (
	"errors"
	"testing"
)

func buildPlayer(w *MemWorld, pos Vec3) *MemEntity {
	root := w.AddEntity("SceneComponent", "Root_Pawn", map[string]any{
		"RelativeLocation": pos,
	})
	pawn := w.AddEntity("Pawn", "BP_Player_C_0", map[string]any{
		"bIsDead":       false,
		"RootComponent": root,
	})
	pc := w.AddEntity("PlayerController", "PC_0", nil)
	pc.SetProp("Pawn", pawn)
	return pawn
}

func TestStaleHandlesFailEverywhere(t *testing.T) {
	w := NewMemWorld()
	e := w.AddEntity("BP_Tetromino_C", "BP_Tetromino_DJ1", map[string]any{"TetrominoID": "DJ1"})

	w.SetStale(true)
	if _, err := w.FindFirstOf("BP_Tetromino_C"); !errors.Is(err, ErrStale) {
		t.Fatalf("FindFirstOf err = %v", err)
	}
	if _, err := w.AcquireCollection(); !errors.Is(err, ErrStale) {
		t.Fatalf("AcquireCollection err = %v", err)
	}
	if _, err := e.GetString("TetrominoID"); !errors.Is(err, ErrStale) {
		t.Fatalf("GetString err = %v", err)
	}

	w.SetStale(false)
	if _, err := e.GetString("TetrominoID"); err != nil {
		t.Fatalf("GetString after clear err = %v", err)
	}
}

func TestCollectionOperations(t *testing.T) {
	w := NewMemWorld()
	w.SeedCollection(map[string]bool{"DJ1": false, "MT1": true})

	col, err := w.AcquireCollection()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := col.Add("HL1", false); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := col.SetUsed("DJ1", true); err != nil {
		t.Fatalf("set used: %v", err)
	}
	if err := col.Remove("MT1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := col.SetUsed("gone", true); !errors.Is(err, ErrNotFound) {
		t.Fatalf("set used on absent key err = %v", err)
	}

	got, err := col.Entries()
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	want := map[string]bool{"DJ1": true, "HL1": false}
	if len(got) != len(want) {
		t.Fatalf("entries = %v", got)
	}
	for _, e := range got {
		used, ok := want[e.Key]
		if !ok || used != e.Used {
			t.Fatalf("entry %+v unexpected", e)
		}
	}
}

func TestCollectionUnavailable(t *testing.T) {
	w := NewMemWorld()
	w.SetCollectionAvailable(false)
	if _, err := w.AcquireCollection(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestStepKillsPlayerNearMine(t *testing.T) {
	w := NewMemWorld()
	pawn := buildPlayer(w, Vec3{X: 0, Y: 0, Z: 0})

	mineRoot := w.AddEntity("SceneComponent", "Root_Mine", map[string]any{
		"RelativeLocation": Vec3{X: 5000, Y: 0, Z: 0},
	})
	mine := w.AddEntity("BP_Mine_C", "BP_Mine_C_1", nil)
	mine.SetProp("RootComponent", mineRoot)

	w.Step()
	if dead, _ := pawn.GetBool("bIsDead"); dead {
		t.Fatalf("distant mine killed the player")
	}

	if err := mineRoot.SetVector("RelativeLocation", Vec3{X: 50, Y: 0, Z: 0}); err != nil {
		t.Fatalf("move mine: %v", err)
	}
	w.Step()
	if dead, _ := pawn.GetBool("bIsDead"); !dead {
		t.Fatalf("adjacent mine did not kill the player")
	}

	select {
	case ev := <-w.Events():
		if ev.Kind != EventDeath {
			t.Fatalf("event = %v, want death", ev.Kind)
		}
	default:
		t.Fatalf("no death event emitted")
	}

	// Dead players stay dead until revived.
	w.Step()
	select {
	case <-w.Events():
		t.Fatalf("second death event for an already dead player")
	default:
	}

	w.RevivePlayer()
	if dead, _ := pawn.GetBool("bIsDead"); dead {
		t.Fatalf("revive did not clear the death flag")
	}
}

func TestInvokeDispatch(t *testing.T) {
	w := NewMemWorld()
	e := w.AddEntity("BP_Fence_C", "BP_Fence_HL1", nil)

	if _, err := e.Invoke("Open"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown function err = %v", err)
	}

	called := false
	e.SetFunc("Open", func(args ...any) (any, error) {
		called = true
		return nil, nil
	})
	if _, err := e.Invoke("Open"); err != nil || !called {
		t.Fatalf("invoke err = %v, called = %v", err, called)
	}
}
