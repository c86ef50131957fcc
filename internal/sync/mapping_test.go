package sync

import (
	"io"
	"log"
	"testing"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestResolveNextAscendingAndExhaustion(t *testing.T) {
	m := NewIdentifierMap(testLogger())

	// Green J has five physical tetrominoes; receipts resolve them in
	// numeric order regardless of world-declaration order.
	want := []string{"DJ1", "DJ2", "DJ3", "DJ4", "DJ5"}
	for i, w := range want {
		got, ok := m.ResolveNext(BaseItemID + 0x00)
		if !ok {
			t.Fatalf("receipt %d: unexpectedly absent", i+1)
		}
		if got != w {
			t.Fatalf("receipt %d: got %q want %q", i+1, got, w)
		}
	}
	if got, ok := m.ResolveNext(BaseItemID + 0x00); ok {
		t.Fatalf("receipt past sequence end resolved to %q, want absent", got)
	}
}

func TestResolveNextUnknownItem(t *testing.T) {
	m := NewIdentifierMap(testLogger())
	if got, ok := m.ResolveNext(0xDEAD); ok {
		t.Fatalf("unknown item resolved to %q", got)
	}
}

func TestResetCountersReplaysIdentically(t *testing.T) {
	m := NewIdentifierMap(testLogger())

	first := resolveN(t, m, BaseItemID+0x0C, 4) // Red L
	m.ResetCounters()
	second := resolveN(t, m, BaseItemID+0x0C, 4)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("replay diverged at %d: %q vs %q", i, first[i], second[i])
		}
	}
}

func resolveN(t *testing.T, m *IdentifierMap, itemID int64, n int) []string {
	t.Helper()
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, ok := m.ResolveNext(itemID)
		if !ok {
			t.Fatalf("receipt %d of item %d absent", i+1, itemID)
		}
		out = append(out, id)
	}
	return out
}

func TestLocationBijectionRoundTrip(t *testing.T) {
	m := NewIdentifierMap(testLogger())

	ids := m.AllLocationIDs()
	if len(ids) != 93+24+30 {
		t.Fatalf("location count = %d, want %d", len(ids), 93+24+30)
	}
	for _, locID := range ids {
		name := m.LocationName(locID)
		if name == "" {
			t.Fatalf("location %d has no name", locID)
		}
		if back := m.LocationID(name); back != locID {
			t.Fatalf("round trip %d -> %q -> %d", locID, name, back)
		}
	}
	if m.LocationID("nonsense") != -1 {
		t.Fatalf("unknown object should map to -1")
	}
}

func TestLocationIDsAreContiguousFromBase(t *testing.T) {
	m := NewIdentifierMap(testLogger())
	ids := m.AllLocationIDs()
	for i, id := range ids {
		if id != BaseLocationID+int64(i) {
			t.Fatalf("location %d = %d, want %d", i, id, BaseLocationID+int64(i))
		}
	}
	// Table order is a wire contract: first location is the first world's
	// first tetromino.
	if m.LocationName(BaseLocationID) != "DJ3" {
		t.Fatalf("first location = %q, want DJ3", m.LocationName(BaseLocationID))
	}
}

func TestStarWorldKeyTranslation(t *testing.T) {
	m := NewIdentifierMap(testLogger())

	if got := m.ToWorldKey("SL5"); got != "**5" {
		t.Fatalf("ToWorldKey(SL5) = %q", got)
	}
	if got := m.ToWorldKey("SZ24"); got != "**24" {
		t.Fatalf("ToWorldKey(SZ24) = %q", got)
	}
	if got := m.FromWorldKey("**5"); got != "SL5" {
		t.Fatalf("FromWorldKey(**5) = %q", got)
	}
	// Non-star encodings match and pass through both ways.
	if got := m.ToWorldKey("DJ1"); got != "DJ1" {
		t.Fatalf("ToWorldKey(DJ1) = %q", got)
	}
	if got := m.FromWorldKey("Mystery"); got != "Mystery" {
		t.Fatalf("unrecognized key should pass through, got %q", got)
	}
}

func TestStarsResolveFromUnifiedSequence(t *testing.T) {
	m := NewIdentifierMap(testLogger())

	// Star receipts consume one merged, number-ordered sequence, not the
	// SL/SZ grouping the locations use.
	got := resolveN(t, m, BaseItemID+0x14, 3)
	want := []string{"**1", "**2", "**3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("star receipt %d = %q, want %q", i+1, got[i], want[i])
		}
	}
}

func TestCategoryPredicates(t *testing.T) {
	if !IsPurpleSigil("HL7") || IsPurpleSigil("DJ1") {
		t.Fatalf("IsPurpleSigil misclassifies")
	}
	if !IsStar("**12") || !IsStar("SL5") || !IsStar("SZ24") || IsStar("MT1") {
		t.Fatalf("IsStar misclassifies")
	}
}

func TestDisplayNames(t *testing.T) {
	m := NewIdentifierMap(testLogger())
	if got := m.DisplayName(BaseItemID + 0x00); got != "Green J" {
		t.Fatalf("DisplayName = %q", got)
	}
	if got := m.DisplayName(BaseItemID + 0x14); got != "Star" {
		t.Fatalf("DisplayName star = %q", got)
	}
	if got := m.DisplayNameFor("HL3"); got != "Purple Sigil" {
		t.Fatalf("DisplayNameFor = %q", got)
	}
}
