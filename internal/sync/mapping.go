package sync

import (
	"log"
	"sort"
	"strconv"
)

// Remote identifier space. Item and location IDs share a base offset;
// location IDs are assigned sequentially in table-declaration order,
// which is part of the compatibility contract with the session server.
const (
	BaseItemID     int64 = 0x540000
	BaseLocationID int64 = 0x540000
)

// All tetrominoes in the game, in world-declaration order. Order matters:
// location IDs are assigned sequentially from this table.
var allTetrominoes = []string{
	// World A1 (7)
	"DJ3", "MT1", "DZ1", "DJ2", "DJ1", "ML1", "DI1",
	// World A2 (3)
	"ML2", "DL1", "DZ2",
	// World A3 (4)
	"MT2", "DZ3", "NL1", "MT3",
	// World A4 (4)
	"MZ1", "MZ2", "MT4", "MT5",
	// World A5 (5)
	"NZ1", "DI2", "DT1", "DT2", "DL2",
	// World A6 (4)
	"DZ4", "NL2", "NL3", "NZ2",
	// World A7 (5)
	"NL4", "DL3", "NT1", "NO1", "DT3",
	// World B1 (5)
	"ML3", "MZ3", "MS1", "MT6", "MT7",
	// World B2 (4)
	"NL5", "MS2", "MT8", "MZ4",
	// World B3 (4)
	"MT9", "MJ1", "NT2", "NL6",
	// World B4 (6)
	"NT3", "NT4", "DT4", "DJ4", "NL7", "NL8",
	// World B5 (5)
	"NI1", "NL9", "NS1", "DJ5", "NZ3",
	// World B6 (3)
	"NI2", "MT10", "ML4",
	// World B7 (4)
	"NJ1", "NI3", "MO1", "MI1",
	// World C1 (4)
	"NZ4", "NJ2", "NI4", "NT5",
	// World C2 (4)
	"NZ5", "NO2", "NT6", "NS2",
	// World C3 (4)
	"NJ3", "NO3", "NZ6", "NT7",
	// World C4 (4)
	"NT8", "NI5", "NS3", "NT9",
	// World C5 (4)
	"NI6", "NO4", "NO5", "NT10",
	// World C6 (3)
	"NS4", "NJ4", "NO6",
	// World C7 (4)
	"NT11", "NO7", "NT12", "NL10",
}

// Purple sigils (HL1 - HL24).
var allPurpleSigils = []string{
	"HL1", "HL2", "HL3", "HL4", "HL5", "HL6",
	"HL7", "HL8", "HL9", "HL10", "HL11", "HL12",
	"HL13", "HL14", "HL15", "HL16", "HL17", "HL18",
	"HL19", "HL20", "HL21", "HL22", "HL23", "HL24",
}

// Stars (SL/SZ prefix, order matches the session world definition).
var allStars = []string{
	"SL5", "SL2", "SZ3", "SL1", "SL4", "SL7",
	"SL6", "SZ8", "SL9", "SL10", "SL11", "SL12",
	"SL13", "SZ24", "SZ14", "SZ15", "SL16", "SL17",
	"SL18", "SL19", "SL20", "SL21", "SL22", "SL23",
	"SL27", "SL29", "SL30", "SZ26", "SL25", "SL28",
}

// IdentifierMap translates between the session server's item/location IDs
// and the game's own tetromino identifiers.
//
// The server uses one item type per shape+color combo. Each type maps to a
// letter prefix (e.g. "DJ" = Green J); duplicates resolve to the next
// tetromino in that prefix's sequence (DJ1, DJ2, DJ3...). Locations are 1:1
// with physical tetrominoes, purple sigils, and stars in the game world.
//
// All tables are built once at construction and immutable afterwards,
// except the per-session received counters.
type IdentifierMap struct {
	log *log.Logger

	itemIDToPrefix     map[int64]string
	prefixDisplayNames map[string]string
	sequences          map[string][]string
	locationNameToID   map[string]int64
	locationIDToName   map[int64]string
	modIDToWorldKey    map[string]string
	worldKeyToModID    map[string]string

	receivedCounts map[string]int
}

func NewIdentifierMap(logger *log.Logger) *IdentifierMap {
	m := &IdentifierMap{
		log: logger,
		itemIDToPrefix: map[int64]string{
			BaseItemID + 0x00: "DJ", // Green J
			BaseItemID + 0x01: "DZ", // Green Z
			BaseItemID + 0x02: "DI", // Green I
			BaseItemID + 0x03: "DL", // Green L
			BaseItemID + 0x04: "DT", // Green T
			BaseItemID + 0x05: "MT", // Golden T
			BaseItemID + 0x06: "ML", // Golden L
			BaseItemID + 0x07: "MZ", // Golden Z
			BaseItemID + 0x08: "MS", // Golden S
			BaseItemID + 0x09: "MJ", // Golden J
			BaseItemID + 0x0A: "MO", // Golden O
			BaseItemID + 0x0B: "MI", // Golden I
			BaseItemID + 0x0C: "NL", // Red L
			BaseItemID + 0x0D: "NZ", // Red Z
			BaseItemID + 0x0E: "NT", // Red T
			BaseItemID + 0x0F: "NI", // Red I
			BaseItemID + 0x10: "NJ", // Red J
			BaseItemID + 0x11: "NO", // Red O
			BaseItemID + 0x12: "NS", // Red S
			BaseItemID + 0x13: "HL", // Purple Sigil
			BaseItemID + 0x14: "**", // Star
		},
		prefixDisplayNames: map[string]string{
			"DJ": "Green J", "DZ": "Green Z", "DI": "Green I",
			"DL": "Green L", "DT": "Green T",
			"MT": "Golden T", "ML": "Golden L", "MZ": "Golden Z",
			"MS": "Golden S", "MJ": "Golden J", "MO": "Golden O",
			"MI": "Golden I",
			"NL": "Red L", "NZ": "Red Z", "NT": "Red T",
			"NI": "Red I", "NJ": "Red J", "NO": "Red O",
			"NS": "Red S",
			"HL": "Purple Sigil",
			"**": "Star",
		},
		sequences:        map[string][]string{},
		locationNameToID: map[string]int64{},
		locationIDToName: map[int64]string{},
		modIDToWorldKey:  map[string]string{},
		worldKeyToModID:  map[string]string{},
		receivedCounts:   map[string]int{},
	}
	m.buildSequences()
	m.buildLocationTables()
	m.buildWorldKeyTables()
	if m.log != nil {
		m.log.Printf("mappings built: %d locations, %d item types, %d world-key translations",
			len(m.locationIDToName), len(m.itemIDToPrefix), len(m.modIDToWorldKey))
	}
	return m
}

func (m *IdentifierMap) buildSequences() {
	add := func(ids []string) {
		for _, id := range ids {
			prefix := extractPrefix(id)
			if prefix != "" {
				m.sequences[prefix] = append(m.sequences[prefix], id)
			}
		}
	}
	add(allTetrominoes)
	add(allPurpleSigils)
	// Stars are deliberately absent here: they are only used for location
	// IDs. Item resolution for a star consumes from a unified "**" sequence.

	for prefix := range m.sequences {
		seq := m.sequences[prefix]
		sort.Slice(seq, func(i, j int) bool {
			return extractNumber(seq[i]) < extractNumber(seq[j])
		})
	}

	// Unified star sequence: **1, **2, ..., **30. When the server sends a
	// star item we grant the next **N in order regardless of the SL/SZ
	// grouping the locations use.
	starSeq := make([]string, 0, len(allStars))
	for i := 1; i <= len(allStars); i++ {
		starSeq = append(starSeq, "**"+strconv.Itoa(i))
	}
	m.sequences["**"] = starSeq
}

func (m *IdentifierMap) buildLocationTables() {
	idx := int64(0)
	assign := func(ids []string) {
		for _, id := range ids {
			locID := BaseLocationID + idx
			m.locationNameToID[id] = locID
			m.locationIDToName[locID] = id
			idx++
		}
	}
	assign(allTetrominoes)
	assign(allPurpleSigils)
	assign(allStars)
}

func (m *IdentifierMap) buildWorldKeyTables() {
	// Stars use "**{number}" in the game's collection map instead of
	// "SL{n}"/"SZ{n}": the game stores secret-type items with '*' for both
	// type and shape.
	for _, starID := range allStars {
		worldKey := "**" + strconv.Itoa(extractNumber(starID))
		m.modIDToWorldKey[starID] = worldKey
		m.worldKeyToModID[worldKey] = starID
	}
}

// ResolveNext resolves the next concrete tetromino for a received item.
// It increments the per-prefix counter; the N-th receipt of a type yields
// the N-th element of that type's sequence. Returns "", false when the item
// type is unknown or more copies have been received than objects exist —
// both are logged and ignored by policy.
func (m *IdentifierMap) ResolveNext(itemID int64) (string, bool) {
	prefix, ok := m.itemIDToPrefix[itemID]
	if !ok {
		if m.log != nil {
			m.log.Printf("unknown item id: %d (0x%X)", itemID, itemID)
		}
		return "", false
	}
	seq := m.sequences[prefix]
	if len(seq) == 0 {
		if m.log != nil {
			m.log.Printf("no sequence for prefix %s", prefix)
		}
		return "", false
	}
	m.receivedCounts[prefix]++
	count := m.receivedCounts[prefix]
	if count > len(seq) {
		if m.log != nil {
			m.log.Printf("received more %s items (%d) than exist (%d), ignoring", prefix, count, len(seq))
		}
		return "", false
	}
	return seq[count-1], true
}

// ResetCounters zeroes the received-item counters. Must be called on
// (re)connect before the server replays the full receipt history,
// otherwise resolution desyncs permanently.
func (m *IdentifierMap) ResetCounters() {
	m.receivedCounts = map[string]int{}
	if m.log != nil {
		m.log.Printf("item received counters reset")
	}
}

// LocationID returns the session location ID for a tetromino ID, or -1.
func (m *IdentifierMap) LocationID(modID string) int64 {
	if id, ok := m.locationNameToID[modID]; ok {
		return id
	}
	return -1
}

// LocationName returns the tetromino ID for a location ID, or "".
func (m *IdentifierMap) LocationName(locationID int64) string {
	return m.locationIDToName[locationID]
}

// DisplayName returns the human-readable name for an item ID (e.g. "Green J").
func (m *IdentifierMap) DisplayName(itemID int64) string {
	prefix, ok := m.itemIDToPrefix[itemID]
	if !ok {
		return ""
	}
	return m.prefixDisplayNames[prefix]
}

// DisplayNameFor returns the display name for a tetromino ID string.
func (m *IdentifierMap) DisplayNameFor(modID string) string {
	return m.prefixDisplayNames[extractPrefix(modID)]
}

// AllLocationIDs returns every known location ID, sorted.
func (m *IdentifierMap) AllLocationIDs() []int64 {
	out := make([]int64, 0, len(m.locationIDToName))
	for id := range m.locationIDToName {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ToWorldKey converts a mod-internal ID (e.g. "SL5") to the game's
// collection-map key format (e.g. "**5"). Non-star IDs pass through.
func (m *IdentifierMap) ToWorldKey(modID string) string {
	if k, ok := m.modIDToWorldKey[modID]; ok {
		return k
	}
	return modID
}

// FromWorldKey converts a collection-map key back to the mod-internal ID.
// Unrecognized keys pass through unchanged (treated as not ours).
func (m *IdentifierMap) FromWorldKey(worldKey string) string {
	if id, ok := m.worldKeyToModID[worldKey]; ok {
		return id
	}
	return worldKey
}

// IsPurpleSigil reports whether id is a purple sigil (HL prefix).
func IsPurpleSigil(id string) bool {
	return len(id) >= 3 && id[0] == 'H' && id[1] == 'L'
}

// IsStar reports whether id is a star, in either encoding: "**N" as stored
// in the collection map, or "SL{n}"/"SZ{n}" as referenced by locations.
func IsStar(id string) bool {
	if len(id) < 3 {
		return false
	}
	if id[0] == '*' && id[1] == '*' {
		return true
	}
	if id[0] == 'S' && (id[1] == 'L' || id[1] == 'Z') {
		return true
	}
	return false
}

func extractPrefix(id string) string {
	i := 0
	for i < len(id) && isPrefixByte(id[i]) {
		i++
	}
	return id[:i]
}

func extractNumber(id string) int {
	i := 0
	for i < len(id) && isPrefixByte(id[i]) {
		i++
	}
	if i >= len(id) {
		return 0
	}
	n, err := strconv.Atoi(id[i:])
	if err != nil {
		return 0
	}
	return n
}

func isPrefixByte(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || c == '*'
}
