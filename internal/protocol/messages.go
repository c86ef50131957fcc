package protocol

// ROOM_INFO (server -> client): first message after the socket opens.
type RoomInfoMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	SeedName        string   `json:"seed_name"`
	Tags            []string `json:"tags,omitempty"`
	Password        bool     `json:"password,omitempty"`
}

// CONNECT (client -> server)
type ConnectMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Game            string   `json:"game"`
	SlotName        string   `json:"slot_name"`
	Password        string   `json:"password,omitempty"`
	UUID            string   `json:"uuid"`
	ItemsHandling   int      `json:"items_handling"`
	Tags            []string `json:"tags,omitempty"`
}

// ItemsHandling flags for ConnectMsg.
const (
	ItemsHandlingRemote   = 0b001
	ItemsHandlingOwnWorld = 0b010
	ItemsHandlingStarting = 0b100
	ItemsHandlingAll      = ItemsHandlingRemote | ItemsHandlingOwnWorld | ItemsHandlingStarting
)

// CONNECTED (server -> client): handshake accepted.
type ConnectedMsg struct {
	Type             string  `json:"type"`
	ProtocolVersion  string  `json:"protocol_version"`
	Slot             int     `json:"slot"`
	Team             int     `json:"team"`
	CheckedLocations []int64 `json:"checked_locations"`
	MissingLocations []int64 `json:"missing_locations"`
}

// CONNECTION_REFUSED (server -> client)
type RefusedMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	Errors          []string `json:"errors"`
}

// NetworkItem is one granted item inside RECEIVED_ITEMS.
type NetworkItem struct {
	Item     int64 `json:"item"`
	Location int64 `json:"location"`
	Player   int   `json:"player"`
	Flags    int   `json:"flags,omitempty"`
}

// RECEIVED_ITEMS (server -> client).
//
// Index is the position of Items[0] in the full receipt history. Index 0
// means the server is replaying the history from the beginning, which the
// client must treat as a full resync.
type ReceivedItemsMsg struct {
	Type            string        `json:"type"`
	ProtocolVersion string        `json:"protocol_version"`
	Index           int           `json:"index"`
	Items           []NetworkItem `json:"items"`
}

// LOCATION_CHECKS (client -> server)
type LocationChecksMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Locations       []int64 `json:"locations"`
}

// STATUS_UPDATE (client -> server)
type StatusUpdateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Status          int    `json:"status"`
}

// BOUNCE (client -> server) / BOUNCED (server -> client): tagged broadcast.
// Death link rides on the "DeathLink" tag.
type BounceMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	ID              string     `json:"id,omitempty"`
	Tags            []string   `json:"tags,omitempty"`
	Data            BounceData `json:"data"`
}

type BounceData struct {
	Time   float64 `json:"time,omitempty"`
	Source string  `json:"source,omitempty"`
	Cause  string  `json:"cause,omitempty"`
}

// PRINT (server -> client): human-readable text for the HUD.
type PrintMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Text            string `json:"text"`
}

const TagDeathLink = "DeathLink"

func HasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
