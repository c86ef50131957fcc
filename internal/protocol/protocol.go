package protocol

import "encoding/json"

const Version = "0.5"

// Message types.
const (
	TypeRoomInfo       = "ROOM_INFO"
	TypeConnect        = "CONNECT"
	TypeConnected      = "CONNECTED"
	TypeRefused        = "CONNECTION_REFUSED"
	TypeReceivedItems  = "RECEIVED_ITEMS"
	TypeLocationChecks = "LOCATION_CHECKS"
	TypeStatusUpdate   = "STATUS_UPDATE"
	TypeBounce         = "BOUNCE"
	TypeBounced        = "BOUNCED"
	TypePrint          = "PRINT"
)

// Client status values for STATUS_UPDATE.
const (
	StatusConnected = 5
	StatusReady     = 10
	StatusPlaying   = 20
	StatusGoal      = 30
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
