package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello            = "HELLO"
	TypeWelcome          = "WELCOME"
	TypeError            = "ERROR"
	TypeAct              = "ACT"
	TypeEvents           = "EVENTS"
	TypeBrushState       = "BRUSH_STATE"
	TypeDimensionPreview = "DIMENSION_PREVIEW"
	TypePlaceAck         = "PLACE_ACK"
)

// DisableDimension is the DIMENSION_PREVIEW sentinel for "no preview active".
// It is never allocated as a real dimension id.
const DisableDimension = -1

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
