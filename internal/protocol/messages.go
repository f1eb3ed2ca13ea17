package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	AgentName       string `json:"agent_name"`
	Client          string `json:"client,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	AgentID         string         `json:"agent_id"`
	WorldID         string         `json:"world_id"`
	Tick            uint64         `json:"tick"`
	SpawnPos        [3]int         `json:"spawn_pos"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz int   `json:"tick_rate_hz"`
	ChunkSize  int   `json:"chunk_size"`
	Height     int   `json:"height"`
	BoundaryR  int   `json:"boundary_r"`
	Seed       int64 `json:"seed"`

	// OrientationCount pins the discrete brush orientation set; both ends
	// must agree or BRUSH_STATE.orientation_index is meaningless.
	OrientationCount int `json:"orientation_count"`
}

type CatalogDigests struct {
	Blocks  DigestRef `json:"blocks"`
	Items   DigestRef `json:"items"`
	Brushes DigestRef `json:"brushes"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// ERROR (server -> client): protocol-level rejection, usually before close.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

// ACT (client -> server)
type ActMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	AgentID         string       `json:"agent_id"`
	Instants        []InstantReq `json:"instants,omitempty"`
	Places          []PlaceReq   `json:"places,omitempty"`
}

type InstantReq struct {
	ID   string `json:"id"`
	Type string `json:"type"`

	// MOVE, BRUSH_SET, BRUSH_MOVE
	Pos *[3]int `json:"pos,omitempty"`

	// BRUSH_SET
	TemplateID string `json:"template_id,omitempty"`

	// BRUSH_SET, BRUSH_SNAP
	Snapping string `json:"snapping,omitempty"`

	// BRUSH_ROTATE
	Steps int     `json:"steps,omitempty"`
	Yaw   float64 `json:"yaw,omitempty"`
}

// PlaceReq is one placement attempt. Seq values are client-issued, strictly
// increasing per session; the server acknowledges them cumulatively via
// PLACE_ACK.
type PlaceReq struct {
	Seq    int64      `json:"seq"`
	Item   string     `json:"item"`
	Target *TargetRef `json:"target,omitempty"`
}

type TargetRef struct {
	Pos  [3]int      `json:"pos"`
	Face string      `json:"face"`
	Hit  *[3]float64 `json:"hit,omitempty"`
}

type ItemStack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// EVENTS (server -> client)
type EventsMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	Tick            uint64  `json:"tick"`
	AgentID         string  `json:"agent_id"`
	Events          []Event `json:"events"`
}

type Event map[string]interface{}

// BRUSH_STATE (server -> client): authoritative brush transform for the
// client-side preview. All five payload fields are required and always
// present on the wire.
type BrushStateMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`

	Active           bool   `json:"active"`
	OrientationIndex int    `json:"orientation_index"`
	RotationY        float64 `json:"rotation_y"` // radians
	Pos              [3]int `json:"pos"`
	Snapping         string `json:"snapping"`
}

// DIMENSION_PREVIEW (server -> client): selects or disables the preview
// dimension the client should render. Pos is present iff DimensionID is not
// DisableDimension; the sender enforces that, and receivers treat an active
// id without pos as a protocol violation.
type DimensionPreviewMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	DimensionID     int     `json:"dimension_id"`
	Pos             *[3]int `json:"pos,omitempty"`
}

// PLACE_ACK: cumulative placement acknowledgement. LastAppliedSeq is the
// highest client-issued seq the server has committed a decision for; it never
// decreases within a session. Sent server -> client after processing; a
// client may send its own watermark back, which the server records.
type PlaceAckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	LastAppliedSeq  int64  `json:"last_applied_seq"`
}
