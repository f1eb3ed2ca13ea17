package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest  = "E_PROTO_BAD_REQUEST"
	ErrProtoUnsupported = "E_PROTO_UNSUPPORTED"
	ErrNameTaken        = "E_NAME_TAKEN"
	ErrWorldStopped     = "E_WORLD_STOPPED"

	// Action layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrInvalidOp     = "E_INVALID_OP"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrOutOfRange    = "E_OUT_OF_RANGE"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrBlocked       = "E_BLOCKED"
	ErrProtected     = "E_PROTECTED"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrStale         = "E_STALE"

	// Brush layer.
	ErrBadTemplate    = "E_BAD_TEMPLATE"
	ErrBadOrientation = "E_BAD_ORIENTATION"
	ErrBadSnapping    = "E_BAD_SNAPPING"
	ErrNoBrushSession = "E_NO_BRUSH_SESSION"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:  {},
	ErrProtoUnsupported: {},
	ErrNameTaken:        {},
	ErrWorldStopped:     {},
	ErrBadRequest:       {},
	ErrInvalidOp:        {},
	ErrInvalidTarget:    {},
	ErrOutOfRange:       {},
	ErrNoResource:       {},
	ErrBlocked:          {},
	ErrProtected:        {},
	ErrRateLimit:        {},
	ErrStale:            {},
	ErrBadTemplate:      {},
	ErrBadOrientation:   {},
	ErrBadSnapping:      {},
	ErrNoBrushSession:   {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
