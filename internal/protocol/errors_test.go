package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrProtoUnsupported,
		ErrNameTaken,
		ErrWorldStopped,
		ErrBadRequest,
		ErrInvalidOp,
		ErrInvalidTarget,
		ErrOutOfRange,
		ErrNoResource,
		ErrBlocked,
		ErrProtected,
		ErrRateLimit,
		ErrStale,
		ErrBadTemplate,
		ErrBadOrientation,
		ErrBadSnapping,
		ErrNoBrushSession,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}
