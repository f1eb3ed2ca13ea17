// Package brush implements the server-side build brush: per-agent sessions
// holding a template transform, ghost materialization into a preview
// dimension, and the placement interceptor that stamps templates into the
// world. Everything here runs on the world goroutine.
package brush

import (
	"math"

	"voxelbrush.dev/internal/geo"
)

// Snapping modes for the brush anchor. Values match the wire enum.
type Snapping string

const (
	SnapNone  Snapping = "NONE"
	SnapGrid  Snapping = "GRID"  // X/Z to multiples of the template bounding size
	SnapChunk Snapping = "CHUNK" // X/Z to the 16-block chunk grid
)

func ParseSnapping(s string) (Snapping, bool) {
	switch Snapping(s) {
	case SnapNone, SnapGrid, SnapChunk:
		return Snapping(s), true
	}
	return "", false
}

// State is the authoritative brush transform synced to the client as
// BRUSH_STATE. It is an immutable snapshot; RotationY is radians and only
// affects the rendered ghost, never the stamped cells.
type State struct {
	Active           bool
	OrientationIndex int
	RotationY        float64
	Pos              geo.Vec3i
	Snapping         Snapping
}

func snapPos(pos geo.Vec3i, snapping Snapping, size geo.Vec3i) geo.Vec3i {
	switch snapping {
	case SnapGrid:
		return geo.Vec3i{
			X: snapAxis(pos.X, size.X),
			Y: pos.Y,
			Z: snapAxis(pos.Z, size.Z),
		}
	case SnapChunk:
		return geo.Vec3i{
			X: snapAxis(pos.X, 16),
			Y: pos.Y,
			Z: snapAxis(pos.Z, 16),
		}
	}
	return pos
}

func snapAxis(v, n int) int {
	if n < 1 {
		n = 1
	}
	return geo.FloorDiv(v, n) * n
}

func wrapAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
