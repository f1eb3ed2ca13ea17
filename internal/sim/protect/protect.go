// Package protect guards regions against placement. Its interceptor rejects
// attempts outright instead of deferring, so it registers ahead of feature
// interceptors like the brush.
package protect

import (
	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/place"
)

// SpawnGuard rejects placements whose target column lies within Radius
// blocks of Center on both horizontal axes. Radius 0 disables the guard.
type SpawnGuard struct {
	Center geo.Vec3i
	Radius int
}

func (g *SpawnGuard) Name() string { return "spawn_guard" }

func (g *SpawnGuard) InterceptPlacement(a place.Attempt) place.Result {
	if g.Radius <= 0 {
		return place.Result{Decision: place.Passthrough}
	}
	dx := a.Target.Pos.X - g.Center.X
	if dx < 0 {
		dx = -dx
	}
	dz := a.Target.Pos.Z - g.Center.Z
	if dz < 0 {
		dz = -dz
	}
	if dx <= g.Radius && dz <= g.Radius {
		return place.Result{Decision: place.OverrideFailure, Code: protocol.ErrProtected}
	}
	return place.Result{Decision: place.Passthrough}
}
