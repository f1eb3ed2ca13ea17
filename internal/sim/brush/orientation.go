package brush

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelbrush.dev/internal/geo"
)

// OrientationCount pins the size of the discrete orientation set. Client and
// server build the same table; WELCOME carries the count so a drifted client
// fails the handshake instead of rendering garbage.
const OrientationCount = 24

// orientations holds the 24 axis-aligned rotations of a cube. Index 0 is the
// identity. The construction order is deterministic, so indexes agree across
// processes.
var orientations = buildOrientations()

func buildOrientations() []mgl64.Mat3 {
	quarter := []float64{0, math.Pi / 2, math.Pi, 3 * math.Pi / 2}
	seen := make(map[[9]int]bool, OrientationCount)
	out := make([]mgl64.Mat3, 0, OrientationCount)
	for _, rx := range quarter {
		for _, ry := range quarter {
			for _, rz := range quarter {
				m := mgl64.Rotate3DY(ry).Mul3(mgl64.Rotate3DX(rx)).Mul3(mgl64.Rotate3DZ(rz))
				k := matKey(m)
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, m)
			}
		}
	}
	return out
}

// matKey rounds a rotation matrix to its integer form. Quarter-turn
// matrices only contain -1, 0 and 1 up to float error.
func matKey(m mgl64.Mat3) [9]int {
	var k [9]int
	for i := 0; i < 9; i++ {
		k[i] = int(math.Round(m[i]))
	}
	return k
}

func ValidOrientation(idx int) bool { return idx >= 0 && idx < OrientationCount }

// NormalizeOrientation wraps an index or step sum into [0, OrientationCount).
func NormalizeOrientation(idx int) int {
	idx %= OrientationCount
	if idx < 0 {
		idx += OrientationCount
	}
	return idx
}

// RotateOffset maps a template offset through orientation idx. idx must be a
// valid orientation index.
func RotateOffset(off geo.Vec3i, idx int) geo.Vec3i {
	v := orientations[idx].Mul3x1(mgl64.Vec3{float64(off.X), float64(off.Y), float64(off.Z)})
	return geo.Vec3i{
		X: int(math.Round(v.X())),
		Y: int(math.Round(v.Y())),
		Z: int(math.Round(v.Z())),
	}
}
