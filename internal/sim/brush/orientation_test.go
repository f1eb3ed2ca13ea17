package brush

import (
	"testing"

	"voxelbrush.dev/internal/geo"
)

func TestOrientationTable(t *testing.T) {
	if len(orientations) != OrientationCount {
		t.Fatalf("orientation table has %d entries, want %d", len(orientations), OrientationCount)
	}
	seen := map[[9]int]int{}
	for i, m := range orientations {
		k := matKey(m)
		if prev, dup := seen[k]; dup {
			t.Fatalf("orientations %d and %d are identical", prev, i)
		}
		seen[k] = i
	}
}

func TestOrientationZeroIsIdentity(t *testing.T) {
	for _, v := range []geo.Vec3i{{X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 3, Y: -2, Z: 7}} {
		if got := RotateOffset(v, 0); got != v {
			t.Fatalf("RotateOffset(%v, 0) = %v, want unchanged", v, got)
		}
	}
}

// Every orientation must permute the axis directions, so rotating the six
// unit offsets yields six distinct unit offsets.
func TestOrientationsPermuteAxes(t *testing.T) {
	units := []geo.Vec3i{{X: 1, Y: 0, Z: 0}, {X: -1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: -1, Z: 0}, {X: 0, Y: 0, Z: 1}, {X: 0, Y: 0, Z: -1}}
	for idx := 0; idx < OrientationCount; idx++ {
		got := map[geo.Vec3i]bool{}
		for _, u := range units {
			r := RotateOffset(u, idx)
			if geo.Manhattan(r, geo.Vec3i{}) != 1 {
				t.Fatalf("orientation %d maps unit %v to non-unit %v", idx, u, r)
			}
			got[r] = true
		}
		if len(got) != 6 {
			t.Fatalf("orientation %d collapses unit offsets: %d distinct", idx, len(got))
		}
	}
}

func TestNormalizeOrientation(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 0},
		{23, 23},
		{24, 0},
		{25, 1},
		{-1, 23},
		{-24, 0},
		{-25, 23},
	}
	for _, c := range cases {
		if got := NormalizeOrientation(c.in); got != c.want {
			t.Fatalf("NormalizeOrientation(%d) = %d, want %d", c.in, got, c.want)
		}
	}
	if ValidOrientation(-1) || ValidOrientation(OrientationCount) {
		t.Fatalf("out-of-range indexes reported valid")
	}
	if !ValidOrientation(0) || !ValidOrientation(OrientationCount-1) {
		t.Fatalf("in-range indexes reported invalid")
	}
}
