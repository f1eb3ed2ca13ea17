// Package geo holds the integer block geometry shared by the sim,
// the transports, and the client.
package geo

// Vec3i is an integer block coordinate.
type Vec3i struct {
	X int
	Y int
	Z int
}

func (v Vec3i) Add(o Vec3i) Vec3i { return Vec3i{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3i) ToArray() [3]int { return [3]int{v.X, v.Y, v.Z} }

// FromArray converts the wire form [x,y,z] back into a Vec3i.
func FromArray(a [3]int) Vec3i { return Vec3i{a[0], a[1], a[2]} }

// Manhattan returns the L1 distance between a and b.
func Manhattan(a, b Vec3i) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	return dx + dy + dz
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod returns the remainder with the sign of b.
func FloorMod(a, b int) int {
	return a - FloorDiv(a, b)*b
}

// Face identifies one side of a block. Values match the wire enum.
type Face string

const (
	FaceDown  Face = "DOWN"
	FaceUp    Face = "UP"
	FaceNorth Face = "NORTH"
	FaceSouth Face = "SOUTH"
	FaceWest  Face = "WEST"
	FaceEast  Face = "EAST"
)

// Offset returns the unit step from a block to its neighbor across f.
func (f Face) Offset() Vec3i {
	switch f {
	case FaceDown:
		return Vec3i{0, -1, 0}
	case FaceUp:
		return Vec3i{0, 1, 0}
	case FaceNorth:
		return Vec3i{0, 0, -1}
	case FaceSouth:
		return Vec3i{0, 0, 1}
	case FaceWest:
		return Vec3i{-1, 0, 0}
	case FaceEast:
		return Vec3i{1, 0, 0}
	}
	return Vec3i{}
}

func (f Face) Valid() bool {
	switch f {
	case FaceDown, FaceUp, FaceNorth, FaceSouth, FaceWest, FaceEast:
		return true
	}
	return false
}
