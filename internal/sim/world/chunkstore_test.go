package world

import (
	"testing"

	"voxelbrush.dev/internal/geo"
)

func testGen() WorldGen {
	return WorldGen{
		Seed:             42,
		Height:           32,
		BoundaryR:        64,
		SpawnClearRadius: 8,
		SurfaceBase:      8,
		SurfaceAmp:       4,
		OrePermille:      18,
		ScatterPermille:  30,
		Air:              0,
		Grass:            1,
		Dirt:             2,
		Stone:            3,
		Sand:             4,
		IronOre:          7,
		TallGrass:        9,
	}
}

func TestSpawnClearingIsFlatGrass(t *testing.T) {
	s := NewChunkStore(testGen())
	for _, p := range [][2]int{{0, 0}, {8, -8}, {-5, 3}} {
		if got := s.SurfaceY(p[0], p[1]); got != 8 {
			t.Fatalf("surface at %v = %d, want 8", p, got)
		}
		if got := s.GetBlock(geo.Vec3i{X: p[0], Y: 7, Z: p[1]}); got != 1 {
			t.Fatalf("top block at %v = %d, want grass", p, got)
		}
		if got := s.GetBlock(geo.Vec3i{X: p[0], Y: 8, Z: p[1]}); got != 0 {
			t.Fatalf("air above surface at %v = %d", p, got)
		}
	}
}

func TestGenerationIsDeterministic(t *testing.T) {
	a := NewChunkStore(testGen())
	b := NewChunkStore(testGen())
	probes := []geo.Vec3i{
		{X: 0, Y: 0, Z: 0},
		{X: 31, Y: 5, Z: -17},
		{X: -40, Y: 12, Z: 40},
		{X: 15, Y: 7, Z: 15},
	}
	for _, p := range probes {
		if a.GetBlock(p) != b.GetBlock(p) {
			t.Fatalf("generation diverged at %v", p)
		}
	}
	ka := a.LoadedChunkKeys()
	kb := b.LoadedChunkKeys()
	if len(ka) != len(kb) {
		t.Fatalf("chunk sets differ: %d vs %d", len(ka), len(kb))
	}
	for i := range ka {
		da := a.chunks[ka[i]].Digest()
		db := b.chunks[kb[i]].Digest()
		if da != db {
			t.Fatalf("chunk %v digest differs", ka[i])
		}
	}
}

func TestSetBlockFlipsDigestAndReverts(t *testing.T) {
	s := NewChunkStore(testGen())
	pos := geo.Vec3i{X: 3, Y: 10, Z: 3}
	before := s.getOrGenChunk(0, 0).Digest()

	orig := s.GetBlock(pos)
	s.SetBlock(pos, orig+1)
	mid := s.getOrGenChunk(0, 0).Digest()
	if mid == before {
		t.Fatalf("digest unchanged after set")
	}
	s.SetBlock(pos, orig)
	after := s.getOrGenChunk(0, 0).Digest()
	if after != before {
		t.Fatalf("digest not restored after revert")
	}
}

func TestBoundsChecks(t *testing.T) {
	s := NewChunkStore(testGen())
	cases := []struct {
		pos geo.Vec3i
		in  bool
	}{
		{geo.Vec3i{X: 0, Y: 0, Z: 0}, true},
		{geo.Vec3i{X: 64, Y: 5, Z: -64}, true},
		{geo.Vec3i{X: 65, Y: 5, Z: 0}, false},
		{geo.Vec3i{X: 0, Y: -1, Z: 0}, false},
		{geo.Vec3i{X: 0, Y: 32, Z: 0}, false},
		{geo.Vec3i{X: 0, Y: 31, Z: 0}, true},
	}
	for _, c := range cases {
		if got := s.InBounds(c.pos); got != c.in {
			t.Fatalf("InBounds(%v) = %v, want %v", c.pos, got, c.in)
		}
	}
	// Writes outside the boundary are dropped, reads come back as air.
	outside := geo.Vec3i{X: 100, Y: 5, Z: 0}
	s.SetBlock(outside, 3)
	if got := s.GetBlock(outside); got != 0 {
		t.Fatalf("out-of-bounds write landed: %d", got)
	}
}

func TestNegativeCoordinatesMapIntoChunks(t *testing.T) {
	s := NewChunkStore(testGen())
	pos := geo.Vec3i{X: -1, Y: 9, Z: -1}
	s.SetBlock(pos, 4)
	if got := s.GetBlock(pos); got != 4 {
		t.Fatalf("read back = %d, want 4", got)
	}
	keys := s.LoadedChunkKeys()
	found := false
	for _, k := range keys {
		if k.CX == -1 && k.CZ == -1 {
			found = true
		}
	}
	if !found {
		t.Fatalf("negative position landed in wrong chunk: %v", keys)
	}
}
