package world

import (
	"crypto/sha256"
	"encoding/binary"
	"sort"

	"voxelbrush.dev/internal/geo"
)

type ChunkKey struct {
	CX int
	CZ int
}

// Chunk is one 16x16 column of blocks spanning the full world height.
type Chunk struct {
	CX, CZ int
	Height int
	Blocks []uint16 // len = 16*16*Height

	dirty bool
	hash  [32]byte
}

func (c *Chunk) index(x, y, z int) int {
	// x fastest, then z, then y
	return x + z*16 + y*256
}

func (c *Chunk) Get(x, y, z int) uint16 {
	return c.Blocks[c.index(x, y, z)]
}

func (c *Chunk) Set(x, y, z int, b uint16) {
	i := c.index(x, y, z)
	if c.Blocks[i] == b {
		return
	}
	c.Blocks[i] = b
	c.dirty = true
}

func (c *Chunk) Digest() [32]byte {
	if c.dirty || c.hash == ([32]byte{}) {
		// Hash the raw uint16 slice deterministically.
		h := sha256.New()
		var tmp [2]byte
		for _, v := range c.Blocks {
			binary.LittleEndian.PutUint16(tmp[:], v)
			h.Write(tmp[:])
		}
		copy(c.hash[:], h.Sum(nil))
		c.dirty = false
	}
	return c.hash
}

type WorldGen struct {
	Seed      int64
	Height    int
	BoundaryR int // blocks, square around the origin

	// Surface shaping and sprinkle rates.
	SpawnClearRadius int
	SurfaceBase      int
	SurfaceAmp       int
	OrePermille      int
	ScatterPermille  int

	// Palette ids for the generated blocks.
	Air       uint16
	Grass     uint16
	Dirt      uint16
	Stone     uint16
	Sand      uint16
	IronOre   uint16
	TallGrass uint16
}

type ChunkStore struct {
	gen WorldGen
	// Accessed only from the world loop goroutine.
	chunks map[ChunkKey]*Chunk
}

func NewChunkStore(gen WorldGen) *ChunkStore {
	return &ChunkStore{
		gen:    gen,
		chunks: map[ChunkKey]*Chunk{},
	}
}

func (s *ChunkStore) InBounds(pos geo.Vec3i) bool {
	if pos.Y < 0 || pos.Y >= s.gen.Height {
		return false
	}
	if s.gen.BoundaryR > 0 {
		if pos.X < -s.gen.BoundaryR || pos.X > s.gen.BoundaryR || pos.Z < -s.gen.BoundaryR || pos.Z > s.gen.BoundaryR {
			return false
		}
	}
	return true
}

func (s *ChunkStore) LoadedChunkKeys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s.chunks))
	for k := range s.chunks {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].CX != keys[j].CX {
			return keys[i].CX < keys[j].CX
		}
		return keys[i].CZ < keys[j].CZ
	})
	return keys
}

func (s *ChunkStore) GetBlock(pos geo.Vec3i) uint16 {
	if !s.InBounds(pos) {
		return s.gen.Air
	}
	cx := geo.FloorDiv(pos.X, 16)
	cz := geo.FloorDiv(pos.Z, 16)
	lx := geo.FloorMod(pos.X, 16)
	lz := geo.FloorMod(pos.Z, 16)
	ch := s.getOrGenChunk(cx, cz)
	return ch.Get(lx, pos.Y, lz)
}

func (s *ChunkStore) SetBlock(pos geo.Vec3i, b uint16) {
	if !s.InBounds(pos) {
		return
	}
	cx := geo.FloorDiv(pos.X, 16)
	cz := geo.FloorDiv(pos.Z, 16)
	lx := geo.FloorMod(pos.X, 16)
	lz := geo.FloorMod(pos.Z, 16)
	ch := s.getOrGenChunk(cx, cz)
	ch.Set(lx, pos.Y, lz, b)
}

// SurfaceY reports the first free y above the topmost solid block.
func (s *ChunkStore) SurfaceY(x, z int) int {
	for y := s.gen.Height - 2; y >= 1; y-- {
		if s.GetBlock(geo.Vec3i{X: x, Y: y, Z: z}) != s.gen.Air {
			return y + 1
		}
	}
	return 1
}

func (s *ChunkStore) getOrGenChunk(cx, cz int) *Chunk {
	k := ChunkKey{CX: cx, CZ: cz}
	if ch, ok := s.chunks[k]; ok {
		return ch
	}
	ch := &Chunk{
		CX:     cx,
		CZ:     cz,
		Height: s.gen.Height,
		Blocks: make([]uint16, 16*16*s.gen.Height),
	}
	s.generateChunk(ch)
	ch.dirty = true
	_ = ch.Digest() // initialize digest
	s.chunks[k] = ch
	return ch
}

// generateChunk fills one column chunk: hash-shaped surface height, grass or
// sand on top, dirt below, stone strata with sparse iron ore, and a light
// scatter of tall grass above the surface. The spawn clearing is flattened to
// the base height so fresh agents always stand on level ground.
func (s *ChunkStore) generateChunk(ch *Chunk) {
	for z := 0; z < 16; z++ {
		for x := 0; x < 16; x++ {
			wx := ch.CX*16 + x
			wz := ch.CZ*16 + z

			h := s.surfaceHeight(wx, wz)
			sandy := s.sandyAt(wx, wz)

			for y := 0; y < s.gen.Height; y++ {
				b := s.gen.Air
				switch {
				case y < h-3:
					b = s.gen.Stone
					if hash3(s.gen.Seed+11, wx, y, wz)%1000 < uint64(s.gen.OrePermille) {
						b = s.gen.IronOre
					}
				case y < h-1:
					if sandy {
						b = s.gen.Sand
					} else {
						b = s.gen.Dirt
					}
				case y == h-1:
					if sandy {
						b = s.gen.Sand
					} else {
						b = s.gen.Grass
					}
				case y == h:
					if !sandy && !withinSpawnClear(wx, wz, s.gen.SpawnClearRadius) &&
						hash2(s.gen.Seed+23, wx, wz)%1000 < uint64(s.gen.ScatterPermille) {
						b = s.gen.TallGrass
					}
				}
				ch.Blocks[ch.index(x, y, z)] = b
			}
		}
	}
}

// surfaceHeight varies in gentle 8x8 plateaus around the base height.
func (s *ChunkStore) surfaceHeight(wx, wz int) int {
	if withinSpawnClear(wx, wz, s.gen.SpawnClearRadius) {
		return s.gen.SurfaceBase
	}
	rx := geo.FloorDiv(wx, 8)
	rz := geo.FloorDiv(wz, 8)
	amp := s.gen.SurfaceAmp
	if amp <= 0 {
		return s.gen.SurfaceBase
	}
	h := s.gen.SurfaceBase + int(hash2(s.gen.Seed, rx, rz)%uint64(amp+1))
	if h > s.gen.Height-2 {
		h = s.gen.Height - 2
	}
	if h < 2 {
		h = 2
	}
	return h
}

// sandyAt marks 16x16 regions as sand patches.
func (s *ChunkStore) sandyAt(wx, wz int) bool {
	if withinSpawnClear(wx, wz, s.gen.SpawnClearRadius) {
		return false
	}
	rx := geo.FloorDiv(wx, 16)
	rz := geo.FloorDiv(wz, 16)
	return hash2(s.gen.Seed+5, rx, rz)%5 == 0
}

func withinSpawnClear(wx, wz, radius int) bool {
	if radius <= 0 {
		return false
	}
	return wx >= -radius && wx <= radius && wz >= -radius && wz <= radius
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	return mix64(uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9))
}

func hash3(seed int64, x, y, z int) uint64 {
	uy := uint64(uint32(int32(y)))
	return mix64(hash2(seed, x, z) ^ (uy * 0x94d049bb133111eb))
}
