package brush

import (
	"testing"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/place"
)

// fakeWorld implements WorldAccess, PreviewDims and Emitter the way the real
// world does, against a flat in-memory grid.
type fakeWorld struct {
	height   int
	boundary int
	blocks   map[geo.Vec3i]uint16
	ids      map[string]uint16
	replace  map[uint16]bool
	agents   map[string]geo.Vec3i
	inv      map[string]map[string]int

	previews map[string]int
	fills    map[int]map[geo.Vec3i]uint16
	anchors  map[int]geo.Vec3i
	nextDim  int
	released []string

	states  []State
	dimIDs  []int
	dimPos  []*geo.Vec3i
}

func newFakeWorld(t *testing.T) *fakeWorld {
	t.Helper()
	cats := loadTestCatalogs(t)
	w := &fakeWorld{
		height:   64,
		boundary: 128,
		blocks:   map[geo.Vec3i]uint16{},
		ids:      map[string]uint16{},
		replace:  map[uint16]bool{},
		agents:   map[string]geo.Vec3i{"A1": {X: 0, Y: 9, Z: 0}},
		inv:      map[string]map[string]int{"A1": {"PLANK": 64, "GLASS": 32, "BUILD_BRUSH": 1}},
		previews: map[string]int{},
		fills:    map[int]map[geo.Vec3i]uint16{},
		anchors:  map[int]geo.Vec3i{},
		nextDim:  1,
	}
	for name, id := range cats.Blocks.Index {
		w.ids[name] = id
		if cats.Blocks.Defs[name].Replaceable {
			w.replace[id] = true
		}
	}
	return w
}

func (w *fakeWorld) InBounds(p geo.Vec3i) bool {
	if p.Y < 0 || p.Y >= w.height {
		return false
	}
	return p.X >= -w.boundary && p.X <= w.boundary && p.Z >= -w.boundary && p.Z <= w.boundary
}

func (w *fakeWorld) BlockAt(p geo.Vec3i) uint16 { return w.blocks[p] }

func (w *fakeWorld) SetBlock(p geo.Vec3i, b uint16, actor string) { w.blocks[p] = b }

func (w *fakeWorld) BlockID(name string) (uint16, bool) {
	id, ok := w.ids[name]
	return id, ok
}

func (w *fakeWorld) Replaceable(b uint16) bool { return w.replace[b] }

func (w *fakeWorld) AgentPos(agentID string) (geo.Vec3i, bool) {
	p, ok := w.agents[agentID]
	return p, ok
}

func (w *fakeWorld) TakeItems(agentID string, cost map[string]int) bool {
	inv := w.inv[agentID]
	for item, n := range cost {
		if inv[item] < n {
			return false
		}
	}
	for item, n := range cost {
		inv[item] -= n
	}
	return true
}

func (w *fakeWorld) EnsurePreview(agentID string) int {
	if id, ok := w.previews[agentID]; ok {
		return id
	}
	id := w.nextDim
	w.nextDim++
	w.previews[agentID] = id
	return id
}

func (w *fakeWorld) FillPreview(dimID int, cells map[geo.Vec3i]uint16, anchor geo.Vec3i) {
	w.fills[dimID] = cells
	w.anchors[dimID] = anchor
}

func (w *fakeWorld) ReleasePreview(agentID string) {
	delete(w.previews, agentID)
	w.released = append(w.released, agentID)
}

func (w *fakeWorld) SendBrushState(agentID string, st State) { w.states = append(w.states, st) }

func (w *fakeWorld) SendDimensionPreview(agentID string, dimID int, pos *geo.Vec3i) {
	w.dimIDs = append(w.dimIDs, dimID)
	w.dimPos = append(w.dimPos, pos)
}

func newTestManager(t *testing.T, w *fakeWorld) *Manager {
	t.Helper()
	m, err := New(Config{}, w, w, w, loadTestCatalogs(t), nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func TestSetStartsSessionAndSyncs(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)

	ok, code := m.Set("A1", "cabin_3x3", geo.Vec3i{X: 10, Y: 9, Z: 10}, SnapNone)
	if !ok || code != "" {
		t.Fatalf("Set failed: ok=%v code=%q", ok, code)
	}

	st, ok := m.SessionState("A1")
	if !ok || !st.Active {
		t.Fatalf("no active session after Set: %+v", st)
	}
	if st.OrientationIndex != 0 || st.RotationY != 0 || st.Pos != (geo.Vec3i{X: 10, Y: 9, Z: 10}) {
		t.Fatalf("unexpected session state %+v", st)
	}

	if len(w.states) != 1 || !w.states[0].Active {
		t.Fatalf("expected one active BRUSH_STATE, got %v", w.states)
	}
	if len(w.dimIDs) != 1 || w.dimIDs[0] != 1 || w.dimPos[0] == nil || *w.dimPos[0] != st.Pos {
		t.Fatalf("expected DIMENSION_PREVIEW for dim 1 at anchor, got ids=%v", w.dimIDs)
	}
	if len(w.fills[1]) != 13 {
		t.Fatalf("ghost has %d cells, want 13", len(w.fills[1]))
	}
}

func TestSetValidation(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)

	if ok, code := m.Set("A1", "no_such", geo.Vec3i{X: 1, Y: 9, Z: 1}, SnapNone); ok || code != protocol.ErrBadTemplate {
		t.Fatalf("unknown template: ok=%v code=%q", ok, code)
	}
	if ok, code := m.Set("A1", "column_3", geo.Vec3i{X: 90, Y: 9, Z: 0}, SnapNone); ok || code != protocol.ErrOutOfRange {
		t.Fatalf("out of reach: ok=%v code=%q", ok, code)
	}
	if ok, code := m.Set("A1", "column_3", geo.Vec3i{X: 0, Y: -1, Z: 0}, SnapNone); ok || code != protocol.ErrInvalidTarget {
		t.Fatalf("out of bounds: ok=%v code=%q", ok, code)
	}
	if _, active := m.SessionState("A1"); active {
		t.Fatalf("failed Set must not leave a session")
	}
}

func TestMoveAppliesSnapping(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)

	if ok, _ := m.Set("A1", "cabin_3x3", geo.Vec3i{X: 0, Y: 9, Z: 0}, SnapGrid); !ok {
		t.Fatalf("Set failed")
	}
	// cabin bounding size is 3x2x3, so GRID snaps X and Z to multiples of 3.
	ok, code := m.Move("A1", geo.Vec3i{X: 7, Y: 9, Z: 5})
	if !ok || code != "" {
		t.Fatalf("Move failed: %q", code)
	}
	st, _ := m.SessionState("A1")
	if st.Pos != (geo.Vec3i{X: 6, Y: 9, Z: 3}) {
		t.Fatalf("snapped pos = %v, want {6 9 3}", st.Pos)
	}

	// CHUNK snapping goes to the 16 grid.
	if ok, _ := m.SetSnapping("A1", SnapChunk); !ok {
		t.Fatalf("SetSnapping failed")
	}
	st, _ = m.SessionState("A1")
	if st.Pos != (geo.Vec3i{X: 0, Y: 9, Z: 0}) {
		t.Fatalf("chunk-snapped pos = %v, want {0 9 0}", st.Pos)
	}

	if ok, code := m.Move("A7", geo.Vec3i{X: 1, Y: 9, Z: 1}); ok || code != protocol.ErrNoBrushSession {
		t.Fatalf("move without session: ok=%v code=%q", ok, code)
	}
}

func TestRotateWraps(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)
	if ok, _ := m.Set("A1", "wall_3x3", geo.Vec3i{X: 4, Y: 9, Z: 4}, SnapNone); !ok {
		t.Fatalf("Set failed")
	}

	if ok, _ := m.Rotate("A1", OrientationCount+1, 0); !ok {
		t.Fatalf("Rotate failed")
	}
	st, _ := m.SessionState("A1")
	if st.OrientationIndex != 1 {
		t.Fatalf("orientation = %d, want 1", st.OrientationIndex)
	}

	if ok, _ := m.Rotate("A1", -2, 0); !ok {
		t.Fatalf("Rotate failed")
	}
	st, _ = m.SessionState("A1")
	if st.OrientationIndex != OrientationCount-1 {
		t.Fatalf("orientation = %d, want %d", st.OrientationIndex, OrientationCount-1)
	}

	if ok, _ := m.Rotate("A1", 0, 7.0); !ok {
		t.Fatalf("Rotate failed")
	}
	st, _ = m.SessionState("A1")
	if st.RotationY > 3.1416 || st.RotationY <= -3.1416 {
		t.Fatalf("rotation_y %v not wrapped into (-pi, pi]", st.RotationY)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)

	if ok, code := m.Clear("A1"); !ok || code != "" {
		t.Fatalf("clear with no session: ok=%v code=%q", ok, code)
	}

	if ok, _ := m.Set("A1", "column_3", geo.Vec3i{X: 2, Y: 9, Z: 2}, SnapNone); !ok {
		t.Fatalf("Set failed")
	}
	w.states = nil
	w.dimIDs = nil
	w.dimPos = nil

	if ok, _ := m.Clear("A1"); !ok {
		t.Fatalf("Clear failed")
	}
	if len(w.states) != 1 || w.states[0].Active {
		t.Fatalf("expected inactive BRUSH_STATE after clear, got %v", w.states)
	}
	if len(w.dimIDs) != 1 || w.dimIDs[0] != protocol.DisableDimension || w.dimPos[0] != nil {
		t.Fatalf("expected disable DIMENSION_PREVIEW, got ids=%v", w.dimIDs)
	}
	if len(w.released) != 1 || w.released[0] != "A1" {
		t.Fatalf("preview dimension not released: %v", w.released)
	}
	if _, active := m.SessionState("A1"); active {
		t.Fatalf("session survived Clear")
	}
}

func TestTryPlaceBrushBlock(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)
	anchor := geo.Vec3i{X: 10, Y: 9, Z: 10}
	if ok, _ := m.Set("A1", "cabin_3x3", anchor, SnapNone); !ok {
		t.Fatalf("Set failed")
	}

	stack := place.ItemStack{Item: "BUILD_BRUSH", Count: 1}
	target := place.Selection{Pos: anchor, Face: geo.FaceUp}

	if !m.TryPlaceBrushBlock("A1", stack, target) {
		t.Fatalf("stamp failed")
	}
	if w.inv["A1"]["PLANK"] != 64-9 || w.inv["A1"]["GLASS"] != 32-4 {
		t.Fatalf("materials not consumed: %v", w.inv["A1"])
	}
	plank := w.ids["PLANK"]
	if w.blocks[anchor] != plank {
		t.Fatalf("anchor cell not stamped")
	}
	glass := w.ids["GLASS"]
	if w.blocks[geo.Vec3i{X: 9, Y: 10, Z: 9}] != glass {
		t.Fatalf("corner post not stamped")
	}
	if st, _ := m.SessionState("A1"); !st.Active {
		t.Fatalf("session must stay active after a stamp")
	}
}

func TestTryPlaceBrushBlockDeclines(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)
	anchor := geo.Vec3i{X: 10, Y: 9, Z: 10}
	stack := place.ItemStack{Item: "BUILD_BRUSH", Count: 1}
	target := place.Selection{Pos: anchor, Face: geo.FaceUp}

	// No session yet.
	if m.TryPlaceBrushBlock("A1", stack, target) {
		t.Fatalf("stamped without a session")
	}

	if ok, _ := m.Set("A1", "cabin_3x3", anchor, SnapNone); !ok {
		t.Fatalf("Set failed")
	}

	// Wrong tool in hand.
	if m.TryPlaceBrushBlock("A1", place.ItemStack{Item: "PLANK", Count: 4}, target) {
		t.Fatalf("stamped with the wrong tool")
	}

	// A solid block inside the footprint blocks the stamp.
	w.blocks[geo.Vec3i{X: 11, Y: 9, Z: 11}] = w.ids["STONE"]
	if m.TryPlaceBrushBlock("A1", stack, target) {
		t.Fatalf("stamped over a solid block")
	}
	if w.inv["A1"]["PLANK"] != 64 {
		t.Fatalf("materials consumed on a declined stamp")
	}
	delete(w.blocks, geo.Vec3i{X: 11, Y: 9, Z: 11})

	// Not enough materials.
	w.inv["A1"]["GLASS"] = 3
	if m.TryPlaceBrushBlock("A1", stack, target) {
		t.Fatalf("stamped without materials")
	}
	if w.inv["A1"]["PLANK"] != 64 || w.inv["A1"]["GLASS"] != 3 {
		t.Fatalf("partial consumption on declined stamp: %v", w.inv["A1"])
	}
}

func TestManagerAsInterceptor(t *testing.T) {
	w := newFakeWorld(t)
	m := newTestManager(t, w)
	anchor := geo.Vec3i{X: 4, Y: 9, Z: 4}
	if ok, _ := m.Set("A1", "column_3", anchor, SnapNone); !ok {
		t.Fatalf("Set failed")
	}

	attempt := place.Attempt{
		World:  fakeWorldRef{},
		Placer: fakePlacer{"A1"},
		Stack:  &place.ItemStack{Item: "BUILD_BRUSH", Count: 1},
		Target: &place.Selection{Pos: anchor, Face: geo.FaceUp},
	}
	if got := m.InterceptPlacement(attempt); got.Decision != place.OverrideSuccess {
		t.Fatalf("decision = %v, want OVERRIDE_SUCCESS", got.Decision)
	}

	m.Clear("A1")
	if got := m.InterceptPlacement(attempt); got.Decision != place.Passthrough {
		t.Fatalf("decision after clear = %v, want PASSTHROUGH", got.Decision)
	}
}

type fakeWorldRef struct{}

func (fakeWorldRef) ID() string                 { return "main" }
func (fakeWorldRef) Authority() place.Authority { return place.AuthorityServer }

type fakePlacer struct{ id string }

func (p fakePlacer) AgentID() string { return p.id }
