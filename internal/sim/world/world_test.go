package world

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/catalogs"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("go.mod not found above %s", dir)
		}
		dir = parent
	}
}

func loadTestCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	root := findRepoRoot(t)
	cats, err := catalogs.Load(filepath.Join(root, "configs"), filepath.Join(root, "schemas"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func newTestWorld(t *testing.T, mutate ...func(*WorldConfig)) *World {
	t.Helper()
	cfg := WorldConfig{
		ID:        "w_test",
		Height:    32,
		Seed:      7,
		BoundaryR: 64,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	w, err := New(cfg, loadTestCatalogs(t))
	if err != nil {
		t.Fatalf("new world: %v", err)
	}
	return w
}

// joinOne runs a join through a full step and returns the assigned agent id.
func joinOne(t *testing.T, w *World, name string, out chan []byte) string {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Err != "" {
		t.Fatalf("join %q rejected: %s", name, r.Err)
	}
	return r.Welcome.AgentID
}

func actFor(w *World, agentID string, instants []protocol.InstantReq, places []protocol.PlaceReq) ActionEnvelope {
	return ActionEnvelope{
		AgentID: agentID,
		Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            w.CurrentTick(),
			AgentID:         agentID,
			Instants:        instants,
			Places:          places,
		},
	}
}

// drainOut decodes every message currently buffered on a client channel,
// keyed by message type in arrival order.
func drainOut(t *testing.T, out chan []byte) []map[string]interface{} {
	t.Helper()
	var msgs []map[string]interface{}
	for {
		select {
		case b := <-out:
			var m map[string]interface{}
			if err := json.Unmarshal(b, &m); err != nil {
				t.Fatalf("decode outbound message: %v", err)
			}
			msgs = append(msgs, m)
		default:
			return msgs
		}
	}
}

func msgsOfType(msgs []map[string]interface{}, typ string) []map[string]interface{} {
	var out []map[string]interface{}
	for _, m := range msgs {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func TestJoinWelcomeAndStarterKit(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "builder", Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Err != "" {
		t.Fatalf("join rejected: %s", r.Err)
	}
	wm := r.Welcome
	if wm.AgentID != "A1" {
		t.Fatalf("agent id = %q, want A1", wm.AgentID)
	}
	if wm.WorldID != "w_test" {
		t.Fatalf("world id = %q", wm.WorldID)
	}
	if wm.WorldParams.OrientationCount != 24 {
		t.Fatalf("orientation count = %d, want 24", wm.WorldParams.OrientationCount)
	}
	if wm.WorldParams.ChunkSize != 16 || wm.WorldParams.Height != 32 {
		t.Fatalf("world params = %+v", wm.WorldParams)
	}
	if wm.Catalogs.Blocks.Digest == "" || wm.Catalogs.Brushes.Digest == "" {
		t.Fatalf("catalog digests missing: %+v", wm.Catalogs)
	}

	a := w.agents["A1"]
	if a == nil {
		t.Fatalf("agent not registered")
	}
	if wm.SpawnPos != a.Pos.ToArray() {
		t.Fatalf("welcome spawn_pos = %v, agent at %v", wm.SpawnPos, a.Pos)
	}
	if a.Inventory["PLANK"] != 64 || a.Inventory["BUILD_BRUSH"] != 1 {
		t.Fatalf("starter inventory = %v", a.Inventory)
	}
	if !w.chunks.InBounds(a.Pos) {
		t.Fatalf("spawned out of bounds at %v", a.Pos)
	}
	if w.clients["A1"] == nil {
		t.Fatalf("client channel not attached")
	}
}

func TestJoinNameTaken(t *testing.T) {
	w := newTestWorld(t)
	out1 := make(chan []byte, 64)
	joinOne(t, w, "builder", out1)

	out2 := make(chan []byte, 64)
	resp := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "builder", Out: out2, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Err != protocol.ErrNameTaken {
		t.Fatalf("second join err = %q, want %s", r.Err, protocol.ErrNameTaken)
	}
	if len(w.agents) != 1 {
		t.Fatalf("rejected join must not add an agent, have %d", len(w.agents))
	}

	// After the first client leaves, the name frees up.
	w.StepOnce(nil, []string{"A1"}, nil)
	resp2 := make(chan JoinResponse, 1)
	w.StepOnce([]JoinRequest{{Name: "builder", Out: out2, Resp: resp2}}, nil, nil)
	if r := <-resp2; r.Err != "" || r.Welcome.AgentID != "A2" {
		t.Fatalf("rejoin after leave: %+v", r)
	}
}

func TestMoveInstant(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 64)
	id := joinOne(t, w, "builder", out)
	a := w.agents[id]
	start := a.Pos
	drainOut(t, out)

	dest := start.Add(geo.Vec3i{X: 3, Z: 2})
	w.StepOnce(nil, nil, []ActionEnvelope{actFor(w, id, []protocol.InstantReq{
		{ID: "i1", Type: InstantTypeMove, Pos: &[3]int{dest.X, dest.Y, dest.Z}},
	}, nil)})
	if a.Pos != dest {
		t.Fatalf("pos = %v, want %v", a.Pos, dest)
	}

	// A step beyond the per-op budget is rejected and position holds.
	far := dest.Add(geo.Vec3i{X: 50})
	w.StepOnce(nil, nil, []ActionEnvelope{actFor(w, id, []protocol.InstantReq{
		{ID: "i2", Type: InstantTypeMove, Pos: &[3]int{far.X, far.Y, far.Z}},
	}, nil)})
	if a.Pos != dest {
		t.Fatalf("oversized move applied: %v", a.Pos)
	}
	msgs := drainOut(t, out)
	evs := msgsOfType(msgs, protocol.TypeEvents)
	if len(evs) == 0 {
		t.Fatalf("no EVENTS flushed: %v", msgs)
	}
	last := evs[len(evs)-1]["events"].([]interface{})
	found := false
	for _, raw := range last {
		e := raw.(map[string]interface{})
		if e["ref"] == "i2" && e["ok"] == false && e["code"] == protocol.ErrOutOfRange {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected E_OUT_OF_RANGE result for i2, got %v", last)
	}
}

func TestUnsupportedInstantRejected(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 64)
	id := joinOne(t, w, "builder", out)
	drainOut(t, out)

	w.StepOnce(nil, nil, []ActionEnvelope{actFor(w, id, []protocol.InstantReq{
		{ID: "i1", Type: "TELEPORT"},
	}, nil)})
	msgs := drainOut(t, out)
	evs := msgsOfType(msgs, protocol.TypeEvents)
	if len(evs) != 1 {
		t.Fatalf("events messages = %d, want 1", len(evs))
	}
	e := evs[0]["events"].([]interface{})[0].(map[string]interface{})
	if e["ok"] != false || e["code"] != protocol.ErrInvalidOp {
		t.Fatalf("result = %v, want E_INVALID_OP", e)
	}
}

func TestActStaleness(t *testing.T) {
	w := newTestWorld(t)
	out := make(chan []byte, 64)
	id := joinOne(t, w, "builder", out)
	a := w.agents[id]
	start := a.Pos
	drainOut(t, out)

	// Burn a few ticks so an old act tick falls outside [now-2, now].
	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, nil)
	w.StepOnce(nil, nil, nil)

	env := actFor(w, id, []protocol.InstantReq{
		{ID: "i1", Type: InstantTypeMove, Pos: &[3]int{start.X + 1, start.Y, start.Z}},
	}, nil)
	env.Act.Tick = 0 // stale
	w.StepOnce(nil, nil, []ActionEnvelope{env})
	if a.Pos != start {
		t.Fatalf("stale act applied")
	}

	env = actFor(w, id, nil, nil)
	env.Act.Tick = w.CurrentTick() + 5 // from the future
	env.Act.Instants = []protocol.InstantReq{{ID: "i2", Type: InstantTypeMove, Pos: &[3]int{start.X + 1, start.Y, start.Z}}}
	w.StepOnce(nil, nil, []ActionEnvelope{env})
	if a.Pos != start {
		t.Fatalf("future act applied")
	}

	msgs := drainOut(t, out)
	staleSeen := 0
	for _, m := range msgsOfType(msgs, protocol.TypeEvents) {
		for _, raw := range m["events"].([]interface{}) {
			e := raw.(map[string]interface{})
			if e["code"] == protocol.ErrStale {
				staleSeen++
			}
		}
	}
	if staleSeen != 2 {
		t.Fatalf("stale results = %d, want 2", staleSeen)
	}
}

func TestClientAckRecordedMonotonically(t *testing.T) {
	w := newTestWorld(t)
	id := joinOne(t, w, "builder", nil)
	a := w.agents[id]

	w.StepOnce(nil, nil, []ActionEnvelope{{AgentID: id, Ack: &protocol.PlaceAckMsg{LastAppliedSeq: 5}}})
	if a.ClientAckSeq != 5 {
		t.Fatalf("client ack = %d, want 5", a.ClientAckSeq)
	}
	// A regression is ignored.
	w.StepOnce(nil, nil, []ActionEnvelope{{AgentID: id, Ack: &protocol.PlaceAckMsg{LastAppliedSeq: 3}}})
	if a.ClientAckSeq != 5 {
		t.Fatalf("client ack regressed to %d", a.ClientAckSeq)
	}
	w.StepOnce(nil, nil, []ActionEnvelope{{AgentID: id, Ack: &protocol.PlaceAckMsg{LastAppliedSeq: 9}}})
	if a.ClientAckSeq != 9 {
		t.Fatalf("client ack = %d, want 9", a.ClientAckSeq)
	}
}

func TestDispatchMapsComplete(t *testing.T) {
	if err := validateActionDispatchMaps(); err != nil {
		t.Fatalf("dispatch maps: %v", err)
	}
}
