package world

import (
	"testing"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/brush"
	"voxelbrush.dev/internal/sim/place"
)

// tickRecorder captures tick log entries in memory for replay tests.
type tickRecorder struct {
	entries []TickLogEntry
}

func (r *tickRecorder) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func wireBrush(t *testing.T, w *World) {
	t.Helper()
	mgr, err := brush.New(brush.Config{}, w, w, w, w.catalogs, nil)
	if err != nil {
		t.Fatalf("brush.New: %v", err)
	}
	w.SetBrush(mgr)
	w.SetChain(place.NewChain(mgr))
}

// TestReplayMatchesLive scripts a session against a live world, then re-runs
// the recorded tick log on a fresh world and compares digests tick by tick.
func TestReplayMatchesLive(t *testing.T) {
	live := newTestWorld(t)
	wireBrush(t, live)
	rec := &tickRecorder{}
	live.SetTickLogger(rec)

	out := make(chan []byte, 256)
	resp := make(chan JoinResponse, 1)
	live.StepOnce([]JoinRequest{{Name: "builder", Out: out, Resp: resp}}, nil, nil)
	r := <-resp
	if r.Err != "" {
		t.Fatalf("join: %s", r.Err)
	}
	id := r.Welcome.AgentID
	a := live.agents[id]

	anchor := geo.Vec3i{X: 4, Y: a.Pos.Y, Z: 0}
	steps := [][]ActionEnvelope{
		{actFor(live, id, []protocol.InstantReq{
			brushInst("b1", InstantTypeBrushSet, &anchor, "wall_3x3", "", 0, 0),
		}, nil)},
		{actFor(live, id, []protocol.InstantReq{
			brushInst("b2", InstantTypeBrushRotate, nil, "", "", 1, 0),
		}, nil)},
		{actFor(live, id, nil, []protocol.PlaceReq{
			placeReq(1, "BUILD_BRUSH", anchor.ToArray(), string(geo.FaceUp)),
		})},
		{actFor(live, id, nil, []protocol.PlaceReq{
			placeReq(2, "PLANK", [3]int{a.Pos.X + 1, a.Pos.Y - 1, a.Pos.Z}, string(geo.FaceUp)),
		})},
		nil,
	}
	for _, envs := range steps {
		for i := range envs {
			envs[i].Act.Tick = live.CurrentTick()
		}
		live.StepOnce(nil, nil, envs)
	}

	replay := newTestWorld(t)
	wireBrush(t, replay)
	for i, e := range rec.entries {
		joins := make([]JoinRequest, 0, len(e.Joins))
		for _, j := range e.Joins {
			joins = append(joins, JoinRequest{Name: j.Name})
		}
		acts := make([]ActionEnvelope, 0, len(e.Actions))
		for _, ra := range e.Actions {
			acts = append(acts, ActionEnvelope{AgentID: ra.AgentID, Act: ra.Act})
		}
		tick, digest := replay.StepOnce(joins, e.Leaves, acts)
		if tick != e.Tick {
			t.Fatalf("entry %d: tick = %d, want %d", i, tick, e.Tick)
		}
		if digest != e.Digest {
			t.Fatalf("entry %d (tick %d): digest mismatch\n got %s\nwant %s", i, e.Tick, digest, e.Digest)
		}
	}
}

func TestStateDigestIgnoresPreviews(t *testing.T) {
	w1 := newTestWorld(t)
	w2 := newTestWorld(t)
	joinOne(t, w1, "builder", nil)
	joinOne(t, w2, "builder", nil)

	dim := w2.EnsurePreview("A1")
	w2.FillPreview(dim, map[geo.Vec3i]uint16{{X: 1}: 5}, geo.Vec3i{X: 1})

	d1 := w1.stateDigest(w1.CurrentTick())
	d2 := w2.stateDigest(w2.CurrentTick())
	if d1 != d2 {
		t.Fatalf("ghost state leaked into the digest")
	}
}

func TestPreviewIDsNeverUseDisableSentinel(t *testing.T) {
	w := newTestWorld(t)
	for i := 0; i < 5; i++ {
		id := w.EnsurePreview(string(rune('a' + i)))
		if id == protocol.DisableDimension || id <= 0 {
			t.Fatalf("allocated reserved dimension id %d", id)
		}
	}
	if got := w.EnsurePreview("a"); got != 1 {
		t.Fatalf("EnsurePreview not stable per owner: %d", got)
	}
}
