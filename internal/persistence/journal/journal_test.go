package journal

import (
	"testing"

	"voxelbrush.dev/internal/sim/world"
)

func TestTickJournalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	j := NewTickJournal(dir)
	want := []world.TickLogEntry{
		{Tick: 0, Digest: "d0"},
		{Tick: 1, Joins: []world.RecordedJoin{{AgentID: "A1", Name: "ada"}}, Digest: "d1"},
		{Tick: 2, Leaves: []string{"A1"}, Digest: "d2"},
	}
	for _, e := range want {
		if err := j.WriteTick(e); err != nil {
			t.Fatalf("WriteTick: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []world.TickLogEntry
	err := ScanTicks(dir+"/ticks", func(e world.TickLogEntry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatalf("ScanTicks: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("entries = %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Tick != want[i].Tick || got[i].Digest != want[i].Digest {
			t.Fatalf("entry %d = %+v want %+v", i, got[i], want[i])
		}
	}
	if got[1].Joins[0].AgentID != "A1" {
		t.Fatalf("join not preserved: %+v", got[1])
	}
	if len(got[2].Leaves) != 1 || got[2].Leaves[0] != "A1" {
		t.Fatalf("leave not preserved: %+v", got[2])
	}
}

func TestScanTicksEmptyDirFails(t *testing.T) {
	dir := t.TempDir()
	if err := ScanTicks(dir, func(world.TickLogEntry) error { return nil }); err == nil {
		t.Fatal("expected error for empty journal dir")
	}
}
