package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// stateDigest hashes the authoritative state: tick, seed, loaded chunks and
// agent cores. Preview dimensions are presentation state and stay out of it.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], nowTick)
	h.Write(tmp[:])
	binary.LittleEndian.PutUint64(tmp[:], uint64(w.cfg.Seed))
	h.Write(tmp[:])

	// Chunks (sorted keys).
	for _, k := range w.chunks.LoadedChunkKeys() {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k.CX)))
		h.Write(tmp[:])
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(k.CZ)))
		h.Write(tmp[:])
		d := w.chunks.chunks[k].Digest()
		h.Write(d[:])
	}

	// Agents (sorted ids).
	agentIDs := make([]string, 0, len(w.agents))
	for id := range w.agents {
		agentIDs = append(agentIDs, id)
	}
	sort.Strings(agentIDs)
	for _, id := range agentIDs {
		a := w.agents[id]
		h.Write([]byte(a.ID))
		h.Write([]byte(a.Name))
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(a.Pos.X)))
		h.Write(tmp[:])
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(a.Pos.Y)))
		h.Write(tmp[:])
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(a.Pos.Z)))
		h.Write(tmp[:])
		binary.LittleEndian.PutUint64(tmp[:], uint64(a.LastAppliedSeq))
		h.Write(tmp[:])
		for _, st := range a.InventoryList() {
			h.Write([]byte(st.Item))
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(st.Count)))
			h.Write(tmp[:])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
