package world

import (
	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
)

// World doubles as the brush runtime's world surface (brush.WorldAccess).
// All of these run on the world goroutine.

func (w *World) InBounds(pos geo.Vec3i) bool { return w.chunks.InBounds(pos) }

func (w *World) BlockAt(pos geo.Vec3i) uint16 { return w.chunks.GetBlock(pos) }

func (w *World) BlockID(name string) (uint16, bool) {
	v, ok := w.catalogs.Blocks.Index[name]
	return v, ok
}

func (w *World) Replaceable(b uint16) bool {
	if int(b) >= len(w.catalogs.Blocks.Palette) {
		return false
	}
	def, ok := w.catalogs.Blocks.Defs[w.catalogs.Blocks.Palette[b]]
	if !ok {
		return false
	}
	return def.Replaceable
}

func (w *World) AgentPos(agentID string) (geo.Vec3i, bool) {
	a := w.agents[agentID]
	if a == nil {
		return geo.Vec3i{}, false
	}
	return a.Pos, true
}

func (w *World) TakeItems(agentID string, cost map[string]int) bool {
	a := w.agents[agentID]
	if a == nil {
		return false
	}
	return a.takeItems(cost)
}

// SetBlock writes a block, tells every connected client, and audits the
// mutation.
func (w *World) SetBlock(pos geo.Vec3i, b uint16, actor string) {
	from := w.chunks.GetBlock(pos)
	if from == b {
		return
	}
	w.chunks.SetBlock(pos, b)
	ev := protocol.Event{
		"t":     w.tick.Load(),
		"type":  "BLOCK_SET",
		"pos":   pos.ToArray(),
		"block": b,
		"actor": actor,
	}
	for id := range w.clients {
		if a := w.agents[id]; a != nil {
			a.AddEvent(ev)
		}
	}
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(AuditEntry{
			Tick:   w.tick.Load(),
			Actor:  actor,
			Action: "SET_BLOCK",
			Pos:    pos.ToArray(),
			From:   from,
			To:     b,
		})
	}
}
