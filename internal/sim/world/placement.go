package world

import (
	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/place"
)

// applyPlace decides one placement attempt. Every processed seq above the
// watermark commits a decision (success or rejection) and advances
// LastAppliedSeq; duplicates re-ack without re-applying anything.
func (w *World) applyPlace(a *Agent, p protocol.PlaceReq, nowTick uint64) {
	if p.Seq <= 0 {
		a.AddEvent(placeResult(nowTick, p.Seq, false, protocol.ErrBadRequest, "seq must be positive"))
		return
	}
	if p.Seq <= a.LastAppliedSeq {
		// Retry of an already-decided attempt. The ack is the answer.
		a.ackPending = true
		return
	}

	var ok bool
	var code, msg string
	via := "default"
	if allowed, _ := a.RateLimitAllow("PLACE", nowTick, uint64(w.cfg.RateLimits.PlaceWindowTicks), w.cfg.RateLimits.PlaceMax); !allowed {
		code, msg = protocol.ErrRateLimit, "too many placements"
	} else {
		res := w.chain.Intercept(place.Attempt{
			World:  w,
			Placer: a,
			Stack:  w.stackFor(a, p),
			Target: selectionFor(p),
		})
		switch res.Decision {
		case place.OverrideSuccess:
			ok, via = true, res.Via
		case place.OverrideFailure:
			code, via = res.Code, res.Via
		default:
			ok, code, msg = w.placeDefault(a, p, nowTick)
		}
	}

	a.LastAppliedSeq = p.Seq
	a.ackPending = true
	a.AddEvent(placeResult(nowTick, p.Seq, ok, code, msg))
	if w.placementLogger != nil {
		var pos [3]int
		if p.Target != nil {
			pos = p.Target.Pos
		}
		_ = w.placementLogger.WritePlacement(PlacementEntry{
			Tick:    nowTick,
			AgentID: a.ID,
			Seq:     p.Seq,
			Item:    p.Item,
			Pos:     pos,
			Via:     via,
			OK:      ok,
			Code:    code,
		})
	}
	w.logAck(a)
}

// stackFor materializes the held stack from the agent's inventory. A missing
// item name leaves the attempt without a stack, which keeps interceptors out
// of the path and lets the default path report the error.
func (w *World) stackFor(a *Agent, p protocol.PlaceReq) *place.ItemStack {
	if p.Item == "" {
		return nil
	}
	return &place.ItemStack{Item: p.Item, Count: a.Inventory[p.Item]}
}

func selectionFor(p protocol.PlaceReq) *place.Selection {
	if p.Target == nil {
		return nil
	}
	return &place.Selection{
		Pos:  geo.FromArray(p.Target.Pos),
		Face: geo.Face(p.Target.Face),
		Hit:  p.Target.Hit,
	}
}

// placeDefault is the single-block placement path that runs when no
// interceptor consumed the attempt. It owns its own failure codes.
func (w *World) placeDefault(a *Agent, p protocol.PlaceReq, nowTick uint64) (ok bool, code, msg string) {
	if p.Item == "" || p.Target == nil {
		return false, protocol.ErrBadRequest, "missing item or target"
	}
	face := geo.Face(p.Target.Face)
	if !face.Valid() {
		return false, protocol.ErrBadRequest, "bad face"
	}
	def, found := w.catalogs.Items.Defs[p.Item]
	if !found || def.PlaceAs == "" {
		return false, protocol.ErrInvalidOp, "item is not placeable"
	}
	blockID, found := w.catalogs.Blocks.Index[def.PlaceAs]
	if !found {
		return false, protocol.ErrInvalidOp, "item places unknown block"
	}

	target := geo.FromArray(p.Target.Pos)
	pos := target.Add(face.Offset())
	if geo.Manhattan(a.Pos, pos) > w.cfg.PlaceReach {
		return false, protocol.ErrOutOfRange, "target out of reach"
	}
	if !w.chunks.InBounds(pos) {
		return false, protocol.ErrInvalidTarget, "out of world"
	}
	if w.Replaceable(w.chunks.GetBlock(target)) {
		return false, protocol.ErrInvalidTarget, "no supporting block"
	}
	if !w.Replaceable(w.chunks.GetBlock(pos)) {
		return false, protocol.ErrBlocked, "destination occupied"
	}
	if a.Inventory[p.Item] < 1 {
		return false, protocol.ErrNoResource, "item not in inventory"
	}

	a.takeItems(map[string]int{p.Item: 1})
	w.SetBlock(pos, blockID, a.ID)
	return true, "", ""
}

func placeResult(tick uint64, seq int64, ok bool, code string, message string) protocol.Event {
	e := protocol.Event{
		"t":    tick,
		"type": "PLACE_RESULT",
		"seq":  seq,
		"ok":   ok,
	}
	if code != "" {
		e["code"] = code
	}
	if message != "" {
		e["message"] = message
	}
	return e
}
