package world

import (
	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/brush"
)

// brushAllowed gates every BRUSH_* op: the runtime must be wired in and the
// per-agent budget must have room.
func (w *World) brushAllowed(a *Agent, inst protocol.InstantReq, nowTick uint64) bool {
	if w.brush == nil {
		w.logger.Printf("agent %s sent %s but no brush runtime is wired", a.ID, inst.Type)
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInvalidOp, "brush ops not available"))
		return false
	}
	if ok, _ := a.RateLimitAllow("BRUSH", nowTick, uint64(w.cfg.RateLimits.BrushWindowTicks), w.cfg.RateLimits.BrushMax); !ok {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrRateLimit, "too many brush ops"))
		return false
	}
	return true
}

func handleInstantBrushSet(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) {
	if !w.brushAllowed(a, inst, nowTick) {
		return
	}
	if inst.TemplateID == "" {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "missing template_id"))
		return
	}
	if inst.Pos == nil {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "missing pos"))
		return
	}
	snapping := brush.SnapNone
	if inst.Snapping != "" {
		s, ok := brush.ParseSnapping(inst.Snapping)
		if !ok {
			a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadSnapping, "unknown snapping mode"))
			return
		}
		snapping = s
	}
	ok, code := w.brush.Set(a.ID, inst.TemplateID, geo.FromArray(*inst.Pos), snapping)
	a.AddEvent(actionResult(nowTick, inst.ID, ok, code, ""))
}

func handleInstantBrushMove(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) {
	if !w.brushAllowed(a, inst, nowTick) {
		return
	}
	if inst.Pos == nil {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "missing pos"))
		return
	}
	ok, code := w.brush.Move(a.ID, geo.FromArray(*inst.Pos))
	a.AddEvent(actionResult(nowTick, inst.ID, ok, code, ""))
}

func handleInstantBrushRotate(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) {
	if !w.brushAllowed(a, inst, nowTick) {
		return
	}
	ok, code := w.brush.Rotate(a.ID, inst.Steps, inst.Yaw)
	a.AddEvent(actionResult(nowTick, inst.ID, ok, code, ""))
}

func handleInstantBrushSnap(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) {
	if !w.brushAllowed(a, inst, nowTick) {
		return
	}
	snapping, ok := brush.ParseSnapping(inst.Snapping)
	if !ok {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadSnapping, "unknown snapping mode"))
		return
	}
	applied, code := w.brush.SetSnapping(a.ID, snapping)
	a.AddEvent(actionResult(nowTick, inst.ID, applied, code, ""))
}

func handleInstantBrushClear(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) {
	if !w.brushAllowed(a, inst, nowTick) {
		return
	}
	ok, code := w.brush.Clear(a.ID)
	a.AddEvent(actionResult(nowTick, inst.ID, ok, code, ""))
}
