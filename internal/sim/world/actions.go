package world

import (
	"fmt"
	"sort"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
)

const (
	InstantTypeMove        = "MOVE"
	InstantTypeBrushSet    = "BRUSH_SET"
	InstantTypeBrushMove   = "BRUSH_MOVE"
	InstantTypeBrushRotate = "BRUSH_ROTATE"
	InstantTypeBrushSnap   = "BRUSH_SNAP"
	InstantTypeBrushClear  = "BRUSH_CLEAR"
)

var supportedInstantTypes = []string{
	InstantTypeMove,
	InstantTypeBrushSet,
	InstantTypeBrushMove,
	InstantTypeBrushRotate,
	InstantTypeBrushSnap,
	InstantTypeBrushClear,
}

type instantHandler func(*World, *Agent, protocol.InstantReq, uint64)

var instantDispatch = map[string]instantHandler{
	InstantTypeMove:        handleInstantMove,
	InstantTypeBrushSet:    handleInstantBrushSet,
	InstantTypeBrushMove:   handleInstantBrushMove,
	InstantTypeBrushRotate: handleInstantBrushRotate,
	InstantTypeBrushSnap:   handleInstantBrushSnap,
	InstantTypeBrushClear:  handleInstantBrushClear,
}

func validateActionDispatchMaps() error {
	return validateDispatchMap("instantDispatch", instantDispatch, supportedInstantTypes)
}

func validateDispatchMap[T any](name string, handlers map[string]T, supported []string) error {
	allowed := make(map[string]struct{}, len(supported))
	for _, k := range supported {
		if k == "" {
			return fmt.Errorf("%s: empty supported key", name)
		}
		if _, ok := allowed[k]; ok {
			return fmt.Errorf("%s: duplicate supported key %q", name, k)
		}
		allowed[k] = struct{}{}
	}
	if len(handlers) != len(allowed) {
		return fmt.Errorf("%s size mismatch: got=%d want=%d", name, len(handlers), len(allowed))
	}
	for k := range handlers {
		if _, ok := allowed[k]; !ok {
			return fmt.Errorf("%s has unsupported key %q", name, k)
		}
	}
	for k := range allowed {
		if _, ok := handlers[k]; !ok {
			return fmt.Errorf("%s missing key %q", name, k)
		}
	}
	return nil
}

func (w *World) applyAct(a *Agent, act protocol.ActMsg, nowTick uint64) {
	// Staleness check: accept only [now-2, now].
	if act.Tick+2 < nowTick || act.Tick > nowTick {
		a.AddEvent(actionResult(nowTick, "ACT", false, protocol.ErrStale, "act tick out of range"))
		return
	}

	for _, inst := range act.Instants {
		w.applyInstant(a, inst, nowTick)
	}
	// Places apply in seq order regardless of message order, so a shuffled
	// batch cannot bury a lower seq behind the advancing watermark.
	places := act.Places
	if len(places) > 1 {
		places = append([]protocol.PlaceReq(nil), places...)
		sort.Slice(places, func(i, j int) bool { return places[i].Seq < places[j].Seq })
	}
	for _, p := range places {
		w.applyPlace(a, p, nowTick)
	}
}

func (w *World) applyInstant(a *Agent, inst protocol.InstantReq, nowTick uint64) {
	h, ok := instantDispatch[inst.Type]
	if !ok {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInvalidOp, fmt.Sprintf("unsupported instant %q", inst.Type)))
		return
	}
	h(w, a, inst, nowTick)
}

func handleInstantMove(w *World, a *Agent, inst protocol.InstantReq, nowTick uint64) {
	if ok, _ := a.RateLimitAllow(InstantTypeMove, nowTick, uint64(w.cfg.RateLimits.MoveWindowTicks), w.cfg.RateLimits.MoveMax); !ok {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrRateLimit, "too many MOVE"))
		return
	}
	if inst.Pos == nil {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrBadRequest, "missing pos"))
		return
	}
	pos := geo.FromArray(*inst.Pos)
	if !w.chunks.InBounds(pos) {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrInvalidTarget, "out of world"))
		return
	}
	if geo.Manhattan(a.Pos, pos) > w.cfg.MoveStepMax {
		a.AddEvent(actionResult(nowTick, inst.ID, false, protocol.ErrOutOfRange, "step too large"))
		return
	}
	a.Pos = pos
	a.AddEvent(actionResult(nowTick, inst.ID, true, "", "ok"))
}

func actionResult(tick uint64, ref string, ok bool, code string, message string) protocol.Event {
	e := protocol.Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
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
