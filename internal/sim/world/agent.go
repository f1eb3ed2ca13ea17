package world

import (
	"sort"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
)

type Agent struct {
	ID   string
	Name string

	Pos geo.Vec3i

	Inventory map[string]int

	Events []protocol.Event

	// LastAppliedSeq is the highest placement seq a decision has been
	// committed for. It never decreases within a session.
	LastAppliedSeq int64
	// ClientAckSeq is the watermark the client last reported back. Recorded
	// for diagnostics only; it never feeds the sim state or the digest.
	ClientAckSeq int64

	// Set when LastAppliedSeq advanced this step; cleared on flush.
	ackPending bool

	// Rate limiting windows (per action type).
	rl map[string]*rateWindow
}

type rateWindow struct {
	StartTick uint64
	Count     int
	Window    uint64
	Max       int
}

func (a *Agent) initDefaults() {
	if a.Inventory == nil {
		a.Inventory = map[string]int{}
	}
	if a.rl == nil {
		a.rl = map[string]*rateWindow{}
	}
}

// AgentID implements place.PlacerRef.
func (a *Agent) AgentID() string { return a.ID }

func (a *Agent) InventoryList() []protocol.ItemStack {
	out := make([]protocol.ItemStack, 0, len(a.Inventory))
	for item, c := range a.Inventory {
		if c <= 0 {
			continue
		}
		out = append(out, protocol.ItemStack{Item: item, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Item < out[j].Item })
	return out
}

func (a *Agent) AddEvent(e protocol.Event) {
	a.Events = append(a.Events, e)
}

func (a *Agent) TakeEvents() []protocol.Event {
	ev := a.Events
	a.Events = nil
	return ev
}

func (a *Agent) RateLimitAllow(kind string, nowTick uint64, window uint64, max int) (ok bool, cooldownTicks uint64) {
	w, ok := a.rl[kind]
	if !ok {
		w = &rateWindow{StartTick: nowTick, Window: window, Max: max}
		a.rl[kind] = w
	}
	w.Window = window
	w.Max = max
	if w.Window == 0 || w.Max <= 0 {
		return true, 0
	}
	if nowTick-w.StartTick >= w.Window {
		w.StartTick = nowTick
		w.Count = 0
	}
	w.Count++
	if w.Count <= w.Max {
		return true, 0
	}
	// Remaining ticks until the window resets (next tick >= StartTick+Window).
	return false, (w.StartTick + w.Window) - nowTick
}

// takeItems consumes the full cost or nothing.
func (a *Agent) takeItems(cost map[string]int) bool {
	for item, n := range cost {
		if n <= 0 {
			continue
		}
		if a.Inventory[item] < n {
			return false
		}
	}
	for item, n := range cost {
		if n <= 0 {
			continue
		}
		a.Inventory[item] -= n
		if a.Inventory[item] <= 0 {
			delete(a.Inventory, item)
		}
	}
	return true
}
