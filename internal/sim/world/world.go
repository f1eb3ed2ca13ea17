// Package world hosts the authoritative build-service sim. One World runs on
// a single goroutine; transports talk to it through channels and everything
// the sim touches (chunks, agents, brush sessions, preview dimensions) is
// mutated only from that loop.
package world

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/brush"
	"voxelbrush.dev/internal/sim/catalogs"
	"voxelbrush.dev/internal/sim/place"
)

// TickLogger receives one entry per tick for journaling/replay.
type TickLogger interface {
	WriteTick(e TickLogEntry) error
}

// AuditLogger receives block mutations for the audit trail.
type AuditLogger interface {
	WriteAudit(e AuditEntry) error
}

// PlacementLogger receives one entry per committed placement decision. It
// feeds read-side indexes only and never affects the sim or its digest.
type PlacementLogger interface {
	WritePlacement(e PlacementEntry) error
}

// AckLogger receives per-agent ack watermark updates.
type AckLogger interface {
	WriteAck(e AckEntry) error
}

type TickLogEntry struct {
	Tick    uint64           `json:"t"`
	Joins   []RecordedJoin   `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type RecordedJoin struct {
	AgentID string `json:"agent_id"`
	Name    string `json:"name"`
}

type RecordedAction struct {
	AgentID string          `json:"agent_id"`
	Act     protocol.ActMsg `json:"act"`
}

type AuditEntry struct {
	Tick   uint64 `json:"t"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	Pos    [3]int `json:"pos"`
	From   uint16 `json:"from"`
	To     uint16 `json:"to"`
}

// PlacementEntry records one decided placement attempt. Via names the
// interceptor that consumed it, or "default" for the default path.
type PlacementEntry struct {
	Tick    uint64 `json:"t"`
	AgentID string `json:"agent_id"`
	Seq     int64  `json:"seq"`
	Item    string `json:"item"`
	Pos     [3]int `json:"pos"`
	Via     string `json:"via"`
	OK      bool   `json:"ok"`
	Code    string `json:"code,omitempty"`
}

type AckEntry struct {
	Tick           uint64 `json:"t"`
	AgentID        string `json:"agent_id"`
	LastAppliedSeq int64  `json:"last_applied_seq"`
	ClientAckSeq   int64  `json:"client_ack_seq"`
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

// JoinResponse carries the WELCOME for an accepted join, or an E_* code.
type JoinResponse struct {
	Err     string
	Welcome protocol.WelcomeMsg
}

// ActionEnvelope is one inbox item. Either Act is populated (an ACT message)
// or Ack is set (the client reporting its PLACE_ACK watermark back).
type ActionEnvelope struct {
	AgentID string
	Act     protocol.ActMsg
	Ack     *protocol.PlaceAckMsg
}

type clientState struct {
	Out chan []byte

	// Latest-wins sync state queued during the current step.
	pendingBrush   *protocol.BrushStateMsg
	pendingPreview *protocol.DimensionPreviewMsg
}

type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	chunks  *ChunkStore
	agents  map[string]*Agent
	clients map[string]*clientState

	// Ghost dimensions keyed by id; ids start at 1 so the disable sentinel
	// is never allocated.
	previews       map[int]*previewDim
	previewByOwner map[string]int
	nextPreviewID  int

	chain *place.Chain
	brush *brush.Manager

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	nextAgentNum atomic.Uint64

	// Optional collaborators (may be nil).
	tickLogger      TickLogger
	auditLogger     AuditLogger
	placementLogger PlacementLogger
	ackLogger       AckLogger

	logger *log.Logger
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	cfg.applyDefaults()

	var genErr error
	b := func(id string) uint16 {
		v, ok := cats.Blocks.Index[id]
		if !ok && genErr == nil {
			genErr = fmt.Errorf("missing block id in palette: %s", id)
		}
		return v
	}
	gen := WorldGen{
		Seed:             cfg.Seed,
		Height:           cfg.Height,
		BoundaryR:        cfg.BoundaryR,
		SpawnClearRadius: cfg.SpawnClearRadius,
		SurfaceBase:      cfg.SurfaceBase,
		SurfaceAmp:       cfg.SurfaceAmp,
		OrePermille:      cfg.OrePermille,
		ScatterPermille:  cfg.ScatterPermille,
		Air:              b("AIR"),
		Grass:            b("GRASS"),
		Dirt:             b("DIRT"),
		Stone:            b("STONE"),
		Sand:             b("SAND"),
		IronOre:          b("IRON_ORE"),
		TallGrass:        b("TALL_GRASS"),
	}
	if genErr != nil {
		return nil, genErr
	}

	w := &World{
		cfg:            cfg,
		catalogs:       cats,
		chunks:         NewChunkStore(gen),
		agents:         map[string]*Agent{},
		clients:        map[string]*clientState{},
		previews:       map[int]*previewDim{},
		previewByOwner: map[string]int{},
		chain:          place.NewChain(),
		inbox:          make(chan ActionEnvelope, 1024),
		join:           make(chan JoinRequest, 64),
		leave:          make(chan string, 64),
		stop:           make(chan struct{}),
		logger:         log.New(io.Discard, "", 0),
	}
	return w, nil
}

// SetChain installs the placement interception chain. Wire it before Run.
func (w *World) SetChain(c *place.Chain) {
	if c != nil {
		w.chain = c
	}
}

// SetBrush installs the brush runtime. Without one, BRUSH_* ops are rejected.
func (w *World) SetBrush(m *brush.Manager) { w.brush = m }

func (w *World) SetTickLogger(l TickLogger)           { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)         { w.auditLogger = l }
func (w *World) SetPlacementLogger(l PlacementLogger) { w.placementLogger = l }
func (w *World) SetAckLogger(l AckLogger)             { w.ackLogger = l }

func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.logger = l
	}
}

func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

// ID implements place.WorldRef.
func (w *World) ID() string { return w.cfg.ID }

// Authority implements place.WorldRef. A running World is always the
// authoritative sim; client-side speculation never constructs one.
func (w *World) Authority() place.Authority { return place.AuthorityServer }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

func (w *World) joinAgent(name string, out chan []byte) JoinResponse {
	if name == "" {
		name = "agent"
	}
	// Reject before allocating an id so replays stay aligned with the live
	// run (rejected joins are never recorded).
	for id, a := range w.agents {
		if a.Name == name && w.clients[id] != nil {
			return JoinResponse{Err: protocol.ErrNameTaken}
		}
	}

	idNum := w.nextAgentNum.Add(1)
	agentID := fmt.Sprintf("A%d", idNum)

	// Spawn inside the clearing, fanned out from the origin.
	spawnX := int(idNum) * 2
	spawnZ := -int(idNum) * 2
	y := w.chunks.SurfaceY(spawnX, spawnZ)

	a := &Agent{
		ID:   agentID,
		Name: name,
		Pos:  geo.Vec3i{X: spawnX, Y: y, Z: spawnZ},
	}
	a.initDefaults()
	for item, n := range w.starterItems() {
		if n > 0 {
			a.Inventory[item] = n
		}
	}

	w.agents[agentID] = a
	if out != nil {
		w.clients[agentID] = &clientState{Out: out}
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		AgentID:         agentID,
		WorldID:         w.cfg.ID,
		Tick:            w.tick.Load(),
		SpawnPos:        a.Pos.ToArray(),
		WorldParams: protocol.WorldParams{
			TickRateHz:       w.cfg.TickRateHz,
			ChunkSize:        16,
			Height:           w.cfg.Height,
			BoundaryR:        w.cfg.BoundaryR,
			Seed:             w.cfg.Seed,
			OrientationCount: brush.OrientationCount,
		},
		Catalogs: protocol.CatalogDigests{
			Blocks:  protocol.DigestRef{Digest: w.catalogs.Blocks.PaletteDigest, Count: len(w.catalogs.Blocks.Palette)},
			Items:   protocol.DigestRef{Digest: w.catalogs.Items.PaletteDigest, Count: len(w.catalogs.Items.Palette)},
			Brushes: protocol.DigestRef{Digest: w.catalogs.Brushes.Digest, Count: len(w.catalogs.Brushes.Order)},
		},
	}
	return JoinResponse{Welcome: welcome}
}

func (w *World) starterItems() map[string]int {
	if w.cfg.StarterItems != nil {
		return w.cfg.StarterItems
	}
	out := map[string]int{}
	for id, def := range w.catalogs.Items.Defs {
		if def.Starter > 0 {
			out[id] = def.Starter
		}
	}
	return out
}

func (w *World) handleLeave(agentID string) {
	if w.brush != nil {
		w.brush.Drop(agentID)
	}
	delete(w.clients, agentID)
}

func (w *World) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	nowTick := w.tick.Load()

	// Apply leaves and joins deterministically at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.agents[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinAgent(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.Err == "" {
			recordedJoins = append(recordedJoins, RecordedJoin{AgentID: resp.Welcome.AgentID, Name: req.Name})
		}
	}

	// Apply actions in server receive order (the inbox order).
	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		a := w.agents[env.AgentID]
		if a == nil {
			continue
		}
		if env.Ack != nil {
			w.recordClientAck(a, env.Ack.LastAppliedSeq)
			continue
		}
		env.Act.AgentID = env.AgentID // trust session identity
		recorded = append(recorded, RecordedAction{AgentID: env.AgentID, Act: env.Act})
		w.applyAct(a, env.Act, nowTick)
	}

	// Flush outbound sync state per connected client.
	for id, a := range w.agents {
		cl := w.clients[id]
		if cl == nil {
			// No client to drain into; drop the events instead of growing.
			a.Events = nil
			a.ackPending = false
			continue
		}
		w.flushClient(a, cl, nowTick)
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{Tick: nowTick, Joins: recordedJoins, Leaves: recordedLeaves, Actions: recorded, Digest: digest})
	}

	w.tick.Add(1)
}

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server loop. It drives deterministic replays and tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, actions)
	return tick, w.stateDigest(tick)
}

// recordClientAck keeps the client-reported watermark for diagnostics. The
// watermark may only move forward; a regression is a client bug and is
// logged, not applied.
func (w *World) recordClientAck(a *Agent, seq int64) {
	if seq < a.ClientAckSeq {
		w.logger.Printf("agent %s reported ack regression %d -> %d", a.ID, a.ClientAckSeq, seq)
		return
	}
	a.ClientAckSeq = seq
	w.logAck(a)
}

func (w *World) logAck(a *Agent) {
	if w.ackLogger == nil {
		return
	}
	_ = w.ackLogger.WriteAck(AckEntry{
		Tick:           w.tick.Load(),
		AgentID:        a.ID,
		LastAppliedSeq: a.LastAppliedSeq,
		ClientAckSeq:   a.ClientAckSeq,
	})
}

func (w *World) flushClient(a *Agent, cl *clientState, nowTick uint64) {
	if cl.pendingBrush != nil {
		w.sendJSON(cl, cl.pendingBrush)
		cl.pendingBrush = nil
	}
	if cl.pendingPreview != nil {
		w.sendJSON(cl, cl.pendingPreview)
		cl.pendingPreview = nil
	}
	if a.ackPending {
		w.sendJSON(cl, protocol.PlaceAckMsg{
			Type:            protocol.TypePlaceAck,
			ProtocolVersion: protocol.Version,
			LastAppliedSeq:  a.LastAppliedSeq,
		})
		a.ackPending = false
	}
	if evs := a.TakeEvents(); len(evs) > 0 {
		w.sendJSON(cl, protocol.EventsMsg{
			Type:            protocol.TypeEvents,
			ProtocolVersion: protocol.Version,
			Tick:            nowTick,
			AgentID:         a.ID,
			Events:          evs,
		})
	}
}

func (w *World) sendJSON(cl *clientState, msg interface{}) {
	b, err := json.Marshal(msg)
	if err != nil {
		return
	}
	sendLatest(cl.Out, b)
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
