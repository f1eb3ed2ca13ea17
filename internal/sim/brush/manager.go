package brush

import (
	"io"
	"log"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/catalogs"
	"voxelbrush.dev/internal/sim/place"
)

// WorldAccess is the world surface the manager mutates through. The manager
// never reaches the world any other way; it is handed in at construction.
type WorldAccess interface {
	InBounds(pos geo.Vec3i) bool
	BlockAt(pos geo.Vec3i) uint16
	SetBlock(pos geo.Vec3i, block uint16, actor string)
	BlockID(name string) (uint16, bool)
	Replaceable(block uint16) bool
	AgentPos(agentID string) (geo.Vec3i, bool)
	// TakeItems consumes the full cost or nothing.
	TakeItems(agentID string, cost map[string]int) bool
}

// PreviewDims allocates the per-agent ghost dimensions the client renders at
// the anchor sent in DIMENSION_PREVIEW.
type PreviewDims interface {
	EnsurePreview(agentID string) int
	FillPreview(dimID int, cells map[geo.Vec3i]uint16, anchor geo.Vec3i)
	ReleasePreview(agentID string)
}

// Emitter delivers brush sync packets to the owning client.
type Emitter interface {
	SendBrushState(agentID string, st State)
	SendDimensionPreview(agentID string, dimID int, pos *geo.Vec3i)
}

type Config struct {
	Reach    int    // max Manhattan distance from agent to brush anchor
	MaxCells int    // stamping size cap
	Tool     string // item id that drives the brush
}

func (c *Config) applyDefaults() {
	if c.Reach <= 0 {
		c.Reach = 32
	}
	if c.MaxCells <= 0 {
		c.MaxCells = 512
	}
	if c.Tool == "" {
		c.Tool = "BUILD_BRUSH"
	}
}

type session struct {
	tpl   *Template
	state State
	dim   int
}

// Manager owns the brush sessions of one world. All methods run on the world
// goroutine; there is no internal locking.
type Manager struct {
	cfg       Config
	world     WorldAccess
	dims      PreviewDims
	emit      Emitter
	templates map[string]*Template
	sessions  map[string]*session
	logger    *log.Logger
}

// New compiles the template catalog and binds the manager to its
// collaborators.
func New(cfg Config, w WorldAccess, dims PreviewDims, emit Emitter, cats *catalogs.Catalogs, logger *log.Logger) (*Manager, error) {
	cfg.applyDefaults()
	tpls, err := CompileTemplates(cats)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Manager{
		cfg:       cfg,
		world:     w,
		dims:      dims,
		emit:      emit,
		templates: tpls,
		sessions:  map[string]*session{},
		logger:    logger,
	}, nil
}

// Set starts (or retargets) the agent's brush session.
func (m *Manager) Set(agentID, templateID string, pos geo.Vec3i, snapping Snapping) (bool, string) {
	tpl, ok := m.templates[templateID]
	if !ok {
		return false, protocol.ErrBadTemplate
	}
	pos = snapPos(pos, snapping, tpl.Size)
	if code := m.checkAnchor(agentID, pos); code != "" {
		return false, code
	}

	s := m.sessions[agentID]
	if s == nil {
		s = &session{dim: m.dims.EnsurePreview(agentID)}
		m.sessions[agentID] = s
	}
	s.tpl = tpl
	s.state = State{
		Active:           true,
		OrientationIndex: 0,
		RotationY:        0,
		Pos:              pos,
		Snapping:         snapping,
	}
	m.refresh(agentID, s, true)
	return true, ""
}

// Move re-anchors the active session, applying its snapping mode.
func (m *Manager) Move(agentID string, pos geo.Vec3i) (bool, string) {
	s := m.sessions[agentID]
	if s == nil {
		return false, protocol.ErrNoBrushSession
	}
	pos = snapPos(pos, s.state.Snapping, s.tpl.Size)
	if code := m.checkAnchor(agentID, pos); code != "" {
		return false, code
	}
	moved := pos != s.state.Pos
	s.state.Pos = pos
	m.refresh(agentID, s, moved)
	return true, ""
}

// Rotate advances the discrete orientation by steps and adds yawDelta to the
// continuous preview yaw.
func (m *Manager) Rotate(agentID string, steps int, yawDelta float64) (bool, string) {
	s := m.sessions[agentID]
	if s == nil {
		return false, protocol.ErrNoBrushSession
	}
	s.state.OrientationIndex = NormalizeOrientation(s.state.OrientationIndex + steps)
	s.state.RotationY = wrapAngle(s.state.RotationY + yawDelta)
	m.refresh(agentID, s, false)
	return true, ""
}

// SetSnapping switches the snapping mode and re-snaps the anchor.
func (m *Manager) SetSnapping(agentID string, snapping Snapping) (bool, string) {
	s := m.sessions[agentID]
	if s == nil {
		return false, protocol.ErrNoBrushSession
	}
	pos := snapPos(s.state.Pos, snapping, s.tpl.Size)
	moved := pos != s.state.Pos
	s.state.Snapping = snapping
	s.state.Pos = pos
	m.refresh(agentID, s, moved)
	return true, ""
}

// Clear ends the session. Clearing with no session is a no-op success so
// retried clears stay idempotent.
func (m *Manager) Clear(agentID string) (bool, string) {
	s := m.sessions[agentID]
	if s == nil {
		return true, ""
	}
	delete(m.sessions, agentID)
	m.dims.ReleasePreview(agentID)
	m.emit.SendBrushState(agentID, State{Snapping: SnapNone})
	m.emit.SendDimensionPreview(agentID, protocol.DisableDimension, nil)
	return true, ""
}

// Drop discards an agent's session without emitting packets. Used when the
// agent leaves.
func (m *Manager) Drop(agentID string) {
	if _, ok := m.sessions[agentID]; !ok {
		return
	}
	delete(m.sessions, agentID)
	m.dims.ReleasePreview(agentID)
}

// SessionState reports the agent's current brush state.
func (m *Manager) SessionState(agentID string) (State, bool) {
	s := m.sessions[agentID]
	if s == nil {
		return State{}, false
	}
	return s.state, true
}

// Name implements place.Interceptor.
func (m *Manager) Name() string { return "build_brush" }

// InterceptPlacement implements place.Interceptor: a successful brush stamp
// consumes the attempt, anything else falls through to the default placement
// path and its failure reporting.
func (m *Manager) InterceptPlacement(a place.Attempt) place.Result {
	if m.TryPlaceBrushBlock(a.Placer.AgentID(), *a.Stack, *a.Target) {
		return place.Result{Decision: place.OverrideSuccess}
	}
	return place.Result{Decision: place.Passthrough}
}

// TryPlaceBrushBlock stamps the agent's active template when the attempt
// uses the brush tool and every cell is placeable. The boolean is the whole
// contract; a false simply defers to the caller.
func (m *Manager) TryPlaceBrushBlock(agentID string, stack place.ItemStack, target place.Selection) bool {
	s := m.sessions[agentID]
	if s == nil || !s.state.Active {
		return false
	}
	if stack.Item != m.cfg.Tool {
		return false
	}
	if m.checkAnchor(agentID, s.state.Pos) != "" {
		return false
	}

	cells := m.expand(s)
	if len(cells) == 0 || len(cells) > m.cfg.MaxCells {
		return false
	}
	for _, c := range cells {
		if !m.world.InBounds(c.pos) {
			return false
		}
		if !m.world.Replaceable(m.world.BlockAt(c.pos)) {
			return false
		}
	}
	if !m.world.TakeItems(agentID, s.tpl.Cost) {
		return false
	}
	for _, c := range cells {
		m.world.SetBlock(c.pos, c.block, agentID)
	}
	// The session stays active so the agent can stamp again; the ghost now
	// overlaps the placed blocks until the next move.
	return true
}

type worldCell struct {
	pos   geo.Vec3i
	block uint16
}

// expand materializes the session's cells in world space.
func (m *Manager) expand(s *session) []worldCell {
	out := make([]worldCell, 0, len(s.tpl.Cells))
	for _, c := range s.tpl.Cells {
		id, ok := m.world.BlockID(c.Block)
		if !ok {
			m.logger.Printf("brush template %s: unknown block %q", s.tpl.ID, c.Block)
			return nil
		}
		out = append(out, worldCell{
			pos:   s.state.Pos.Add(RotateOffset(c.Off, s.state.OrientationIndex)),
			block: id,
		})
	}
	return out
}

// refresh re-materializes the ghost and emits the sync packets. The anchor
// packet is resent only when the anchor itself changed.
func (m *Manager) refresh(agentID string, s *session, anchorChanged bool) {
	ghost := make(map[geo.Vec3i]uint16, len(s.tpl.Cells))
	for _, c := range s.tpl.Cells {
		if id, ok := m.world.BlockID(c.Block); ok {
			ghost[RotateOffset(c.Off, s.state.OrientationIndex)] = id
		}
	}
	m.dims.FillPreview(s.dim, ghost, s.state.Pos)

	m.emit.SendBrushState(agentID, s.state)
	if anchorChanged {
		pos := s.state.Pos
		m.emit.SendDimensionPreview(agentID, s.dim, &pos)
	}
}

func (m *Manager) checkAnchor(agentID string, pos geo.Vec3i) string {
	if !m.world.InBounds(pos) {
		return protocol.ErrInvalidTarget
	}
	agentPos, ok := m.world.AgentPos(agentID)
	if !ok {
		return protocol.ErrInvalidTarget
	}
	if geo.Manhattan(agentPos, pos) > m.cfg.Reach {
		return protocol.ErrOutOfRange
	}
	return ""
}
