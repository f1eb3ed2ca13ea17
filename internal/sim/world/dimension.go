package world

import (
	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/brush"
)

// previewDim is one per-agent ghost dimension. Its cells live outside the
// chunk store and outside the state digest; only the owning client ever sees
// them.
type previewDim struct {
	ID     int
	Owner  string
	Anchor geo.Vec3i
	Cells  map[geo.Vec3i]uint16
}

// EnsurePreview implements brush.PreviewDims. Ids start at 1; the disable
// sentinel is never handed out.
func (w *World) EnsurePreview(agentID string) int {
	if id, ok := w.previewByOwner[agentID]; ok {
		return id
	}
	w.nextPreviewID++
	id := w.nextPreviewID
	w.previewByOwner[agentID] = id
	w.previews[id] = &previewDim{ID: id, Owner: agentID, Cells: map[geo.Vec3i]uint16{}}
	return id
}

// FillPreview implements brush.PreviewDims.
func (w *World) FillPreview(dimID int, cells map[geo.Vec3i]uint16, anchor geo.Vec3i) {
	d := w.previews[dimID]
	if d == nil {
		return
	}
	d.Cells = cells
	d.Anchor = anchor
}

// ReleasePreview implements brush.PreviewDims.
func (w *World) ReleasePreview(agentID string) {
	id, ok := w.previewByOwner[agentID]
	if !ok {
		return
	}
	delete(w.previewByOwner, agentID)
	delete(w.previews, id)
}

func (w *World) previewFor(agentID string) *previewDim {
	id, ok := w.previewByOwner[agentID]
	if !ok {
		return nil
	}
	return w.previews[id]
}

// SendBrushState implements brush.Emitter. The message is coalesced
// latest-wins until the step flush.
func (w *World) SendBrushState(agentID string, st brush.State) {
	cl := w.clients[agentID]
	if cl == nil {
		return
	}
	cl.pendingBrush = &protocol.BrushStateMsg{
		Type:             protocol.TypeBrushState,
		ProtocolVersion:  protocol.Version,
		Active:           st.Active,
		OrientationIndex: st.OrientationIndex,
		RotationY:        st.RotationY,
		Pos:              st.Pos.ToArray(),
		Snapping:         string(st.Snapping),
	}
}

// SendDimensionPreview implements brush.Emitter. Pos rides along exactly when
// the dimension is not the disable sentinel.
func (w *World) SendDimensionPreview(agentID string, dimID int, pos *geo.Vec3i) {
	cl := w.clients[agentID]
	if cl == nil {
		return
	}
	msg := &protocol.DimensionPreviewMsg{
		Type:            protocol.TypeDimensionPreview,
		ProtocolVersion: protocol.Version,
		DimensionID:     dimID,
	}
	if dimID != protocol.DisableDimension && pos != nil {
		arr := pos.ToArray()
		msg.Pos = &arr
	}
	cl.pendingPreview = msg
}
