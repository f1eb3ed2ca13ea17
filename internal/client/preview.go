package client

import (
	"fmt"

	"voxelbrush.dev/internal/geo"
	"voxelbrush.dev/internal/protocol"
	"voxelbrush.dev/internal/sim/brush"
)

// Preview mirrors the server-validated brush transform and the preview
// dimension selection on the client side. Apply methods reject protocol
// violations instead of guessing.
type Preview struct {
	orientationCount int

	Brush       brush.State
	DimensionID int
	Anchor      *geo.Vec3i
}

func NewPreview(orientationCount int) *Preview {
	if orientationCount <= 0 {
		orientationCount = brush.OrientationCount
	}
	return &Preview{
		orientationCount: orientationCount,
		DimensionID:      protocol.DisableDimension,
	}
}

// ApplyBrushState validates and adopts a BRUSH_STATE message.
func (p *Preview) ApplyBrushState(m protocol.BrushStateMsg) error {
	if m.OrientationIndex < 0 || m.OrientationIndex >= p.orientationCount {
		return fmt.Errorf("orientation_index %d outside shared set [0,%d)", m.OrientationIndex, p.orientationCount)
	}
	snapping, ok := brush.ParseSnapping(m.Snapping)
	if !ok {
		return fmt.Errorf("unknown snapping mode %q", m.Snapping)
	}
	p.Brush = brush.State{
		Active:           m.Active,
		OrientationIndex: m.OrientationIndex,
		RotationY:        m.RotationY,
		Pos:              geo.FromArray(m.Pos),
		Snapping:         snapping,
	}
	return nil
}

// ApplyDimensionPreview validates and adopts a DIMENSION_PREVIEW message.
// An active dimension id without a position is a protocol violation.
func (p *Preview) ApplyDimensionPreview(m protocol.DimensionPreviewMsg) error {
	if m.DimensionID == protocol.DisableDimension {
		p.DimensionID = protocol.DisableDimension
		p.Anchor = nil
		return nil
	}
	if m.DimensionID < 1 {
		return fmt.Errorf("invalid dimension_id %d", m.DimensionID)
	}
	if m.Pos == nil {
		return fmt.Errorf("dimension_id %d active but pos missing", m.DimensionID)
	}
	pos := geo.FromArray(*m.Pos)
	p.DimensionID = m.DimensionID
	p.Anchor = &pos
	return nil
}

// Active reports whether a preview dimension should currently render.
func (p *Preview) Active() bool { return p.DimensionID != protocol.DisableDimension }
