package client

import (
	"fmt"

	"voxelbrush.dev/internal/geo"
)

// PendingPlace is one speculatively applied placement awaiting the server's
// cumulative ack.
type PendingPlace struct {
	Seq       int64
	Item      string
	Predicted geo.Vec3i
	Block     uint16
}

// Speculative is a fixed-size ring of in-flight placements keyed by seq,
// plus the optimistic block overlay they paint. Seqs are issued here and are
// strictly increasing for the session; the server acks them cumulatively
// via PLACE_ACK and reports per-seq outcomes in events.
//
// The ack and the outcome travel in separate messages and the ack can land
// first, so overlay cells are keyed by seq, not by ring slot: Confirm/Fail
// retire them even after AckUpTo has released the ring entry.
type Speculative struct {
	buf []*PendingPlace

	nextSeq   int64
	lastAcked int64

	overlay map[int64]overlayCell
}

type overlayCell struct {
	pos   geo.Vec3i
	block uint16
}

func NewSpeculative(size int) *Speculative {
	if size <= 0 {
		size = 64
	}
	return &Speculative{
		buf:     make([]*PendingPlace, size),
		overlay: map[int64]overlayCell{},
	}
}

// NextSeq issues the next placement sequence number.
func (s *Speculative) NextSeq() int64 {
	s.nextSeq++
	return s.nextSeq
}

// Store records an in-flight placement and paints its overlay cell. It
// fails when the ring is full; callers should stop issuing until an ack
// frees slots.
func (s *Speculative) Store(p PendingPlace) error {
	if p.Seq <= s.lastAcked {
		return fmt.Errorf("seq %d already acked (watermark %d)", p.Seq, s.lastAcked)
	}
	slot := int(p.Seq % int64(len(s.buf)))
	if prev := s.buf[slot]; prev != nil {
		return fmt.Errorf("speculation buffer full: slot for seq %d still holds seq %d", p.Seq, prev.Seq)
	}
	cp := p
	s.buf[slot] = &cp
	s.overlay[p.Seq] = overlayCell{pos: p.Predicted, block: p.Block}
	return nil
}

// AckUpTo applies a PLACE_ACK watermark: every pending entry with seq <=
// lastAppliedSeq is released and returned in seq order. A regressing
// watermark is a protocol violation. Overlay cells stay painted until the
// per-seq outcome arrives.
func (s *Speculative) AckUpTo(lastAppliedSeq int64) ([]PendingPlace, error) {
	if lastAppliedSeq < s.lastAcked {
		return nil, fmt.Errorf("ack watermark regressed: %d -> %d", s.lastAcked, lastAppliedSeq)
	}
	var released []PendingPlace
	for seq := s.lastAcked + 1; seq <= lastAppliedSeq; seq++ {
		slot := int(seq % int64(len(s.buf)))
		p := s.buf[slot]
		if p == nil || p.Seq != seq {
			continue
		}
		s.buf[slot] = nil
		released = append(released, *p)
	}
	s.lastAcked = lastAppliedSeq
	return released, nil
}

// Confirm retires the overlay cell of a succeeded placement; the block is
// authoritative server state now.
func (s *Speculative) Confirm(seq int64) { delete(s.overlay, seq) }

// Fail rolls back the overlay cell of a rejected placement.
func (s *Speculative) Fail(seq int64) { delete(s.overlay, seq) }

// Pending counts in-flight placements above the watermark.
func (s *Speculative) Pending() int {
	n := 0
	for _, p := range s.buf {
		if p != nil {
			n++
		}
	}
	return n
}

// LastAcked returns the reconciliation watermark.
func (s *Speculative) LastAcked() int64 { return s.lastAcked }

// OverlayBlock reports the optimistic block at pos, if any. When several
// in-flight placements target the same cell the newest speculation wins.
func (s *Speculative) OverlayBlock(pos geo.Vec3i) (uint16, bool) {
	var best int64
	var block uint16
	found := false
	for seq, c := range s.overlay {
		if c.pos == pos && seq > best {
			best, block, found = seq, c.block, true
		}
	}
	return block, found
}
