package designer

import (
	"fmt"

	"certforge/internal/layout"
)

// Drag gestures follow an explicit state machine:
//
//	Idle → (pointer down on element) → Dragging → (pointer up | window blur
//	| teardown) → Idle
//
// While dragging, moves are captured globally (the gesture survives the
// pointer leaving the element's hit area) and every move recomputes the
// element position from the total delta since gesture start, not from
// incremental deltas, so rounding never accumulates into drift.

type dragGesture struct {
	index int

	// pointer position at gesture start, view units
	startViewX float64
	startViewY float64

	// element position at gesture start, design units
	startDesignX float64
	startDesignY float64
}

// Dragging reports whether a gesture is in flight.
func (s *Session) Dragging() bool { return s.drag != nil }

// BeginDrag starts a gesture on the element at index. The pressed element
// becomes the selection. A gesture already in flight is released first
// (a second pointer-down can only mean the previous up was lost).
func (s *Session) BeginDrag(index int, viewX, viewY float64) error {
	if index < 0 || index >= len(s.cfg.Elements) {
		return fmt.Errorf("begin drag on element %d: index out of range", index)
	}
	if s.drag != nil {
		s.releaseDrag()
	}

	el := s.cfg.Elements[index]
	s.selected = index
	s.drag = &dragGesture{
		index:        index,
		startViewX:   viewX,
		startViewY:   viewY,
		startDesignX: el.X,
		startDesignY: el.Y,
	}
	return nil
}

// DragMove repositions the dragged element for the pointer now being at
// (viewX, viewY). No-op when idle, matching a stray move event after the
// gesture ended.
func (s *Session) DragMove(viewX, viewY float64) {
	if s.drag == nil {
		return
	}

	el := &s.cfg.Elements[s.drag.index]
	el.X = s.drag.startDesignX + layout.ToDesignDelta(viewX-s.drag.startViewX, s.scale)
	el.Y = s.drag.startDesignY + layout.ToDesignDelta(viewY-s.drag.startViewY, s.scale)
}

// EndDrag finishes the gesture on pointer up. The element keeps the
// position of the last move.
func (s *Session) EndDrag() {
	s.releaseDrag()
}

// CancelDrag is the exit path for window blur and component teardown. The
// element likewise keeps its last position; moves already applied are edits
// like any other and are only discarded by abandoning the whole session.
func (s *Session) CancelDrag() {
	s.releaseDrag()
}

// releaseDrag returns to Idle unconditionally. Every exit path funnels
// through here so gesture state can never leak into the next gesture.
func (s *Session) releaseDrag() {
	s.drag = nil
}
