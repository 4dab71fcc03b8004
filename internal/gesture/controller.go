// Package gesture implements the pointer-drag state machine that turns raw
// pointer events over a day column into create, move and resize intents.
// State lives only for the duration of one gesture: it is created on
// pointer-down and destroyed on pointer-up or pointer-leave, and nothing here
// writes to the event store. Handling is synchronous per pointer event.
package gesture

import (
	"time"

	"github.com/osmakov/calgrid/internal/conflict"
	"github.com/osmakov/calgrid/internal/domain"
	"github.com/osmakov/calgrid/internal/geometry"
)

// Mode is the current gesture state.
type Mode int

const (
	ModeIdle Mode = iota
	ModeCreating
	ModeMoving
	ModeResizing
)

// ResizeHandlePx is the height of the resize grab area at the bottom of a
// rendered event block. A pointer-down within this band of the block's end
// starts a resize instead of a move.
const ResizeHandlePx = 8

// EventHit describes the event block under a pointer-down, as known to the
// rendering layer: its identity, its current interval, and where the block
// is drawn in the column.
type EventHit struct {
	EventID  string
	Interval domain.Interval
	TopPx    float64
	HeightPx float64
}

// IntentKind classifies an emitted intent.
type IntentKind int

const (
	IntentCreate IntentKind = iota
	IntentUpdateTime
)

// Intent is the outcome of a completed gesture: either a new interval to
// create, or a new interval for an existing event.
type Intent struct {
	Kind     IntentKind
	EventID  string
	Interval domain.Interval
}

// Controller consumes pointer events for one day column and produces
// intents. It is not safe for concurrent use; pointer events arrive
// serialized from a single input source.
type Controller struct {
	col geometry.Column
	day time.Time

	mode      Mode
	anchorPx  float64
	currentPx float64
	eventID   string
	snapshot  domain.Interval
	preview   domain.Interval
}

// NewController builds a controller for the given column geometry and the
// calendar day the column renders.
func NewController(col geometry.Column, day time.Time) *Controller {
	return &Controller{col: col, day: day}
}

// Mode returns the current gesture state.
func (c *Controller) Mode() Mode { return c.mode }

// Preview returns the live preview interval. ok is false while idle.
func (c *Controller) Preview() (domain.Interval, bool) {
	return c.preview, c.mode != ModeIdle
}

// PreviewConflicts reports whether the live preview overlaps any of the given
// busy intervals, excluding the dragged event's own prior position. It only
// drives preview coloring and never blocks the drag.
func (c *Controller) PreviewConflicts(busy []domain.BusyInterval) bool {
	if c.mode == ModeIdle {
		return false
	}
	return conflict.HasConflict(c.preview, busy, c.eventID)
}

// PointerDown starts a gesture. A nil hit means the pointer landed on empty
// grid and begins a create; a hit on an event block begins a resize when the
// pointer is within the resize handle at the block's bottom, otherwise a
// move. The hit event's interval is snapshotted so move and resize are
// computed against the pre-gesture state.
func (c *Controller) PointerDown(offsetPx float64, hit *EventHit) {
	c.anchorPx = offsetPx
	c.currentPx = offsetPx

	if hit == nil {
		c.mode = ModeCreating
		c.eventID = ""
		c.snapshot = domain.Interval{}
		// No second point yet: the preview is zero-duration at the anchor.
		at := c.col.ToTime(offsetPx).On(c.day)
		c.preview = domain.Interval{Start: at, End: at}
		return
	}

	c.eventID = hit.EventID
	c.snapshot = hit.Interval
	c.preview = hit.Interval
	if offsetPx >= hit.TopPx+hit.HeightPx-ResizeHandlePx {
		c.mode = ModeResizing
	} else {
		c.mode = ModeMoving
	}
}

// PointerMove updates the live preview for the current gesture. Moves shift
// the snapshotted interval by the snapped pixel delta so duration is
// preserved exactly; resizes pin the start and recompute only the end.
func (c *Controller) PointerMove(offsetPx float64) {
	c.currentPx = offsetPx

	switch c.mode {
	case ModeCreating:
		lo, hi := c.anchorPx, c.currentPx
		if hi < lo {
			lo, hi = hi, lo
		}
		c.preview = domain.Interval{
			Start: c.col.ToTime(lo).On(c.day),
			End:   c.col.ToTime(hi).On(c.day),
		}
	case ModeMoving:
		delta := c.col.SnapDelta(c.currentPx - c.anchorPx)
		c.preview = c.snapshot.Shift(delta)
	case ModeResizing:
		c.preview = domain.Interval{
			Start: c.snapshot.Start,
			End:   c.col.ToTime(offsetPx).On(c.day),
		}
	}
}

// PointerUp ends the gesture and returns the intent it produced, if any.
// A create needs a positive-duration interval; a move or resize additionally
// needs to differ from the snapshot. Everything else ends silently, so a
// click without a drag, or a resize collapsing the event below zero
// duration, commits nothing.
func (c *Controller) PointerUp() (Intent, bool) {
	mode := c.mode
	preview := c.preview
	eventID := c.eventID
	snapshot := c.snapshot
	c.reset()

	switch mode {
	case ModeCreating:
		if preview.IsValid() {
			return Intent{Kind: IntentCreate, Interval: preview}, true
		}
	case ModeMoving, ModeResizing:
		if preview.IsValid() && !preview.Equal(snapshot) {
			return Intent{Kind: IntentUpdateTime, EventID: eventID, Interval: preview}, true
		}
	}
	return Intent{}, false
}

// PointerLeave behaves exactly like PointerUp: a gesture that already has a
// valid second point commits, one that does not ends as a no-op. Leaving the
// grid never silently drops a completed gesture.
func (c *Controller) PointerLeave() (Intent, bool) {
	return c.PointerUp()
}

func (c *Controller) reset() {
	c.mode = ModeIdle
	c.anchorPx = 0
	c.currentPx = 0
	c.eventID = ""
	c.snapshot = domain.Interval{}
	c.preview = domain.Interval{}
}
