// Package geometry maps between pixel offsets in a rendered day column and
// times of day. All conversions clamp instead of failing: coordinates outside
// the column resolve to the window edges, and times outside the visible
// window render flush to the column edge rather than off-canvas.
package geometry

import (
	"math"
	"time"
)

// DefaultSnapMinutes is the snapping granularity used when a column does not
// set its own.
const DefaultSnapMinutes = 15

// TimeOfDay is a minute-resolution point within a day. Minutes counts from
// midnight and may be 1440 to express the exclusive end of the day.
type TimeOfDay struct {
	Minutes int
}

// Hour returns the hour component (0-24).
func (t TimeOfDay) Hour() int { return t.Minutes / 60 }

// Minute returns the minute component (0-59).
func (t TimeOfDay) Minute() int { return t.Minutes % 60 }

// On anchors the time of day to the date of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(t.Minutes) * time.Minute)
}

// FromTime projects an instant onto its minute of day.
func FromTime(at time.Time) TimeOfDay {
	return TimeOfDay{Minutes: at.Hour()*60 + at.Minute()}
}

// Column describes the rendered geometry of one day column: its pixel
// height, the visible time window, and the snapping granularity.
type Column struct {
	HeightPx        float64
	WindowStartHour int
	WindowHours     int
	SnapMinutes     int
}

func (c Column) snap() int {
	if c.SnapMinutes <= 0 {
		return DefaultSnapMinutes
	}
	return c.SnapMinutes
}

func (c Column) windowStartMin() int { return c.WindowStartHour * 60 }
func (c Column) windowMinutes() int  { return c.WindowHours * 60 }

// ToTime converts a pixel offset within the column to a time of day. The
// offset ratio is clamped to [0,1] before scaling, then the minute of window
// is rounded to the nearest multiple of the snapping granularity.
func (c Column) ToTime(offsetPx float64) TimeOfDay {
	ratio := 0.0
	if c.HeightPx > 0 {
		ratio = offsetPx / c.HeightPx
	}
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	minuteOfWindow := ratio * float64(c.windowMinutes())
	snapped := int(math.Round(minuteOfWindow/float64(c.snap()))) * c.snap()

	return TimeOfDay{Minutes: c.windowStartMin() + snapped}
}

// ToOffset converts a time of day to a pixel offset within the column. Times
// outside the visible window clamp to the window edges, so an event that
// extends past the window renders flush to the top or bottom of the column.
func (c Column) ToOffset(t TimeOfDay) float64 {
	minutes := t.Minutes
	if minutes < c.windowStartMin() {
		minutes = c.windowStartMin()
	}
	if max := c.windowStartMin() + c.windowMinutes(); minutes > max {
		minutes = max
	}

	if c.windowMinutes() == 0 {
		return 0
	}
	return float64(minutes-c.windowStartMin()) / float64(c.windowMinutes()) * c.HeightPx
}

// SnapDelta rounds a raw pixel delta, interpreted through the column's
// time scale, to the column's snapping granularity and returns it as a
// duration. Used by move gestures so start and end shift together.
func (c Column) SnapDelta(deltaPx float64) time.Duration {
	if c.HeightPx == 0 {
		return 0
	}
	deltaMinutes := deltaPx / c.HeightPx * float64(c.windowMinutes())
	snapped := math.Round(deltaMinutes/float64(c.snap())) * float64(c.snap())
	return time.Duration(snapped) * time.Minute
}
