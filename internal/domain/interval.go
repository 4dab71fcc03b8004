package domain

import "time"

// Interval is a half-open time span [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// IsValid reports whether the interval has positive duration.
func (i Interval) IsValid() bool {
	return !i.Start.IsZero() && i.End.After(i.Start)
}

// Duration returns End - Start.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals intersect. Touching
// boundaries (one ends exactly when the other starts) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Equal reports whether both endpoints match to the instant.
func (i Interval) Equal(o Interval) bool {
	return i.Start.Equal(o.Start) && i.End.Equal(o.End)
}

// Shift moves both endpoints by d, preserving duration.
func (i Interval) Shift(d time.Duration) Interval {
	return Interval{Start: i.Start.Add(d), End: i.End.Add(d)}
}

// ClipToDay intersects the interval with the calendar day containing midnight
// of day's date, in day's location. ok is false when they do not intersect.
func (i Interval) ClipToDay(day time.Time) (clipped Interval, ok bool) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	if !i.Overlaps(Interval{Start: dayStart, End: dayEnd}) {
		return Interval{}, false
	}

	clipped = i
	if clipped.Start.Before(dayStart) {
		clipped.Start = dayStart
	}
	if clipped.End.After(dayEnd) {
		clipped.End = dayEnd
	}
	return clipped, true
}

// BusyInterval is a read-only projection of occupied time used for
// availability checks. EventID is set when the busy block is backed by an
// event the caller may want to exclude (its own prior position during a
// move); free/busy data from other people carries no EventID.
type BusyInterval struct {
	Start time.Time
	End   time.Time

	EventID    string
	CalendarID string
}

// Span returns the busy block as an Interval.
func (b BusyInterval) Span() Interval {
	return Interval{Start: b.Start, End: b.End}
}
