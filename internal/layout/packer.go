// Package layout assigns overlapping day events to side-by-side lanes for
// rendering. The packing is a deliberate greedy approximation: within a
// contiguous overlapping run the lane counter only grows, which keeps lane
// assignments stable while dragging even though it is not minimum-lane
// optimal. Callers depend on this exact behavior; do not replace it with an
// optimal interval-coloring pass.
package layout

import (
	"sort"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

// Assignment is the computed lane for one event on one day. It is derived
// state, recomputed whenever the day's event set changes, and never stored.
type Assignment struct {
	EventID string
	Lane    int

	// Clipped is the event's interval intersected with the day, which is
	// what the lane decision was made on.
	Clipped domain.Interval
}

// PackDay assigns a lane to every event whose interval intersects the given
// calendar day. Multi-day events are clipped to the day first. Events are
// ordered by clipped start ascending, ties broken by longer duration first so
// long events claim lane 0 and short ones fan out beside them.
func PackDay(events []domain.Event, day time.Time) []Assignment {
	var out []Assignment
	for i := range events {
		clipped, ok := events[i].Interval().ClipToDay(day)
		if !ok {
			continue
		}
		out = append(out, Assignment{EventID: events[i].ID, Clipped: clipped})
	}

	sort.SliceStable(out, func(a, b int) bool {
		sa, sb := out[a].Clipped.Start, out[b].Clipped.Start
		if !sa.Equal(sb) {
			return sa.Before(sb)
		}
		return out[a].Clipped.Duration() > out[b].Clipped.Duration()
	})

	var lastEnd time.Time
	lane := 0
	for i := range out {
		if !lastEnd.IsZero() && out[i].Clipped.Start.Before(lastEnd) {
			lane++
		} else {
			lane = 0
		}
		out[i].Lane = lane
		if out[i].Clipped.End.After(lastEnd) {
			lastEnd = out[i].Clipped.End
		}
	}

	return out
}

// LaneCount returns the number of lanes in use (max lane index + 1), which
// callers divide the column width by.
func LaneCount(assignments []Assignment) int {
	max := -1
	for _, a := range assignments {
		if a.Lane > max {
			max = a.Lane
		}
	}
	return max + 1
}
