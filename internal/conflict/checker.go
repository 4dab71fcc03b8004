// Package conflict reports overlaps between a proposed interval and known
// busy time. The check is advisory: a reported conflict never blocks a write,
// it is surfaced so a human can decide to proceed or abort.
package conflict

import "github.com/osmakov/calgrid/internal/domain"

// FindConflicts returns every busy interval that overlaps the candidate.
// Intervals are half-open: a block ending exactly when the candidate starts
// does not conflict. excludeEventID ignores busy blocks backed by that event,
// so a move or resize does not collide with the event's own prior position;
// pass "" to exclude nothing.
func FindConflicts(candidate domain.Interval, busy []domain.BusyInterval, excludeEventID string) []domain.BusyInterval {
	if !candidate.IsValid() {
		return nil
	}

	var conflicts []domain.BusyInterval
	for _, b := range busy {
		if excludeEventID != "" && b.EventID == excludeEventID {
			continue
		}
		if candidate.Overlaps(b.Span()) {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts
}

// HasConflict is a convenience wrapper for preview coloring, where only the
// boolean matters.
func HasConflict(candidate domain.Interval, busy []domain.BusyInterval, excludeEventID string) bool {
	return len(FindConflicts(candidate, busy, excludeEventID)) > 0
}
