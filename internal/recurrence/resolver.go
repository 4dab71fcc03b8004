// Package recurrence decides how an edit or delete on a recurring event maps
// to a write directive: either a plain write against the series root, or a
// directive scoped to exactly one occurrence that the server materializes as
// an exception. The series definition itself is never mutated here.
package recurrence

import (
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

// ResolveUpdate builds the write directive for editing ev with the given
// scope. The scope comes from outside the engine (for a recurring event the
// caller has already asked the user "this occurrence or the whole series?");
// a non-recurring event always resolves to a whole-event update regardless
// of scope.
func ResolveUpdate(ev *domain.Event, scope domain.EditScope, fields domain.Draft) domain.WriteDirective {
	d := domain.WriteDirective{
		EventID:  ev.ID,
		Action:   domain.ActionUpdate,
		EditMode: domain.EditModeAll,
		Fields:   &fields,
	}

	if ev.IsRecurring() && scope == domain.ScopeThisOccurrence {
		d.EditMode = domain.EditModeThis
		d.OccurrenceStartAt = occurrenceStart(ev)
	}
	return d
}

// ResolveDelete builds the write directive for deleting ev with the given
// scope. An occurrence-scoped delete marks that single instance cancelled;
// it must never delete the series root.
func ResolveDelete(ev *domain.Event, scope domain.EditScope) domain.WriteDirective {
	d := domain.WriteDirective{
		EventID:  ev.ID,
		Action:   domain.ActionDelete,
		EditMode: domain.EditModeAll,
	}

	if ev.IsRecurring() && scope == domain.ScopeThisOccurrence {
		d.EditMode = domain.EditModeThis
		d.OccurrenceStartAt = occurrenceStart(ev)
	}
	return d
}

// occurrenceStart is the original start of the targeted occurrence. A
// materialized occurrence already carries it; otherwise the series root's
// start stands in, since for an unmaterialized occurrence the root is the
// instance being pointed at.
func occurrenceStart(ev *domain.Event) *time.Time {
	if ev.OccurrenceStartAt != nil {
		at := *ev.OccurrenceStartAt
		return &at
	}
	at := ev.Start
	return &at
}
