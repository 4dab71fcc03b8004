// Package service wires the event store, the server client and the
// interaction packages together behind one API the frontends call.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/osmakov/calgrid/internal/conflict"
	"github.com/osmakov/calgrid/internal/domain"
	"github.com/osmakov/calgrid/internal/gesture"
	"github.com/osmakov/calgrid/internal/recurrence"
	"github.com/osmakov/calgrid/internal/store"
)

// Client is the server surface the planner needs. The CalDAV client
// implements it; tests substitute fakes.
type Client interface {
	ListEvents(ctx context.Context, from, to time.Time, contexts []domain.ContextKind, calendarIDs []string) ([]domain.Event, error)
	CreateEvent(ctx context.Context, draft domain.Draft) (*domain.Event, error)
	UpdateEvent(ctx context.Context, id string, d domain.WriteDirective) (*domain.Event, error)
	DeleteEvent(ctx context.Context, id string, d domain.WriteDirective) error
	FreeBusy(ctx context.Context, from, to time.Time, calendarIDs []string) ([]domain.BusyInterval, error)
	CheckConflicts(ctx context.Context, from, to time.Time, calendarIDs []string) ([]domain.Event, error)
	Rsvp(ctx context.Context, eventID string, response domain.ResponseStatus) (*domain.Event, error)
}

// SnapshotStore is the optional warm-start source: a persisted copy of the
// last known events, loaded before the first server round trip.
type SnapshotStore interface {
	Load() ([]domain.Event, error)
	Save([]domain.Event) error
}

// Planner coordinates event reads and writes. All writes go to the server
// first and land in the local store only from the confirmed response, so the
// store never holds state the server refused.
type Planner struct {
	store    *store.Store
	client   Client
	snapshot SnapshotStore
	timezone *time.Location
}

// NewPlanner creates a planner. snapshot may be nil.
func NewPlanner(st *store.Store, client Client, snapshot SnapshotStore, tz *time.Location) *Planner {
	if tz == nil {
		tz = time.UTC
	}
	return &Planner{
		store:    st,
		client:   client,
		snapshot: snapshot,
		timezone: tz,
	}
}

// Store exposes the live store for read paths (day views, search).
func (p *Planner) Store() *store.Store {
	return p.store
}

// WarmStart fills the store from the persisted snapshot so the grid has
// content before the first refresh. Missing or empty snapshots are not an
// error.
func (p *Planner) WarmStart() error {
	if p.snapshot == nil {
		return nil
	}
	events, err := p.snapshot.Load()
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if len(events) > 0 {
		p.store.Replace(events)
	}
	return nil
}

// Refresh replaces the store with the server's events for [from, to) and
// rewrites the snapshot.
func (p *Planner) Refresh(ctx context.Context, from, to time.Time) error {
	events, err := p.client.ListEvents(ctx, from, to, nil, nil)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	p.store.Replace(events)

	if p.snapshot != nil {
		if err := p.snapshot.Save(events); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
	}
	return nil
}

// Create validates a draft, sends it to the server and stores the confirmed
// event.
func (p *Planner) Create(ctx context.Context, draft domain.Draft) (*domain.Event, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	if err := recurrence.ValidateRule(draft.RecurrenceRule); err != nil {
		return nil, err
	}

	ev, err := p.client.CreateEvent(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	p.store.ApplyLocalWrite(*ev)
	return ev, nil
}

// Update edits an event with the given scope. For a recurring event the
// scope decides between rewriting the whole series and materializing a
// single-occurrence exception.
func (p *Planner) Update(ctx context.Context, id string, scope domain.EditScope, fields domain.Draft) (*domain.Event, error) {
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	if err := recurrence.ValidateRule(fields.RecurrenceRule); err != nil {
		return nil, err
	}

	ev, ok := p.store.Get(id)
	if !ok {
		return nil, fmt.Errorf("event %s not found", id)
	}

	directive := recurrence.ResolveUpdate(&ev, scope, fields)
	updated, err := p.client.UpdateEvent(ctx, id, directive)
	if err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	if directive.EditMode == domain.EditModeAll && updated.ID != id {
		// A series rewrite started from a materialized occurrence; the
		// stale occurrence entry goes away, the series entry replaces it.
		p.store.ApplyLocalDelete(id)
	}
	p.store.ApplyLocalWrite(*updated)
	return updated, nil
}

// Delete removes an event with the given scope. An occurrence-scoped delete
// cancels that single instance and leaves the series in place.
func (p *Planner) Delete(ctx context.Context, id string, scope domain.EditScope) error {
	ev, ok := p.store.Get(id)
	if !ok {
		return fmt.Errorf("event %s not found", id)
	}

	directive := recurrence.ResolveDelete(&ev, scope)
	if err := p.client.DeleteEvent(ctx, id, directive); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if directive.EditMode == domain.EditModeAll || ev.IsOccurrence() {
		p.store.ApplyLocalDelete(id)
	}
	return nil
}

// Rsvp updates the user's own response on an event.
func (p *Planner) Rsvp(ctx context.Context, id string, response domain.ResponseStatus) (*domain.Event, error) {
	ev, err := p.client.Rsvp(ctx, id, response)
	if err != nil {
		return nil, fmt.Errorf("rsvp: %w", err)
	}
	p.store.ApplyLocalWrite(*ev)
	return ev, nil
}

// FreeBusy asks the server for busy blocks on the given calendars.
func (p *Planner) FreeBusy(ctx context.Context, from, to time.Time, calendarIDs []string) ([]domain.BusyInterval, error) {
	return p.client.FreeBusy(ctx, from, to, calendarIDs)
}

// CheckConflicts asks the server which events overlap the candidate range.
// Unlike PreviewConflicts it sees events outside the locally cached window.
func (p *Planner) CheckConflicts(ctx context.Context, from, to time.Time, calendarIDs []string) ([]domain.Event, error) {
	return p.client.CheckConflicts(ctx, from, to, calendarIDs)
}

// PreviewConflicts reports locally known events overlapping the candidate
// interval, excluding the event being edited. It works off the store so a
// drag preview never waits on the network.
func (p *Planner) PreviewConflicts(candidate domain.Interval, excludeEventID string) []domain.BusyInterval {
	return conflict.FindConflicts(candidate, p.store.BusyIntervals(), excludeEventID)
}

// CommitIntent applies a completed drag gesture. Creates land on the given
// calendar; time updates go through the series resolver with the given
// scope.
func (p *Planner) CommitIntent(ctx context.Context, intent gesture.Intent, calendarID, title string, scope domain.EditScope) (*domain.Event, error) {
	switch intent.Kind {
	case gesture.IntentCreate:
		return p.Create(ctx, domain.Draft{
			CalendarID: calendarID,
			Title:      title,
			Start:      intent.Interval.Start,
			End:        intent.Interval.End,
		})
	case gesture.IntentUpdateTime:
		ev, ok := p.store.Get(intent.EventID)
		if !ok {
			return nil, fmt.Errorf("event %s not found", intent.EventID)
		}
		fields := eventFields(&ev)
		fields.Start = intent.Interval.Start
		fields.End = intent.Interval.End
		return p.Update(ctx, intent.EventID, scope, fields)
	default:
		return nil, fmt.Errorf("unknown intent kind %d", intent.Kind)
	}
}

// eventFields rebuilds a full draft from a stored event so a time-only edit
// carries the rest of the event through unchanged.
func eventFields(ev *domain.Event) domain.Draft {
	return domain.Draft{
		CalendarID:      ev.CalendarID,
		Title:           ev.Title,
		Description:     ev.Description,
		Location:        ev.Location,
		URL:             ev.URL,
		Start:           ev.Start,
		End:             ev.End,
		AllDay:          ev.AllDay,
		Timezone:        ev.Timezone,
		RecurrenceRule:  ev.RecurrenceRule,
		RecurrenceUntil: ev.RecurrenceUntil,
		Attendees:       ev.Attendees,
	}
}
