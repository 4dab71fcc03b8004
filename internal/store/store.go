// Package store holds the client-side event cache for the currently visible
// range. The cache is eventually consistent with the server: it is fed by
// confirmed local writes, by full range fetches, and by pushed change
// notifications, all through idempotent apply paths, so duplicated or
// reordered delivery converges to the same state.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

// Store is an identity-keyed collection of events. All mutation is
// serialized behind one mutex, the Go rendition of the single-threaded event
// loop the engine is written against; no operation here blocks on I/O.
type Store struct {
	mu     sync.Mutex
	events map[string]*domain.Event
}

// New returns an empty store.
func New() *Store {
	return &Store{events: make(map[string]*domain.Event)}
}

// ApplyLocalWrite inserts or replaces an event by identity. It is called
// with the server's response after a successful write, never before the
// server acknowledges, so the payload is authoritative and replaces
// wholesale.
func (s *Store) ApplyLocalWrite(ev domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := ev
	s.events[ev.ID] = &cp
}

// ApplyLocalDelete removes an event after a confirmed delete. Removing an
// absent identity is a no-op.
func (s *Store) ApplyLocalDelete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, id)
}

// ApplyPush applies a pushed change notification. Deletes remove by identity
// and are idempotent. Creates and updates upsert with a shallow merge so
// fields absent from a partial payload are preserved.
//
// The transport guarantees at-least-once delivery with no ordering, and no
// version clock is available, so the store applies last-write-observed-wins.
// Known race: a push carrying stale state can transiently win over a newer
// local write for the same identity until the next refresh; this is a
// documented limitation, not an error path.
func (s *Store) ApplyPush(n domain.Notification) {
	if n.EntityKind != domain.EntityEvent {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch n.Action {
	case domain.ChangeDeleted:
		if n.Event != nil {
			delete(s.events, n.Event.ID)
		}
	case domain.ChangeCreated, domain.ChangeUpdated:
		if n.Event == nil || n.Event.ID == "" {
			return
		}
		if existing, ok := s.events[n.Event.ID]; ok {
			merged := mergeEvent(*existing, *n.Event)
			s.events[n.Event.ID] = &merged
		} else {
			cp := *n.Event
			s.events[cp.ID] = &cp
		}
	}
}

// Replace swaps the cached range for a freshly fetched one.
func (s *Store) Replace(events []domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]*domain.Event, len(events))
	for i := range events {
		cp := events[i]
		s.events[cp.ID] = &cp
	}
}

// Get returns the event with the given identity.
func (s *Store) Get(id string) (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return domain.Event{}, false
	}
	return *ev, true
}

// Len returns the number of cached events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Events returns a snapshot of all cached events ordered by start instant,
// ties broken by identity for determinism.
func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	out := make([]domain.Event, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, *ev)
	}
	s.mu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if !out[a].Start.Equal(out[b].Start) {
			return out[a].Start.Before(out[b].Start)
		}
		return out[a].ID < out[b].ID
	})
	return out
}

// Day returns the ordered bucket of events whose interval intersects the
// given calendar day; this is what the lane packer consumes.
func (s *Store) Day(day time.Time) []domain.Event {
	var out []domain.Event
	for _, ev := range s.Events() {
		if _, ok := ev.Interval().ClipToDay(day); ok {
			out = append(out, ev)
		}
	}
	return out
}

// BusyIntervals projects the cached events onto busy blocks for conflict
// checks. All-day events are skipped: they do not occupy clock time.
func (s *Store) BusyIntervals() []domain.BusyInterval {
	var out []domain.BusyInterval
	for _, ev := range s.Events() {
		if ev.AllDay {
			continue
		}
		out = append(out, domain.BusyInterval{
			Start:      ev.Start,
			End:        ev.End,
			EventID:    ev.ID,
			CalendarID: ev.CalendarID,
		})
	}
	return out
}

// mergeEvent overlays src onto dst field by field. Zero-valued fields in src
// are treated as absent and leave dst's value in place; booleans are always
// taken from src since push payloads carry them explicitly. The merge is
// shallow: the attendee list is replaced as a whole when present.
func mergeEvent(dst, src domain.Event) domain.Event {
	out := dst

	if src.CalendarID != "" {
		out.CalendarID = src.CalendarID
	}
	if src.Title != "" {
		out.Title = src.Title
	}
	if src.Description != "" {
		out.Description = src.Description
	}
	if src.Location != "" {
		out.Location = src.Location
	}
	if src.URL != "" {
		out.URL = src.URL
	}
	if !src.Start.IsZero() {
		out.Start = src.Start
	}
	if !src.End.IsZero() {
		out.End = src.End
	}
	out.AllDay = src.AllDay
	if src.Timezone != "" {
		out.Timezone = src.Timezone
	}
	if src.RecurrenceRule != "" {
		out.RecurrenceRule = src.RecurrenceRule
	}
	if src.RecurrenceUntil != nil {
		out.RecurrenceUntil = src.RecurrenceUntil
	}
	if src.OccurrenceStartAt != nil {
		out.OccurrenceStartAt = src.OccurrenceStartAt
	}
	if src.Attendees != nil {
		out.Attendees = src.Attendees
	}
	if src.Creator != "" {
		out.Creator = src.Creator
	}
	return out
}
