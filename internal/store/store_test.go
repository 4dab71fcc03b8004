package store

import (
	"reflect"
	"testing"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

func at(day, hour, min int) time.Time {
	return time.Date(2026, 4, day, hour, min, 0, 0, time.UTC)
}

func meeting() domain.Event {
	return domain.Event{
		ID:          "ev-1",
		CalendarID:  "cal-1",
		Title:       "design review",
		Description: "weekly sync",
		Location:    "room 4",
		Start:       at(20, 9, 0),
		End:         at(20, 10, 0),
	}
}

func TestApplyLocalWriteInsertsAndReplaces(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(meeting())

	got, ok := s.Get("ev-1")
	if !ok || got.Title != "design review" {
		t.Fatalf("after insert: ok=%v title=%q", ok, got.Title)
	}

	updated := meeting()
	updated.Title = "design review (moved)"
	updated.Description = ""
	s.ApplyLocalWrite(updated)

	got, _ = s.Get("ev-1")
	if got.Title != "design review (moved)" {
		t.Errorf("title %q after replace", got.Title)
	}
	// Confirmed writes are authoritative, not merged.
	if got.Description != "" {
		t.Errorf("description %q survived wholesale replace", got.Description)
	}
}

func TestApplyPushDeleteIsIdempotent(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(meeting())

	del := domain.Notification{
		EntityKind: domain.EntityEvent,
		Action:     domain.ChangeDeleted,
		Event:      &domain.Event{ID: "ev-1"},
	}

	s.ApplyPush(del)
	if s.Len() != 0 {
		t.Fatalf("store has %d events after delete", s.Len())
	}

	// Applying the same delete again is a no-op, not an error.
	s.ApplyPush(del)
	if s.Len() != 0 {
		t.Errorf("store has %d events after duplicated delete", s.Len())
	}
}

func TestApplyPushUpdateIsIdempotent(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(meeting())

	upd := domain.Notification{
		EntityKind: domain.EntityEvent,
		Action:     domain.ChangeUpdated,
		Event:      &domain.Event{ID: "ev-1", Title: "renamed", Start: at(20, 9, 30), End: at(20, 10, 30)},
	}

	s.ApplyPush(upd)
	once, _ := s.Get("ev-1")
	s.ApplyPush(upd)
	twice, _ := s.Get("ev-1")

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("duplicated update diverged:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestApplyPushPartialPayloadPreservesFields(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(meeting())

	// Partial payload: only the title travels.
	s.ApplyPush(domain.Notification{
		EntityKind: domain.EntityEvent,
		Action:     domain.ChangeUpdated,
		Event:      &domain.Event{ID: "ev-1", Title: "renamed"},
	})

	got, _ := s.Get("ev-1")
	if got.Title != "renamed" {
		t.Errorf("title %q, want renamed", got.Title)
	}
	if got.Description != "weekly sync" || got.Location != "room 4" {
		t.Errorf("partial push dropped fields: desc=%q loc=%q", got.Description, got.Location)
	}
	if !got.Start.Equal(at(20, 9, 0)) {
		t.Errorf("partial push moved start to %v", got.Start)
	}
}

func TestApplyPushCreatedUpsertsUnknownIdentity(t *testing.T) {
	s := New()
	s.ApplyPush(domain.Notification{
		EntityKind: domain.EntityEvent,
		Action:     domain.ChangeCreated,
		Event:      &domain.Event{ID: "ev-9", Title: "pushed", Start: at(21, 8, 0), End: at(21, 9, 0)},
	})

	if _, ok := s.Get("ev-9"); !ok {
		t.Error("created push did not insert")
	}

	// An "updated" push for an identity the client never saw still inserts:
	// delivery is unordered, the update may arrive before the create.
	s.ApplyPush(domain.Notification{
		EntityKind: domain.EntityEvent,
		Action:     domain.ChangeUpdated,
		Event:      &domain.Event{ID: "ev-10", Title: "early update", Start: at(22, 8, 0), End: at(22, 9, 0)},
	})
	if _, ok := s.Get("ev-10"); !ok {
		t.Error("out-of-order update push did not insert")
	}
}

func TestApplyPushConvergesInEitherOrder(t *testing.T) {
	// A local write confirmation and a push for the same identity must land
	// on the same state regardless of arrival order.
	confirmed := meeting()
	confirmed.Title = "confirmed title"
	push := domain.Notification{
		EntityKind: domain.EntityEvent,
		Action:     domain.ChangeUpdated,
		Event:      &domain.Event{ID: "ev-1", Title: "confirmed title"},
	}

	a := New()
	a.ApplyLocalWrite(confirmed)
	a.ApplyPush(push)

	b := New()
	b.ApplyLocalWrite(meeting())
	b.ApplyPush(push)
	b.ApplyLocalWrite(confirmed)

	evA, _ := a.Get("ev-1")
	evB, _ := b.Get("ev-1")
	if !reflect.DeepEqual(evA, evB) {
		t.Errorf("orders diverged:\na: %+v\nb: %+v", evA, evB)
	}
}

func TestApplyPushIgnoresOtherEntityKinds(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(meeting())

	s.ApplyPush(domain.Notification{
		EntityKind: "chat-message",
		Action:     domain.ChangeDeleted,
		Event:      &domain.Event{ID: "ev-1"},
	})

	if s.Len() != 1 {
		t.Error("notification for another entity kind touched the store")
	}
}

func TestEventsOrderedByStart(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(domain.Event{ID: "late", Start: at(20, 15, 0), End: at(20, 16, 0)})
	s.ApplyLocalWrite(domain.Event{ID: "early", Start: at(20, 8, 0), End: at(20, 9, 0)})
	s.ApplyLocalWrite(domain.Event{ID: "mid-b", Start: at(20, 11, 0), End: at(20, 12, 0)})
	s.ApplyLocalWrite(domain.Event{ID: "mid-a", Start: at(20, 11, 0), End: at(20, 11, 30)})

	var ids []string
	for _, ev := range s.Events() {
		ids = append(ids, ev.ID)
	}
	want := []string{"early", "mid-a", "mid-b", "late"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("order %v, want %v", ids, want)
	}
}

func TestDayBucket(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(domain.Event{ID: "in", Start: at(20, 9, 0), End: at(20, 10, 0)})
	s.ApplyLocalWrite(domain.Event{ID: "other-day", Start: at(21, 9, 0), End: at(21, 10, 0)})
	s.ApplyLocalWrite(domain.Event{ID: "spans", Start: at(19, 22, 0), End: at(20, 2, 0)})

	day := time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC)
	bucket := s.Day(day)

	ids := make(map[string]bool)
	for _, ev := range bucket {
		ids[ev.ID] = true
	}
	if !ids["in"] || !ids["spans"] || ids["other-day"] {
		t.Errorf("day bucket %v", ids)
	}
}

func TestBusyIntervalsSkipAllDay(t *testing.T) {
	s := New()
	s.ApplyLocalWrite(meeting())
	s.ApplyLocalWrite(domain.Event{ID: "holiday", AllDay: true, Start: at(20, 0, 0), End: at(21, 0, 0)})

	busy := s.BusyIntervals()
	if len(busy) != 1 || busy[0].EventID != "ev-1" {
		t.Errorf("busy projection %+v", busy)
	}
}
