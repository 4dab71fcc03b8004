package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
	"github.com/osmakov/calgrid/internal/store"
)

type fakeLister struct {
	events []domain.Event
	err    error
}

func (f *fakeLister) ListEvents(ctx context.Context, from, to time.Time, contexts []domain.ContextKind, calendarIDs []string) ([]domain.Event, error) {
	return f.events, f.err
}

type recordingSaver struct {
	saves int
	last  []domain.Event
}

func (r *recordingSaver) Save(events []domain.Event) error {
	r.saves++
	r.last = events
	return nil
}

func testEvent(id, title string, start time.Time) domain.Event {
	return domain.Event{
		ID:         id,
		CalendarID: "personal",
		Title:      title,
		Start:      start,
		End:        start.Add(time.Hour),
	}
}

func TestRefreshReconcilesStore(t *testing.T) {
	now := time.Now()
	st := store.New()

	// Known event that will change remotely, plus one the server dropped.
	st.Replace([]domain.Event{
		testEvent("keep@x", "Old title", now.Add(2*time.Hour)),
		testEvent("gone@x", "Removed elsewhere", now.Add(4*time.Hour)),
	})

	remote := []domain.Event{
		testEvent("keep@x", "New title", now.Add(2*time.Hour)),
		testEvent("fresh@x", "Created elsewhere", now.Add(6*time.Hour)),
	}

	var notifications []domain.Notification
	saver := &recordingSaver{}
	r := New("@every 1m", time.UTC, &fakeLister{events: remote}, st, saver, func(n domain.Notification) {
		notifications = append(notifications, n)
	})

	result, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	if result.Added != 1 || result.Updated != 1 || result.Deleted != 1 {
		t.Errorf("result = %+v, want 1 added, 1 updated, 1 deleted", result)
	}

	if ev, ok := st.Get("keep@x"); !ok || ev.Title != "New title" {
		t.Errorf("keep@x = %+v, want updated title", ev)
	}
	if _, ok := st.Get("fresh@x"); !ok {
		t.Error("fresh@x missing from store after refresh")
	}
	if _, ok := st.Get("gone@x"); ok {
		t.Error("gone@x still in store after refresh")
	}

	if len(notifications) != 3 {
		t.Errorf("len(notifications) = %d, want 3", len(notifications))
	}
	if saver.saves != 1 {
		t.Errorf("snapshot saves = %d, want 1", saver.saves)
	}
	if len(saver.last) != 2 {
		t.Errorf("snapshot holds %d events, want 2", len(saver.last))
	}
}

func TestRefreshNoChanges(t *testing.T) {
	now := time.Now()
	st := store.New()
	ev := testEvent("same@x", "Unchanged", now.Add(time.Hour))
	st.Replace([]domain.Event{ev})

	saver := &recordingSaver{}
	r := New("@every 1m", time.UTC, &fakeLister{events: []domain.Event{ev}}, st, saver, nil)

	result, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if result.Added+result.Updated+result.Deleted != 0 {
		t.Errorf("result = %+v, want no changes", result)
	}
	if saver.saves != 0 {
		t.Errorf("snapshot saves = %d, want 0 for a no-op pass", saver.saves)
	}
}

func TestRefreshIgnoresZoneRepresentation(t *testing.T) {
	now := time.Now()
	st := store.New()

	// Snapshot-loaded events come back in UTC; the server reports the same
	// instants with the calendar's zone attached.
	local := testEvent("zoned@x", "Design review", now.Add(time.Hour).UTC())
	st.Replace([]domain.Event{local})

	berlin := time.FixedZone("CEST", 2*60*60)
	remote := local
	remote.Start = local.Start.In(berlin)
	remote.End = local.End.In(berlin)

	saver := &recordingSaver{}
	r := New("@every 1m", time.UTC, &fakeLister{events: []domain.Event{remote}}, st, saver, nil)

	result, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("Updated = %d, want 0 for a zone-only difference", result.Updated)
	}
	if saver.saves != 0 {
		t.Errorf("snapshot saves = %d, want 0 for a no-op pass", saver.saves)
	}
}

func TestRefreshKeepsEventsOutsideWindow(t *testing.T) {
	st := store.New()
	past := testEvent("archive@x", "Long gone", time.Now().AddDate(-1, 0, 0))
	st.Replace([]domain.Event{past})

	r := New("@every 1m", time.UTC, &fakeLister{}, st, nil, nil)

	result, err := r.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if result.Deleted != 0 {
		t.Errorf("Deleted = %d, want 0 for an event outside the sync window", result.Deleted)
	}
	if _, ok := st.Get("archive@x"); !ok {
		t.Error("event outside the sync window was removed")
	}
}

func TestRefreshPropagatesListError(t *testing.T) {
	st := store.New()
	r := New("@every 1m", time.UTC, &fakeLister{err: context.DeadlineExceeded}, st, nil, nil)

	if _, err := r.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() succeeded with a failing client")
	}
}
