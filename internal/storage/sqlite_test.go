package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

func openTestSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestSnapshot(t)

	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	occ := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	events := []domain.Event{
		{
			ID:         "plain@calgrid",
			CalendarID: "personal",
			Title:      "Dentist",
			Location:   "Clinic",
			Start:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			End:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		},
		{
			ID:                "series@calgrid#20260309T100000Z",
			CalendarID:        "work",
			Title:             "Standup",
			Start:             time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC),
			End:               time.Date(2026, 3, 9, 10, 15, 0, 0, time.UTC),
			RecurrenceRule:    "FREQ=WEEKLY;BYDAY=MO",
			RecurrenceUntil:   &until,
			OccurrenceStartAt: &occ,
			Attendees: []domain.Attendee{
				{Email: "ana@example.com", Name: "Ana", Response: domain.ResponseAccepted},
			},
		},
	}

	if err := s.Save(events); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("len(loaded) = %d, want 2", len(loaded))
	}

	plain := loaded[0]
	if plain.ID != "plain@calgrid" || plain.Title != "Dentist" || plain.Location != "Clinic" {
		t.Errorf("plain event = %+v, want saved fields back", plain)
	}
	if plain.RecurrenceUntil != nil || plain.OccurrenceStartAt != nil {
		t.Error("plain event has recurrence fields, want nil")
	}

	series := loaded[1]
	if series.RecurrenceUntil == nil || !series.RecurrenceUntil.Equal(until) {
		t.Errorf("RecurrenceUntil = %v, want %v", series.RecurrenceUntil, until)
	}
	if series.OccurrenceStartAt == nil || !series.OccurrenceStartAt.Equal(occ) {
		t.Errorf("OccurrenceStartAt = %v, want %v", series.OccurrenceStartAt, occ)
	}
	if len(series.Attendees) != 1 || series.Attendees[0].Response != domain.ResponseAccepted {
		t.Errorf("Attendees = %+v, want saved attendee back", series.Attendees)
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	s := openTestSnapshot(t)

	first := []domain.Event{{
		ID:         "old@calgrid",
		CalendarID: "personal",
		Title:      "Old",
		Start:      time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}}
	second := []domain.Event{{
		ID:         "new@calgrid",
		CalendarID: "personal",
		Title:      "New",
		Start:      time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		End:        time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
	}}

	if err := s.Save(first); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := s.Save(second); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "new@calgrid" {
		t.Errorf("loaded = %+v, want only the replacement event", loaded)
	}
}

func TestLoadEmptySnapshot(t *testing.T) {
	s := openTestSnapshot(t)

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("len(loaded) = %d, want 0", len(loaded))
	}
}
