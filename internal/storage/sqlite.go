// Package storage persists event snapshots to sqlite so the grid can render
// immediately on startup, before the first server round trip completes.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/osmakov/calgrid/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Snapshot struct {
	db *sql.DB
}

func Open(dbPath string) (*Snapshot, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Snapshot{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Snapshot) Close() error {
	return s.db.Close()
}

func (s *Snapshot) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			calendar_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			location TEXT DEFAULT '',
			url TEXT DEFAULT '',
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			all_day INTEGER DEFAULT 0,
			timezone TEXT DEFAULT '',
			recurrence_rule TEXT DEFAULT '',
			recurrence_until DATETIME,
			occurrence_start_at DATETIME,
			creator TEXT DEFAULT '',
			attendees TEXT DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_calendar_id ON events(calendar_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

// Save replaces the stored snapshot with the given events in one
// transaction. A reader never observes a half-written snapshot.
func (s *Snapshot) Save(events []domain.Event) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM events`); err != nil {
		return fmt.Errorf("clear events: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO events
		(id, calendar_id, title, description, location, url,
		 start_at, end_at, all_day, timezone,
		 recurrence_rule, recurrence_until, occurrence_start_at,
		 creator, attendees)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range events {
		ev := &events[i]
		attendees, err := json.Marshal(ev.Attendees)
		if err != nil {
			return fmt.Errorf("marshal attendees for %s: %w", ev.ID, err)
		}
		_, err = stmt.Exec(
			ev.ID, ev.CalendarID, ev.Title, ev.Description, ev.Location, ev.URL,
			ev.Start.UTC(), ev.End.UTC(), boolToInt(ev.AllDay), ev.Timezone,
			ev.RecurrenceRule, nullableTime(ev.RecurrenceUntil), nullableTime(ev.OccurrenceStartAt),
			ev.Creator, string(attendees),
		)
		if err != nil {
			return fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Load returns the stored snapshot ordered by start time.
func (s *Snapshot) Load() ([]domain.Event, error) {
	rows, err := s.db.Query(`SELECT
		id, calendar_id, title, description, location, url,
		start_at, end_at, all_day, timezone,
		recurrence_rule, recurrence_until, occurrence_start_at,
		creator, attendees
		FROM events ORDER BY start_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var ev domain.Event
		var allDay int
		var until, occurrence sql.NullTime
		var attendees string

		err := rows.Scan(
			&ev.ID, &ev.CalendarID, &ev.Title, &ev.Description, &ev.Location, &ev.URL,
			&ev.Start, &ev.End, &allDay, &ev.Timezone,
			&ev.RecurrenceRule, &until, &occurrence,
			&ev.Creator, &attendees,
		)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}

		ev.AllDay = allDay != 0
		if until.Valid {
			t := until.Time.UTC()
			ev.RecurrenceUntil = &t
		}
		if occurrence.Valid {
			t := occurrence.Time.UTC()
			ev.OccurrenceStartAt = &t
		}
		if attendees != "" && attendees != "[]" {
			if err := json.Unmarshal([]byte(attendees), &ev.Attendees); err != nil {
				return nil, fmt.Errorf("unmarshal attendees for %s: %w", ev.ID, err)
			}
		}

		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
