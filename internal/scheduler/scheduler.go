// Package scheduler keeps the local event store current. A cron job pulls
// the server's view on a fixed cadence, diffs it against the store and
// applies the difference as push notifications, so a change made from any
// other client shows up on the grid without user action.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/osmakov/calgrid/internal/domain"
	"github.com/osmakov/calgrid/internal/store"
)

// Window the refresher keeps in sync, relative to now.
const (
	lookBehind = 7 * 24 * time.Hour
	lookAhead  = 3 // months
)

type EventLister interface {
	ListEvents(ctx context.Context, from, to time.Time, contexts []domain.ContextKind, calendarIDs []string) ([]domain.Event, error)
}

type SnapshotSaver interface {
	Save([]domain.Event) error
}

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Added   int
	Updated int
	Deleted int
}

type Refresher struct {
	cron     *cron.Cron
	spec     string
	client   EventLister
	store    *store.Store
	snapshot SnapshotSaver
	notify   func(domain.Notification)
}

// New creates a refresher firing on the given cron spec in the given
// timezone. snapshot may be nil to skip persistence; notify may be nil.
func New(spec string, location *time.Location, client EventLister, st *store.Store, snapshot SnapshotSaver, notify func(domain.Notification)) *Refresher {
	return &Refresher{
		cron:     cron.New(cron.WithLocation(location)),
		spec:     spec,
		client:   client,
		store:    st,
		snapshot: snapshot,
		notify:   notify,
	}
}

// Start registers the refresh job and blocks until ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	if _, err := r.cron.AddFunc(r.spec, func() { r.refreshJob(ctx) }); err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}

	r.cron.Start()
	log.Printf("Refresher started (spec: %s)", r.spec)

	<-ctx.Done()
	return nil
}

func (r *Refresher) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("Refresher stopped")
}

func (r *Refresher) refreshJob(ctx context.Context) {
	if _, err := r.Refresh(ctx); err != nil {
		log.Printf("Error refreshing events: %v", err)
	}
}

// Refresh pulls the server's events for the sync window and reconciles the
// store with them. Events unknown locally arrive as created pushes, changed
// ones as updated, and local events the server no longer returns as
// deleted. The snapshot is rewritten after a pass that changed anything.
func (r *Refresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	from := time.Now().Truncate(24 * time.Hour).Add(-lookBehind)
	to := from.AddDate(0, lookAhead, 0)

	remote, err := r.client.ListEvents(ctx, from, to, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	result := &RefreshResult{}
	seen := make(map[string]bool, len(remote))

	for i := range remote {
		ev := remote[i]
		seen[ev.ID] = true

		local, exists := r.store.Get(ev.ID)
		switch {
		case !exists:
			r.push(domain.Notification{
				EntityKind: domain.EntityEvent,
				Action:     domain.ChangeCreated,
				Event:      &ev,
			})
			result.Added++
		case eventChanged(local, ev):
			r.push(domain.Notification{
				EntityKind: domain.EntityEvent,
				Action:     domain.ChangeUpdated,
				Event:      &ev,
			})
			result.Updated++
		}
	}

	// Local events inside the window the server stopped returning are gone.
	for _, local := range r.store.Events() {
		if seen[local.ID] {
			continue
		}
		if local.End.Before(from) || !local.Start.Before(to) {
			continue
		}
		ev := local
		r.push(domain.Notification{
			EntityKind: domain.EntityEvent,
			Action:     domain.ChangeDeleted,
			Event:      &ev,
		})
		result.Deleted++
	}

	if r.snapshot != nil && result.Added+result.Updated+result.Deleted > 0 {
		if err := r.snapshot.Save(r.store.Events()); err != nil {
			log.Printf("Error saving snapshot: %v", err)
		}
	}

	return result, nil
}

// eventChanged compares the fields the server owns. Instants are compared
// with time.Time.Equal so a snapshot-loaded event and its server copy do not
// diff on zone representation alone.
func eventChanged(local, remote domain.Event) bool {
	if local.CalendarID != remote.CalendarID ||
		local.Title != remote.Title ||
		local.Description != remote.Description ||
		local.Location != remote.Location ||
		local.URL != remote.URL ||
		local.AllDay != remote.AllDay ||
		local.Timezone != remote.Timezone ||
		local.RecurrenceRule != remote.RecurrenceRule ||
		local.Creator != remote.Creator {
		return true
	}
	if !local.Start.Equal(remote.Start) || !local.End.Equal(remote.End) {
		return true
	}
	if !timePtrEqual(local.RecurrenceUntil, remote.RecurrenceUntil) ||
		!timePtrEqual(local.OccurrenceStartAt, remote.OccurrenceStartAt) {
		return true
	}
	if len(local.Attendees) != len(remote.Attendees) {
		return true
	}
	for i := range local.Attendees {
		if local.Attendees[i] != remote.Attendees[i] {
			return true
		}
	}
	return false
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (r *Refresher) push(n domain.Notification) {
	r.store.ApplyPush(n)
	if r.notify != nil {
		r.notify(n)
	}
}
