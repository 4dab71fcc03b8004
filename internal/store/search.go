package store

import (
	"strings"
	"sync"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

// DefaultSearchDelay is the quiet period rapid input is coalesced over.
const DefaultSearchDelay = 300 * time.Millisecond

// Searcher debounces text search over the store. Rapid successive queries
// coalesce into a single run after a quiet period, and a run whose query has
// been superseded by a newer one delivers nothing.
type Searcher struct {
	store *Store
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
	gen   int
}

// NewSearcher builds a debounced searcher. A non-positive delay falls back
// to the default.
func NewSearcher(store *Store, delay time.Duration) *Searcher {
	if delay <= 0 {
		delay = DefaultSearchDelay
	}
	return &Searcher{store: store, delay: delay}
}

// Search schedules query and delivers its results to deliver after the quiet
// period, unless a newer Search call supersedes it first. deliver runs on the
// timer goroutine while the searcher's lock is held, so once a Search call
// returns no older query can still deliver. deliver must not call back into
// the Searcher.
func (s *Searcher) Search(query string, deliver func([]domain.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	gen := s.gen

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, func() {
		results := s.store.Match(query)

		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.gen {
			// A newer query was issued while this one ran; its results
			// must not reach the caller out of order.
			return
		}
		deliver(results)
	})
}

// Match runs the query synchronously against the current store contents,
// matching case-insensitively on title, description and location. An empty
// query matches everything.
func (s *Store) Match(query string) []domain.Event {
	q := strings.ToLower(strings.TrimSpace(query))

	var out []domain.Event
	for _, ev := range s.Events() {
		if q == "" || eventMatches(&ev, q) {
			out = append(out, ev)
		}
	}
	return out
}

func eventMatches(ev *domain.Event, q string) bool {
	return strings.Contains(strings.ToLower(ev.Title), q) ||
		strings.Contains(strings.ToLower(ev.Description), q) ||
		strings.Contains(strings.ToLower(ev.Location), q)
}
