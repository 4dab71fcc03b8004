// Package caldav implements the engine's server collaborator over CalDAV.
// The engine treats it as a black box behind the service.Client interface:
// it lists and mutates events, answers free/busy queries, and never touches
// the local store itself.
package caldav

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/osmakov/calgrid/internal/domain"
)

// Client is a CalDAV client for one account spanning one or more calendar
// collections.
type Client struct {
	baseURL   string
	username  string
	password  string
	userEmail string
	sources   []CalendarSource

	client *caldav.Client

	mu      sync.Mutex
	objects map[string]objectRef // event series UID -> object location
}

// objectRef locates the .ics object an event lives in.
type objectRef struct {
	calendarID string
	path       string
}

// NewClient creates a CalDAV client. userEmail identifies the account's own
// attendee entry for RSVP updates.
func NewClient(baseURL, username, password, userEmail string, sources []CalendarSource) *Client {
	return &Client{
		baseURL:   baseURL,
		username:  username,
		password:  password,
		userEmail: strings.ToLower(userEmail),
		sources:   sources,
		objects:   make(map[string]objectRef),
	}
}

// IsConfigured returns true if the client has credentials.
func (c *Client) IsConfigured() bool {
	return c.baseURL != "" && c.username != "" && c.password != ""
}

// connect establishes the CalDAV session lazily.
func (c *Client) connect() (*caldav.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: c.username, password: c.password},
		Timeout:   30 * time.Second,
	}

	client, err := caldav.NewClient(httpClient, c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to CalDAV: %w", err)
	}

	c.client = client
	return client, nil
}

// basicAuthTransport adds Basic Auth to HTTP requests.
type basicAuthTransport struct {
	username string
	password string
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	return http.DefaultTransport.RoundTrip(req)
}

// DiscoverCalendars returns the calendars available on the server. Server
// collections not present in the configured sources come back with default
// metadata and a personal context.
func (c *Client) DiscoverCalendars(ctx context.Context) ([]domain.Calendar, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("find principal: %w", err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("find home set: %w", err)
	}
	cals, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("find calendars: %w", err)
	}

	var out []domain.Calendar
	for _, cal := range cals {
		if src := c.sourceByPath(cal.Path); src != nil {
			out = append(out, src.Calendar)
			continue
		}
		out = append(out, domain.Calendar{
			ID:          cal.Path,
			Name:        cal.Name,
			Context:     domain.ContextPersonal,
			IsDeletable: true,
		})
	}
	return out, nil
}

// ListEvents fetches all events intersecting [from, to) from the calendars
// matching the given context and calendar-ID filters. Empty filters match
// everything.
func (c *Client) ListEvents(ctx context.Context, from, to time.Time, contexts []domain.ContextKind, calendarIDs []string) ([]domain.Event, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	var events []domain.Event
	for _, src := range c.filteredSources(contexts, calendarIDs) {
		objects, err := queryRange(ctx, client, src.Path, from, to)
		if err != nil {
			return nil, fmt.Errorf("query calendar %s: %w", src.Calendar.ID, err)
		}

		for i := range objects {
			obj := &objects[i]
			for _, comp := range obj.Data.Children {
				if comp.Name != ical.CompEvent {
					continue
				}
				ev, err := parseComponent(comp, src.Calendar.ID)
				if err != nil {
					continue // skip malformed components, keep the rest
				}
				c.remember(seriesUID(ev.ID), objectRef{calendarID: src.Calendar.ID, path: obj.Path})
				events = append(events, ev)
			}
		}
	}
	return events, nil
}

// CreateEvent writes a new event and returns the confirmed value with its
// server identity.
func (c *Client) CreateEvent(ctx context.Context, draft domain.Draft) (*domain.Event, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	src := c.sourceByID(draft.CalendarID)
	if src == nil {
		return nil, fmt.Errorf("unknown calendar %q", draft.CalendarID)
	}

	uid := uuid.NewString() + "@calgrid"
	path := objectPath(src.Path, uid)
	cal := newCalendar(buildComponent(uid, &draft, nil))

	if _, err := client.PutCalendarObject(ctx, path, cal); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	c.remember(uid, objectRef{calendarID: src.Calendar.ID, path: path})

	ev := draftToEvent(uid, &draft)
	ev.Creator = c.userEmail
	return ev, nil
}

// UpdateEvent applies a resolved write directive. A whole-series (or plain)
// update replaces the root component in place, keeping any existing
// occurrence exceptions; a THIS-scoped update upserts an exception component
// carrying the occurrence's RECURRENCE-ID, leaving the root untouched.
func (c *Client) UpdateEvent(ctx context.Context, id string, d domain.WriteDirective) (*domain.Event, error) {
	if d.Fields == nil {
		return nil, fmt.Errorf("update directive without fields")
	}
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	uid := seriesUID(id)
	ref, obj, err := c.fetchObject(ctx, client, uid)
	if err != nil {
		return nil, err
	}

	var kept []*ical.Component
	var exdates []ical.Prop
	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			kept = append(kept, comp)
			continue
		}
		switch d.EditMode {
		case domain.EditModeThis:
			// Drop a previously materialized exception for the same
			// occurrence; everything else survives.
			if !isRoot(comp) && sameOccurrence(comp, d.OccurrenceStartAt) {
				continue
			}
			kept = append(kept, comp)
		default:
			if isRoot(comp) {
				// Replaced below. The old root's EXDATEs carry over so
				// cancelled occurrences stay cancelled across the edit.
				exdates = append(exdates, comp.Props.Values(ical.PropExceptionDates)...)
				continue
			}
			kept = append(kept, comp)
		}
	}

	replacement := buildComponent(uid, d.Fields, d.OccurrenceStartAt)
	for i := range exdates {
		prop := exdates[i]
		replacement.Props.Add(&prop)
	}
	kept = append(kept, replacement)

	if _, err := client.PutCalendarObject(ctx, ref.path, newCalendar(kept...)); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}

	ev := draftToEvent(uid, d.Fields)
	ev.OccurrenceStartAt = d.OccurrenceStartAt
	ev.ID = eventID(uid, d.OccurrenceStartAt)
	ev.CalendarID = ref.calendarID
	return ev, nil
}

// DeleteEvent applies a resolved delete directive. A whole-series delete
// removes the object; a THIS-scoped delete adds an EXDATE for the occurrence
// to the series root and drops any override component for it, marking that
// single instance cancelled without touching the series definition.
func (c *Client) DeleteEvent(ctx context.Context, id string, d domain.WriteDirective) error {
	client, err := c.connect()
	if err != nil {
		return err
	}

	uid := seriesUID(id)
	ref, obj, err := c.fetchObject(ctx, client, uid)
	if err != nil {
		return err
	}

	if d.EditMode != domain.EditModeThis || d.OccurrenceStartAt == nil {
		if err := client.RemoveAll(ctx, ref.path); err != nil {
			return fmt.Errorf("delete event: %w", err)
		}
		c.forget(uid)
		return nil
	}

	var kept []*ical.Component
	for _, comp := range obj.Data.Children {
		if comp.Name == ical.CompEvent {
			// A materialized override for the cancelled occurrence goes
			// away with it, or ListEvents would bring it back.
			if !isRoot(comp) && sameOccurrence(comp, d.OccurrenceStartAt) {
				continue
			}
			if isRoot(comp) {
				prop := ical.NewProp(ical.PropExceptionDates)
				prop.Value = d.OccurrenceStartAt.UTC().Format(utcStampLayout)
				comp.Props.Add(prop)
			}
		}
		kept = append(kept, comp)
	}

	if _, err := client.PutCalendarObject(ctx, ref.path, newCalendar(kept...)); err != nil {
		return fmt.Errorf("delete occurrence: %w", err)
	}
	return nil
}

// FreeBusy returns busy blocks for the given calendars in [from, to). The
// webdav client does not expose the free-busy REPORT, so busy time is
// projected from the calendars' events; event details beyond the interval do
// not leave this method.
func (c *Client) FreeBusy(ctx context.Context, from, to time.Time, calendarIDs []string) ([]domain.BusyInterval, error) {
	events, err := c.ListEvents(ctx, from, to, nil, calendarIDs)
	if err != nil {
		return nil, err
	}

	var busy []domain.BusyInterval
	for _, ev := range events {
		if ev.AllDay {
			continue
		}
		busy = append(busy, domain.BusyInterval{
			Start:      ev.Start,
			End:        ev.End,
			EventID:    ev.ID,
			CalendarID: ev.CalendarID,
		})
	}
	return busy, nil
}

// CheckConflicts is the server-side pre-check: it returns the events on the
// given calendars that overlap [from, to).
func (c *Client) CheckConflicts(ctx context.Context, from, to time.Time, calendarIDs []string) ([]domain.Event, error) {
	events, err := c.ListEvents(ctx, from, to, nil, calendarIDs)
	if err != nil {
		return nil, err
	}

	candidate := domain.Interval{Start: from, End: to}
	var conflicting []domain.Event
	for _, ev := range events {
		if !ev.AllDay && candidate.Overlaps(ev.Interval()) {
			conflicting = append(conflicting, ev)
		}
	}
	return conflicting, nil
}

// Rsvp updates the account's own attendee response on an event and returns
// the updated event.
func (c *Client) Rsvp(ctx context.Context, eventID string, response domain.ResponseStatus) (*domain.Event, error) {
	client, err := c.connect()
	if err != nil {
		return nil, err
	}

	uid := seriesUID(eventID)
	ref, obj, err := c.fetchObject(ctx, client, uid)
	if err != nil {
		return nil, err
	}

	var updated *ical.Component
	for _, comp := range obj.Data.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		attendees := comp.Props.Values(ical.PropAttendee)
		for i := range attendees {
			email := strings.TrimPrefix(strings.ToLower(attendees[i].Value), "mailto:")
			if email != c.userEmail {
				continue
			}
			if attendees[i].Params == nil {
				attendees[i].Params = make(ical.Params)
			}
			attendees[i].Params.Set(paramPartStat, string(response))
			updated = comp
		}
	}
	if updated == nil {
		return nil, fmt.Errorf("rsvp: %s is not an attendee of %s", c.userEmail, eventID)
	}

	if _, err := client.PutCalendarObject(ctx, ref.path, obj.Data); err != nil {
		return nil, fmt.Errorf("rsvp: %w", err)
	}

	ev, err := parseComponent(updated, ref.calendarID)
	if err != nil {
		return nil, fmt.Errorf("rsvp: %w", err)
	}
	return &ev, nil
}

// fetchObject resolves and fetches the .ics object holding the given UID.
// Objects seen during a list are found directly; otherwise every configured
// source is probed at the conventional path.
func (c *Client) fetchObject(ctx context.Context, client *caldav.Client, uid string) (objectRef, *caldav.CalendarObject, error) {
	c.mu.Lock()
	ref, ok := c.objects[uid]
	c.mu.Unlock()

	if ok {
		obj, err := client.GetCalendarObject(ctx, ref.path)
		if err != nil {
			return objectRef{}, nil, fmt.Errorf("get event %s: %w", uid, err)
		}
		return ref, obj, nil
	}

	for _, src := range c.sources {
		path := objectPath(src.Path, uid)
		obj, err := client.GetCalendarObject(ctx, path)
		if err != nil {
			continue
		}
		ref = objectRef{calendarID: src.Calendar.ID, path: path}
		c.remember(uid, ref)
		return ref, obj, nil
	}
	return objectRef{}, nil, fmt.Errorf("event %s not found on any calendar", uid)
}

func (c *Client) remember(uid string, ref objectRef) {
	c.mu.Lock()
	c.objects[uid] = ref
	c.mu.Unlock()
}

func (c *Client) forget(uid string) {
	c.mu.Lock()
	delete(c.objects, uid)
	c.mu.Unlock()
}

func (c *Client) sourceByID(id string) *CalendarSource {
	for i := range c.sources {
		if c.sources[i].Calendar.ID == id {
			return &c.sources[i]
		}
	}
	return nil
}

func (c *Client) sourceByPath(path string) *CalendarSource {
	for i := range c.sources {
		if c.sources[i].Path == path {
			return &c.sources[i]
		}
	}
	return nil
}

func (c *Client) filteredSources(contexts []domain.ContextKind, calendarIDs []string) []CalendarSource {
	var out []CalendarSource
	for _, src := range c.sources {
		if len(contexts) > 0 && !containsContext(contexts, src.Calendar.Context) {
			continue
		}
		if len(calendarIDs) > 0 && !containsString(calendarIDs, src.Calendar.ID) {
			continue
		}
		out = append(out, src)
	}
	return out
}

func containsContext(list []domain.ContextKind, v domain.ContextKind) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func queryRange(ctx context.Context, client *caldav.Client, calendarPath string, from, to time.Time) ([]caldav.CalendarObject, error) {
	query := &caldav.CalendarQuery{
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{
				{
					Name:  "VEVENT",
					Start: from,
					End:   to,
				},
			},
		},
	}
	return client.QueryCalendar(ctx, calendarPath, query)
}

func objectPath(calendarPath, uid string) string {
	if !strings.HasSuffix(calendarPath, "/") {
		calendarPath += "/"
	}
	return calendarPath + uid + ".ics"
}

// draftToEvent materializes the confirmed event for a successful write.
func draftToEvent(uid string, d *domain.Draft) *domain.Event {
	return &domain.Event{
		ID:              uid,
		CalendarID:      d.CalendarID,
		Title:           d.Title,
		Description:     d.Description,
		Location:        d.Location,
		URL:             d.URL,
		Start:           d.Start,
		End:             d.End,
		AllDay:          d.AllDay,
		Timezone:        d.Timezone,
		RecurrenceRule:  d.RecurrenceRule,
		RecurrenceUntil: d.RecurrenceUntil,
		Attendees:       d.Attendees,
	}
}
