package domain

import (
	"errors"
	"time"
)

// ResponseStatus is an attendee's reply to an invitation.
type ResponseStatus string

const (
	ResponseNeedsAction ResponseStatus = "NEEDS-ACTION"
	ResponseAccepted    ResponseStatus = "ACCEPTED"
	ResponseDeclined    ResponseStatus = "DECLINED"
	ResponseTentative   ResponseStatus = "TENTATIVE"
)

// Attendee is a person invited to an event.
type Attendee struct {
	Email    string
	Name     string
	Response ResponseStatus
}

// Event is the client-side view of a server-authoritative calendar event.
// When OccurrenceStartAt is set the value is a materialized single occurrence
// of a recurring series, not the series root.
type Event struct {
	ID          string
	CalendarID  string
	Title       string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	// Timezone is the IANA zone label the event was authored in. Start/End
	// already carry their own location; the label survives round trips.
	Timezone string

	// RecurrenceRule is an opaque, externally-validated RRULE value.
	// Empty for one-off events.
	RecurrenceRule  string
	RecurrenceUntil *time.Time

	OccurrenceStartAt *time.Time

	Attendees []Attendee
	Creator   string
}

// IsRecurring reports whether the event carries a recurrence rule.
func (e *Event) IsRecurring() bool {
	return e.RecurrenceRule != ""
}

// IsOccurrence reports whether the event is a materialized single occurrence
// of a series rather than the series root.
func (e *Event) IsOccurrence() bool {
	return e.OccurrenceStartAt != nil
}

// Interval returns the event's time span.
func (e *Event) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

// Draft is the mutable shape of an event before it has a server identity.
type Draft struct {
	CalendarID  string
	Title       string
	Description string
	Location    string
	URL         string

	Start  time.Time
	End    time.Time
	AllDay bool

	Timezone string

	RecurrenceRule  string
	RecurrenceUntil *time.Time

	Attendees []Attendee
}

var (
	ErrEmptyTitle      = errors.New("event title is required")
	ErrNoCalendar      = errors.New("event calendar is required")
	ErrInvalidInterval = errors.New("event end must be after start")
)

// Validate checks the draft's boundary invariants. Zero-duration events are
// disallowed: the end must be strictly after the start.
func (d *Draft) Validate() error {
	if d.Title == "" {
		return ErrEmptyTitle
	}
	if d.CalendarID == "" {
		return ErrNoCalendar
	}
	if d.Start.IsZero() || d.End.IsZero() || !d.End.After(d.Start) {
		return ErrInvalidInterval
	}
	return nil
}

// Interval returns the draft's time span.
func (d *Draft) Interval() Interval {
	return Interval{Start: d.Start, End: d.End}
}

// EditScope selects whether a write to a recurring event targets one
// occurrence or the whole series. The choice is made outside the engine
// (typically a blocking user prompt); the engine only consumes the result.
type EditScope int

const (
	ScopeEntireSeries EditScope = iota
	ScopeThisOccurrence
)

// EditMode is the marker carried on a write directive so the server knows
// whether to synthesize an occurrence exception.
type EditMode string

const (
	EditModeAll  EditMode = "ALL"
	EditModeThis EditMode = "THIS"
)

// WriteAction is the kind of mutation a directive describes.
type WriteAction int

const (
	ActionUpdate WriteAction = iota
	ActionDelete
)

// WriteDirective is a fully resolved write request: which event, which
// action, whether it is scoped to a single occurrence, and (for updates) the
// replacement fields. Directives are built by the recurrence resolver and
// handed to the transport client untouched.
type WriteDirective struct {
	EventID  string
	Action   WriteAction
	EditMode EditMode

	// OccurrenceStartAt is set only for EditModeThis: the original start of
	// the targeted occurrence.
	OccurrenceStartAt *time.Time

	// Fields carries the updated event fields for ActionUpdate.
	Fields *Draft
}
