package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/osmakov/calgrid/internal/domain"
)

const (
	prodID = "-//calgrid//CalDAV//EN"

	paramCommonName = "CN"
	paramPartStat   = "PARTSTAT"
	paramTimezoneID = "TZID"

	utcStampLayout  = "20060102T150405Z"
	occurrenceIDSep = "#"
)

// CalendarSource binds a calendar's engine-facing metadata to its CalDAV
// collection path.
type CalendarSource struct {
	Calendar domain.Calendar
	Path     string
}

// eventID builds the client-side identity for a parsed VEVENT. The series
// root is identified by its UID; a materialized occurrence (a VEVENT with a
// RECURRENCE-ID) gets the UID suffixed with the occurrence stamp so root and
// exception never collide in the store.
func eventID(uid string, occurrence *time.Time) string {
	if occurrence == nil {
		return uid
	}
	return uid + occurrenceIDSep + occurrence.UTC().Format(utcStampLayout)
}

// seriesUID strips an occurrence suffix back to the underlying object UID.
func seriesUID(id string) string {
	if i := strings.Index(id, occurrenceIDSep); i >= 0 {
		return id[:i]
	}
	return id
}

// parseComponent maps one VEVENT onto the domain model.
func parseComponent(comp *ical.Component, calendarID string) (domain.Event, error) {
	ev := domain.Event{CalendarID: calendarID}

	uidProp := comp.Props.Get(ical.PropUID)
	if uidProp == nil || uidProp.Value == "" {
		return ev, fmt.Errorf("event without UID")
	}
	uid := uidProp.Value

	if prop := comp.Props.Get(ical.PropSummary); prop != nil {
		ev.Title = prop.Value
	}
	if prop := comp.Props.Get(ical.PropDescription); prop != nil {
		ev.Description = prop.Value
	}
	if prop := comp.Props.Get(ical.PropLocation); prop != nil {
		ev.Location = prop.Value
	}
	if prop := comp.Props.Get(ical.PropURL); prop != nil {
		ev.URL = prop.Value
	}

	if prop := comp.Props.Get(ical.PropDateTimeStart); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.Start = t
		}
		if prop.Params.Get(ical.ParamValue) == string(ical.ValueDate) {
			ev.AllDay = true
		}
		if tzid := prop.Params.Get(paramTimezoneID); tzid != "" {
			ev.Timezone = tzid
		}
	}
	if prop := comp.Props.Get(ical.PropDateTimeEnd); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.End = t
		}
	}
	if ev.End.IsZero() && !ev.Start.IsZero() {
		// Events without DTEND occupy a default hour, a day when all-day.
		if ev.AllDay {
			ev.End = ev.Start.AddDate(0, 0, 1)
		} else {
			ev.End = ev.Start.Add(time.Hour)
		}
	}

	if prop := comp.Props.Get(ical.PropRecurrenceRule); prop != nil {
		ev.RecurrenceRule = prop.Value
		if until, ok := untilFromRule(prop.Value); ok {
			ev.RecurrenceUntil = &until
		}
	}
	if prop := comp.Props.Get(ical.PropRecurrenceID); prop != nil {
		if t, err := prop.DateTime(time.UTC); err == nil {
			ev.OccurrenceStartAt = &t
		}
	}

	if prop := comp.Props.Get(ical.PropOrganizer); prop != nil {
		ev.Creator = strings.TrimPrefix(strings.ToLower(prop.Value), "mailto:")
	}
	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		a := domain.Attendee{
			Email:    strings.TrimPrefix(strings.ToLower(prop.Value), "mailto:"),
			Name:     prop.Params.Get(paramCommonName),
			Response: domain.ResponseNeedsAction,
		}
		if st := prop.Params.Get(paramPartStat); st != "" {
			a.Response = domain.ResponseStatus(st)
		}
		ev.Attendees = append(ev.Attendees, a)
	}

	ev.ID = eventID(uid, ev.OccurrenceStartAt)
	return ev, nil
}

// untilFromRule extracts an UNTIL clause from an RRULE value, when present.
// The rule stays opaque otherwise.
func untilFromRule(rule string) (time.Time, bool) {
	for _, part := range strings.Split(rule, ";") {
		if !strings.HasPrefix(strings.ToUpper(part), "UNTIL=") {
			continue
		}
		raw := part[len("UNTIL="):]
		for _, layout := range []string{utcStampLayout, "20060102T150405", "20060102"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// buildComponent renders a draft as a VEVENT. occurrence, when non-nil,
// marks the component as a single-occurrence exception via RECURRENCE-ID.
func buildComponent(uid string, d *domain.Draft, occurrence *time.Time) *ical.Component {
	vevent := ical.NewEvent()
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, d.Title)

	if d.Description != "" {
		vevent.Props.SetText(ical.PropDescription, d.Description)
	}
	if d.Location != "" {
		vevent.Props.SetText(ical.PropLocation, d.Location)
	}
	if d.URL != "" {
		vevent.Props.SetText(ical.PropURL, d.URL)
	}

	if d.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, d.Start)
		vevent.Props.SetDate(ical.PropDateTimeEnd, d.End)
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, d.Start.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, d.End.UTC())
	}

	if d.RecurrenceRule != "" {
		vevent.Props.SetText(ical.PropRecurrenceRule, ruleWithUntil(d.RecurrenceRule, d.RecurrenceUntil))
	}
	if occurrence != nil {
		vevent.Props.SetDateTime(ical.PropRecurrenceID, occurrence.UTC())
	}

	for _, a := range d.Attendees {
		prop := ical.NewProp(ical.PropAttendee)
		prop.Value = "mailto:" + a.Email
		if a.Name != "" {
			prop.Params.Set(paramCommonName, a.Name)
		}
		response := a.Response
		if response == "" {
			response = domain.ResponseNeedsAction
		}
		prop.Params.Set(paramPartStat, string(response))
		vevent.Props.Add(prop)
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	return vevent.Component
}

// ruleWithUntil appends an UNTIL clause to a rule that lacks one when a
// termination instant is set. Rules already carrying UNTIL are left alone.
func ruleWithUntil(rule string, until *time.Time) string {
	if until == nil || strings.Contains(strings.ToUpper(rule), "UNTIL=") {
		return rule
	}
	return rule + ";UNTIL=" + until.UTC().Format(utcStampLayout)
}

// newCalendar wraps components into a VCALENDAR ready to PUT.
func newCalendar(components ...*ical.Component) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)
	cal.Children = append(cal.Children, components...)
	return cal
}

// isRoot reports whether a VEVENT is the series root (no RECURRENCE-ID).
func isRoot(comp *ical.Component) bool {
	return comp.Props.Get(ical.PropRecurrenceID) == nil
}

// sameOccurrence reports whether an exception VEVENT's RECURRENCE-ID matches
// the given occurrence start.
func sameOccurrence(comp *ical.Component, occurrence *time.Time) bool {
	if occurrence == nil {
		return false
	}
	prop := comp.Props.Get(ical.PropRecurrenceID)
	if prop == nil {
		return false
	}
	at, err := prop.DateTime(time.UTC)
	if err != nil {
		return false
	}
	return at.UTC().Equal(occurrence.UTC())
}
