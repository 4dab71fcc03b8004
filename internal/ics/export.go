// Package ics handles iCalendar interchange with other tools. Export renders
// the engine's events through the strict encoder; Import accepts files from
// arbitrary producers and is deliberately tolerant of lines it does not
// understand.
package ics

import (
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/osmakov/calgrid/internal/domain"
)

const (
	prodID         = "-//calgrid//ICS//EN"
	utcStampLayout = "20060102T150405Z"
)

// Export writes events as a single VCALENDAR stream.
func Export(w io.Writer, events []domain.Event) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, prodID)

	for i := range events {
		cal.Children = append(cal.Children, exportComponent(&events[i]))
	}

	return ical.NewEncoder(w).Encode(cal)
}

func exportComponent(ev *domain.Event) *ical.Component {
	vevent := ical.NewEvent()

	uid := ev.ID
	if i := strings.Index(uid, "#"); i >= 0 {
		uid = uid[:i]
	}
	vevent.Props.SetText(ical.PropUID, uid)
	vevent.Props.SetText(ical.PropSummary, ev.Title)

	if ev.Description != "" {
		vevent.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		vevent.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.URL != "" {
		vevent.Props.SetText(ical.PropURL, ev.URL)
	}

	if ev.AllDay {
		vevent.Props.SetDate(ical.PropDateTimeStart, ev.Start)
		vevent.Props.SetDate(ical.PropDateTimeEnd, ev.End)
	} else {
		vevent.Props.SetDateTime(ical.PropDateTimeStart, ev.Start.UTC())
		vevent.Props.SetDateTime(ical.PropDateTimeEnd, ev.End.UTC())
	}

	if ev.RecurrenceRule != "" {
		vevent.Props.SetText(ical.PropRecurrenceRule, ev.RecurrenceRule)
	}
	if ev.OccurrenceStartAt != nil {
		vevent.Props.SetDateTime(ical.PropRecurrenceID, ev.OccurrenceStartAt.UTC())
	}

	vevent.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	return vevent.Component
}
