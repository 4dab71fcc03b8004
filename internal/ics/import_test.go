package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

const sampleICS = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//other tool//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:one@example.com\r\n" +
	"SUMMARY:Team lunch\\, offsite\r\n" +
	"DESCRIPTION:First line\\nSecond line\r\n" +
	"LOCATION:Main st\r\n" +
	" reet 12\r\n" +
	"DTSTART:20260302T120000Z\r\n" +
	"DTEND:20260302T130000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:two@example.com\r\n" +
	"SUMMARY:Public holiday\r\n" +
	"DTSTART;VALUE=DATE:20260501\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestImport(t *testing.T) {
	drafts, err := Import(strings.NewReader(sampleICS))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(drafts) != 2 {
		t.Fatalf("len(drafts) = %d, want 2", len(drafts))
	}

	lunch := drafts[0]
	if lunch.Title != "Team lunch, offsite" {
		t.Errorf("Title = %q, want %q", lunch.Title, "Team lunch, offsite")
	}
	if lunch.Description != "First line\nSecond line" {
		t.Errorf("Description = %q, want unescaped two lines", lunch.Description)
	}
	if lunch.Location != "Main street 12" {
		t.Errorf("Location = %q, want folded line joined", lunch.Location)
	}
	wantStart := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	if !lunch.Start.Equal(wantStart) || !lunch.End.Equal(wantStart.Add(time.Hour)) {
		t.Errorf("interval = %v..%v, want %v..%v", lunch.Start, lunch.End, wantStart, wantStart.Add(time.Hour))
	}
	if lunch.AllDay {
		t.Error("AllDay = true for a timed event")
	}

	holiday := drafts[1]
	if !holiday.AllDay {
		t.Error("AllDay = false for a VALUE=DATE event")
	}
	wantDay := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if !holiday.Start.Equal(wantDay) || !holiday.End.Equal(wantDay.AddDate(0, 0, 1)) {
		t.Errorf("all-day interval = %v..%v, want %v..one day later", holiday.Start, holiday.End, wantDay)
	}
}

func TestImportTolerance(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "unknown properties ignored",
			body: "BEGIN:VEVENT\r\nX-CUSTOM:whatever\r\nDTSTART:20260302T100000Z\r\nSUMMARY:Keep\r\nEND:VEVENT\r\n",
			want: 1,
		},
		{
			name: "event without start dropped",
			body: "BEGIN:VEVENT\r\nSUMMARY:No times\r\nEND:VEVENT\r\n",
			want: 0,
		},
		{
			name: "end before start dropped",
			body: "BEGIN:VEVENT\r\nDTSTART:20260302T100000Z\r\nDTEND:20260302T090000Z\r\nSUMMARY:Backwards\r\nEND:VEVENT\r\n",
			want: 0,
		},
		{
			name: "garbage lines ignored",
			body: "not even ics\r\nBEGIN:VEVENT\r\nDTSTART:20260302T100000Z\r\nEND:VEVENT\r\ntrailing junk\r\n",
			want: 1,
		},
		{
			name: "empty input",
			body: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := Import(strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("Import() error: %v", err)
			}
			if len(drafts) != tt.want {
				t.Errorf("len(drafts) = %d, want %d", len(drafts), tt.want)
			}
		})
	}
}

func TestImportDefaultTitle(t *testing.T) {
	body := "BEGIN:VEVENT\r\nDTSTART:20260302T100000Z\r\nEND:VEVENT\r\n"
	drafts, err := Import(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("len(drafts) = %d, want 1", len(drafts))
	}
	if drafts[0].Title == "" {
		t.Error("Title is empty, want placeholder")
	}
}

func TestImportRecurrenceRule(t *testing.T) {
	body := "BEGIN:VEVENT\r\nDTSTART:20260302T100000Z\r\nDTEND:20260302T110000Z\r\nSUMMARY:Standup\r\nRRULE:FREQ=WEEKLY;BYDAY=MO\r\nEND:VEVENT\r\n"
	drafts, err := Import(strings.NewReader(body))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(drafts) != 1 {
		t.Fatalf("len(drafts) = %d, want 1", len(drafts))
	}
	if drafts[0].RecurrenceRule != "FREQ=WEEKLY;BYDAY=MO" {
		t.Errorf("RecurrenceRule = %q, want opaque rule preserved", drafts[0].RecurrenceRule)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	events := []domain.Event{
		{
			ID:         "rt@calgrid",
			CalendarID: "work",
			Title:      "Design review",
			Location:   "Room 2",
			Start:      time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
			End:        time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC),
		},
		{
			ID:         "rt-allday@calgrid",
			CalendarID: "personal",
			Title:      "Trip",
			Start:      time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			End:        time.Date(2026, 7, 3, 0, 0, 0, 0, time.UTC),
			AllDay:     true,
		},
	}

	var sb strings.Builder
	if err := Export(&sb, events); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	drafts, err := Import(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("Import() error: %v", err)
	}
	if len(drafts) != len(events) {
		t.Fatalf("len(drafts) = %d, want %d", len(drafts), len(events))
	}
	for i, d := range drafts {
		if d.Title != events[i].Title {
			t.Errorf("drafts[%d].Title = %q, want %q", i, d.Title, events[i].Title)
		}
		if !d.Start.Equal(events[i].Start) || !d.End.Equal(events[i].End) {
			t.Errorf("drafts[%d] interval = %v..%v, want %v..%v", i, d.Start, d.End, events[i].Start, events[i].End)
		}
		if d.AllDay != events[i].AllDay {
			t.Errorf("drafts[%d].AllDay = %v, want %v", i, d.AllDay, events[i].AllDay)
		}
	}
}
