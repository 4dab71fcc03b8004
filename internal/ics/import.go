package ics

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/osmakov/calgrid/internal/domain"
)

// Import reads an iCalendar stream and returns drafts for its timed and
// all-day VEVENTs. The parser is line-based and forgiving: unknown
// properties and components are skipped, folded lines are unfolded, and a
// VEVENT without a parseable DTSTART is dropped rather than failing the
// whole file. Returned drafts carry no calendar; the caller assigns one
// before creating events.
func Import(r io.Reader) ([]domain.Draft, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lines, err := unfold(scanner)
	if err != nil {
		return nil, fmt.Errorf("read ics: %w", err)
	}

	var drafts []domain.Draft
	var cur *veventBlock
	for _, line := range lines {
		switch {
		case strings.EqualFold(line, "BEGIN:VEVENT"):
			cur = &veventBlock{}
		case strings.EqualFold(line, "END:VEVENT"):
			if cur != nil {
				if d, ok := cur.draft(); ok {
					drafts = append(drafts, d)
				}
			}
			cur = nil
		default:
			if cur != nil {
				cur.consume(line)
			}
		}
	}
	return drafts, nil
}

// unfold joins RFC 5545 folded lines: a line starting with a space or tab
// continues the previous one.
func unfold(scanner *bufio.Scanner) ([]string, error) {
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		if (line[0] == ' ' || line[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

type veventBlock struct {
	summary     string
	description string
	location    string
	url         string
	rrule       string

	start      time.Time
	end        time.Time
	startIsSet bool
	endIsSet   bool
	allDay     bool
}

func (b *veventBlock) consume(line string) {
	name, params, value, ok := splitContentLine(line)
	if !ok {
		return
	}

	switch name {
	case "SUMMARY":
		b.summary = unescape(value)
	case "DESCRIPTION":
		b.description = unescape(value)
	case "LOCATION":
		b.location = unescape(value)
	case "URL":
		b.url = value
	case "RRULE":
		b.rrule = value
	case "DTSTART":
		if t, allDay, err := parseStamp(value, params); err == nil {
			b.start = t
			b.startIsSet = true
			b.allDay = allDay
		}
	case "DTEND":
		if t, _, err := parseStamp(value, params); err == nil {
			b.end = t
			b.endIsSet = true
		}
	}
}

func (b *veventBlock) draft() (domain.Draft, bool) {
	if !b.startIsSet {
		return domain.Draft{}, false
	}

	end := b.end
	if !b.endIsSet {
		if b.allDay {
			end = b.start.AddDate(0, 0, 1)
		} else {
			end = b.start.Add(time.Hour)
		}
	}
	if !end.After(b.start) {
		return domain.Draft{}, false
	}

	title := b.summary
	if title == "" {
		title = "Imported event"
	}

	return domain.Draft{
		Title:          title,
		Description:    b.description,
		Location:       b.location,
		URL:            b.url,
		Start:          b.start,
		End:            end,
		AllDay:         b.allDay,
		RecurrenceRule: b.rrule,
	}, true
}

// splitContentLine breaks "NAME;PARAM=V;PARAM=V:value" into its parts. The
// property name is uppercased; parameters keep their raw form since TZID
// values are case sensitive.
func splitContentLine(line string) (name string, params []string, value string, ok bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", nil, "", false
	}
	head := line[:colon]
	value = line[colon+1:]

	parts := strings.Split(head, ";")
	name = strings.ToUpper(strings.TrimSpace(parts[0]))
	if name == "" {
		return "", nil, "", false
	}
	for _, p := range parts[1:] {
		params = append(params, strings.TrimSpace(p))
	}
	return name, params, value, true
}

// parseStamp parses an ICS date or date-time value. VALUE=DATE and bare
// YYYYMMDD values mean all-day; TZID parameters resolve against the IANA
// database and fall back to UTC for unknown zones.
func parseStamp(value string, params []string) (t time.Time, allDay bool, err error) {
	value = strings.TrimSpace(value)

	loc := time.UTC
	isDate := false
	for _, p := range params {
		if strings.EqualFold(p, "VALUE=DATE") {
			isDate = true
		}
		if len(p) > 5 && strings.EqualFold(p[:5], "TZID=") {
			if l, lerr := time.LoadLocation(p[5:]); lerr == nil {
				loc = l
			}
		}
	}

	if isDate || !strings.Contains(value, "T") {
		t, err = time.ParseInLocation("20060102", value, loc)
		return t, true, err
	}
	if strings.HasSuffix(value, "Z") {
		t, err = time.Parse(utcStampLayout, value)
		return t, false, err
	}
	t, err = time.ParseInLocation("20060102T150405", value, loc)
	return t, false, err
}

// unescape undoes RFC 5545 text escaping.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}
