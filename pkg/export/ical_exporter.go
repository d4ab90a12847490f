package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

const icalTimeLayout = "20060102T150405Z"

// Contact identifies one calendar participant.
type Contact struct {
	Name  string
	Email string
}

// Event is one lesson entry in a calendar export.
type Event struct {
	ID              string
	Title           string
	Description     string
	StartAt         time.Time
	DurationMinutes int
	Organizer       Contact
	Attendee        Contact
}

// ICalExporter serializes lessons into an iCalendar (RFC 5545) document.
// Output is deterministic for a fixed export timestamp.
type ICalExporter struct {
	domain string
	now    func() time.Time
}

// NewICalExporter builds an exporter. UIDs are scoped to the given domain.
func NewICalExporter(domain string) *ICalExporter {
	if domain == "" {
		domain = "lessonloop.io"
	}
	return &ICalExporter{domain: domain, now: time.Now}
}

// Render produces the calendar document. Lines are CRLF terminated as the
// format requires. Every event is exported with STATUS:CONFIRMED; per-lesson
// status is not reflected in the feed.
func (e *ICalExporter) Render(events []Event) []byte {
	stamp := e.now().UTC().Format(icalTimeLayout)

	buf := &bytes.Buffer{}
	writeLine(buf, "BEGIN:VCALENDAR")
	writeLine(buf, "VERSION:2.0")
	writeLine(buf, "PRODID:-//LessonLoop//Lesson Calendar//EN")
	writeLine(buf, "CALSCALE:GREGORIAN")
	writeLine(buf, "METHOD:PUBLISH")

	for _, ev := range events {
		start := ev.StartAt.UTC()
		end := start.Add(time.Duration(ev.DurationMinutes) * time.Minute)

		writeLine(buf, "BEGIN:VEVENT")
		writeLine(buf, fmt.Sprintf("UID:%s@%s", ev.ID, e.domain))
		writeLine(buf, "DTSTAMP:"+stamp)
		writeLine(buf, "DTSTART:"+start.Format(icalTimeLayout))
		writeLine(buf, "DTEND:"+end.Format(icalTimeLayout))
		writeLine(buf, "SUMMARY:"+escapeText(ev.Title))
		if ev.Description != "" {
			writeLine(buf, "DESCRIPTION:"+escapeText(ev.Description))
		}
		if ev.Organizer.Email != "" {
			writeLine(buf, fmt.Sprintf("ORGANIZER;CN=%s:mailto:%s", escapeText(ev.Organizer.Name), ev.Organizer.Email))
		}
		if ev.Attendee.Email != "" {
			writeLine(buf, fmt.Sprintf("ATTENDEE;CN=%s:mailto:%s", escapeText(ev.Attendee.Name), ev.Attendee.Email))
		}
		writeLine(buf, "STATUS:CONFIRMED")
		writeLine(buf, "END:VEVENT")
	}

	writeLine(buf, "END:VCALENDAR")
	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, line string) {
	buf.WriteString(line)
	buf.WriteString("\r\n")
}

// escapeText applies RFC 5545 TEXT escaping.
func escapeText(s string) string {
	replacer := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
	)
	return replacer.Replace(s)
}
