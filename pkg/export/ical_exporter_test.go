package export

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedExporter(domain string) *ICalExporter {
	e := NewICalExporter(domain)
	e.now = func() time.Time {
		return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	}
	return e
}

func TestICalExporterSingleEvent(t *testing.T) {
	exporter := fixedExporter("lessonloop.io")
	events := []Event{{
		ID:              "lesson-1",
		Title:           "Math lesson",
		Description:     "Algebra; fractions",
		StartAt:         time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Organizer:       Contact{Name: "Alice Teacher", Email: "alice@example.com"},
		Attendee:        Contact{Name: "Bob Student", Email: "bob@example.com"},
	}}

	out := string(exporter.Render(events))

	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.Equal(t, 1, strings.Count(out, "END:VEVENT"))
	assert.Contains(t, out, "UID:lesson-1@lessonloop.io")
	assert.Contains(t, out, "DTSTART:20250310T090000Z")
	assert.Contains(t, out, "DTEND:20250310T100000Z")
	assert.Contains(t, out, "DESCRIPTION:Algebra\\; fractions")
	assert.Contains(t, out, "ORGANIZER;CN=Alice Teacher:mailto:alice@example.com")
	assert.Contains(t, out, "ATTENDEE;CN=Bob Student:mailto:bob@example.com")
	assert.Contains(t, out, "STATUS:CONFIRMED")

	for _, line := range strings.SplitAfter(out, "\r\n") {
		if line == "" {
			continue
		}
		require.True(t, strings.HasSuffix(line, "\r\n"), "line %q must be CRLF terminated", line)
	}
}

func TestICalExporterDeterministic(t *testing.T) {
	events := []Event{{
		ID:              "lesson-2",
		Title:           "Guitar",
		StartAt:         time.Date(2025, time.April, 2, 15, 30, 0, 0, time.UTC),
		DurationMinutes: 30,
	}}

	first := fixedExporter("lessonloop.io").Render(events)
	second := fixedExporter("lessonloop.io").Render(events)
	assert.Equal(t, first, second)
}

func TestICalExporterCancelledLessonStillConfirmed(t *testing.T) {
	// Feed status is fixed regardless of the lesson's actual state.
	exporter := fixedExporter("lessonloop.io")
	out := string(exporter.Render([]Event{{
		ID:              "lesson-3",
		Title:           "Cancelled lesson",
		StartAt:         time.Date(2025, time.May, 5, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
	}}))
	assert.Contains(t, out, "STATUS:CONFIRMED")
	assert.NotContains(t, out, "STATUS:CANCELLED")
}

func TestICalExporterEmpty(t *testing.T) {
	out := string(fixedExporter("lessonloop.io").Render(nil))
	assert.True(t, strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(out, "END:VCALENDAR\r\n"))
	assert.NotContains(t, out, "BEGIN:VEVENT")
}
