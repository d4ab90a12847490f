package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop-api/internal/models"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/export"
	"github.com/lessonloop/lessonloop-api/pkg/signing"
)

type stubLessonReader struct {
	lessons []models.CalendarLesson
	userID  string
}

func (s *stubLessonReader) ListCalendarLessons(_ context.Context, userID string, _, _ time.Time) ([]models.CalendarLesson, error) {
	s.userID = userID
	return s.lessons, nil
}

func newCalendarFixture(lessons *stubLessonReader) *CalendarService {
	signer := signing.NewFeedTokenSigner("test-secret", time.Hour)
	return NewCalendarService(lessons, signer, export.NewICalExporter("lessonloop.io"), nil)
}

func TestCalendarFeedRoundTrip(t *testing.T) {
	lessons := &stubLessonReader{lessons: []models.CalendarLesson{{
		ID:              "lesson-1",
		Title:           "Algebra",
		StartAt:         time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
		Organizer:       models.CalendarContact{Name: "Alice", Email: "alice@example.com"},
		Attendee:        models.CalendarContact{Name: "Bob", Email: "bob@example.com"},
	}}}
	svc := newCalendarFixture(lessons)

	token, expiresAt, err := svc.IssueFeedToken("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	feed, err := svc.RenderFeed(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", lessons.userID)

	out := string(feed)
	assert.Equal(t, 1, strings.Count(out, "BEGIN:VEVENT"))
	assert.Contains(t, out, "UID:lesson-1@lessonloop.io")
	assert.Contains(t, out, "DTSTART:20250602T100000Z")
	assert.Contains(t, out, "DTEND:20250602T110000Z")
}

func TestCalendarFeedRejectsBadToken(t *testing.T) {
	svc := newCalendarFixture(&stubLessonReader{})

	_, err := svc.RenderFeed(context.Background(), "not-a-token")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestCalendarFeedRejectsWrongScope(t *testing.T) {
	signer := signing.NewFeedTokenSigner("test-secret", time.Hour)
	token, _, err := signer.Generate("user-1", "something-else")
	require.NoError(t, err)

	svc := newCalendarFixture(&stubLessonReader{})
	_, err = svc.RenderFeed(context.Background(), token)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}
