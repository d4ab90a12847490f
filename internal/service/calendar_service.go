package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lessonloop/lessonloop-api/internal/models"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
	"github.com/lessonloop/lessonloop-api/pkg/export"
	"github.com/lessonloop/lessonloop-api/pkg/signing"
)

// feedScope marks tokens minted for the read-only calendar feed.
const feedScope = "calendar"

// Lessons inside this window around "now" are included in the feed.
const (
	feedLookBehind = 30 * 24 * time.Hour
	feedLookAhead  = 180 * 24 * time.Hour
)

type calendarLessonReader interface {
	ListCalendarLessons(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarLesson, error)
}

// CalendarService issues signed feed tokens and renders the subscriber's
// lessons as an iCalendar document. Feed URLs carry the token instead of a
// session so calendar apps can poll them.
type CalendarService struct {
	lessons  calendarLessonReader
	signer   *signing.FeedTokenSigner
	exporter *export.ICalExporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewCalendarService instantiates CalendarService.
func NewCalendarService(lessons calendarLessonReader, signer *signing.FeedTokenSigner, exporter *export.ICalExporter, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		lessons:  lessons,
		signer:   signer,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// IssueFeedToken mints a signed token for the user's calendar feed.
func (s *CalendarService) IssueFeedToken(userID string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(userID, feedScope)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue feed token")
	}
	return token, expiresAt, nil
}

// RenderFeed validates the token and returns the subscriber's lessons as an
// iCalendar document.
func (s *CalendarService) RenderFeed(ctx context.Context, token string) ([]byte, error) {
	userID, scope, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired feed token")
	}
	if scope != feedScope {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is not a calendar feed token")
	}

	now := s.now().UTC()
	lessons, err := s.lessons.ListCalendarLessons(ctx, userID, now.Add(-feedLookBehind), now.Add(feedLookAhead))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load calendar lessons")
	}

	return s.ExportICalendar(lessons), nil
}

// ExportICalendar serializes the given lessons into iCalendar text.
func (s *CalendarService) ExportICalendar(lessons []models.CalendarLesson) []byte {
	events := make([]export.Event, 0, len(lessons))
	for _, lesson := range lessons {
		events = append(events, export.Event{
			ID:              lesson.ID,
			Title:           lesson.Title,
			Description:     lesson.Description,
			StartAt:         lesson.StartAt,
			DurationMinutes: lesson.DurationMinutes,
			Organizer:       export.Contact{Name: lesson.Organizer.Name, Email: lesson.Organizer.Email},
			Attendee:        export.Contact{Name: lesson.Attendee.Name, Email: lesson.Attendee.Email},
		})
	}
	return s.exporter.Render(events)
}
