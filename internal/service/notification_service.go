package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/pkg/jobs"
)

// BookingEventPayload is handed to the notification queue for fan-out.
type BookingEventPayload struct {
	Event     string    `json:"event"`
	BookingID string    `json:"booking_id"`
	TeacherID string    `json:"teacher_id"`
	StudentID string    `json:"student_id"`
	StartAt   time.Time `json:"start_at"`
}

// NotificationService fans booking events out on the in-process queue.
// Delivery channels (email, SMS) hang off the queue handler; losing an event
// never fails the originating request.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService constructs a notification service.
func NewNotificationService(queue *jobs.Queue, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{queue: queue, logger: logger}
}

// BookingEvent enqueues a booking lifecycle event.
func (s *NotificationService) BookingEvent(_ context.Context, event string, booking *models.Booking) {
	if s == nil || s.queue == nil || booking == nil {
		return
	}
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: event,
		Payload: BookingEventPayload{
			Event:     event,
			BookingID: booking.ID,
			TeacherID: booking.TeacherID,
			StudentID: booking.StudentID,
			StartAt:   booking.StartAt,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue booking event", zap.String("event", event), zap.Error(err))
	}
}

// BookingEventHandler returns the queue handler that delivers booking events.
// Currently it only records them; mail/SMS senders plug in here.
func BookingEventHandler(logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(_ context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(BookingEventPayload)
		if !ok {
			logger.Warn("dropping booking event with unexpected payload", zap.String("job_id", job.ID))
			return nil
		}
		logger.Info("booking event",
			zap.String("event", payload.Event),
			zap.String("booking_id", payload.BookingID),
			zap.String("teacher_id", payload.TeacherID),
			zap.String("student_id", payload.StudentID),
			zap.Time("start_at", payload.StartAt),
		)
		return nil
	}
}
