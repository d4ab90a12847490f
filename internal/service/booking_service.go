package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/repository"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
)

type bookingRepository interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	Create(ctx context.Context, booking *models.Booking) error
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus, cancelledBy *string) error
	ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error)
}

// CreateBookingRequest describes the payload for booking a lesson.
type CreateBookingRequest struct {
	TeacherID       string    `json:"teacher_id" validate:"required"`
	Subject         string    `json:"subject" validate:"required,max=120"`
	StartAt         time.Time `json:"start_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,gt=0"`
}

// BookingService owns the lesson booking lifecycle. The availability
// validator is the admission gate; the repository's transactional overlap
// re-check closes the remaining race window.
type BookingService struct {
	repo         bookingRepository
	availability *AvailabilityService
	cache        *CacheService
	notifier     *NotificationService
	validator    *validator.Validate
	logger       *zap.Logger
	pendingTTL   time.Duration
	now          func() time.Time
}

// NewBookingService instantiates BookingService.
func NewBookingService(repo bookingRepository, availability *AvailabilityService, cache *CacheService, notifier *NotificationService, validate *validator.Validate, logger *zap.Logger, pendingTTL time.Duration) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if pendingTTL <= 0 {
		pendingTTL = 48 * time.Hour
	}
	return &BookingService{
		repo:         repo,
		availability: availability,
		cache:        cache,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		pendingTTL:   pendingTTL,
		now:          time.Now,
	}
}

// Create validates and persists a new lesson booking for the student.
func (s *BookingService) Create(ctx context.Context, studentID string, req CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	verdict, err := s.availability.ValidateBooking(ctx, req.TeacherID, req.StartAt, req.DurationMinutes)
	if err != nil {
		return nil, err
	}
	if !verdict.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, strings.Join(verdict.Errors, "; "))
	}

	policy, err := s.availability.PolicyFor(ctx, req.TeacherID)
	if err != nil {
		return nil, err
	}

	status := models.BookingPending
	if policy.AutoAccept {
		status = models.BookingConfirmed
	}

	booking := &models.Booking{
		TeacherID:       req.TeacherID,
		StudentID:       studentID,
		Subject:         req.Subject,
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.StartAt.UTC().Add(time.Duration(req.DurationMinutes) * time.Minute),
		DurationMinutes: req.DurationMinutes,
		Status:          status,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrBookingOverlap) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the requested time was just booked by someone else")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}

	s.invalidateSlots(ctx, booking.TeacherID)
	s.notifier.BookingEvent(ctx, "booking.created", booking)

	return booking, nil
}

// Get loads a booking visible to the caller.
func (s *BookingService) Get(ctx context.Context, id string, actor *models.JWTClaims, actorTeacherID string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	isStudent := booking.StudentID == actor.UserID
	isTeacher := actorTeacherID != "" && booking.TeacherID == actorTeacherID
	if !isStudent && !isTeacher && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the participants can view a booking")
	}
	return booking, nil
}

// List returns bookings visible to the caller with pagination metadata.
func (s *BookingService) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return bookings, pagination, nil
}

// Cancel transitions an active booking to CANCELLED. Students are bound by
// the teacher's cancellation window; the teacher may cancel at any time.
func (s *BookingService) Cancel(ctx context.Context, id string, actor *models.JWTClaims, actorTeacherID string) (*models.Booking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}

	isStudent := booking.StudentID == actor.UserID
	isTeacher := actorTeacherID != "" && booking.TeacherID == actorTeacherID
	if !isStudent && !isTeacher && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the participants can cancel a booking")
	}

	if !booking.Status.Active() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "booking is no longer active")
	}

	if isStudent && !isTeacher && actor.Role != models.RoleAdmin {
		policy, err := s.availability.PolicyFor(ctx, booking.TeacherID)
		if err != nil {
			return nil, err
		}
		window := time.Duration(policy.CancellationHours) * time.Hour
		if booking.StartAt.Sub(s.now().UTC()) < window {
			return nil, appErrors.Clone(appErrors.ErrConflict, "the cancellation window for this lesson has passed")
		}
	}

	cancelledBy := actor.UserID
	if err := s.repo.UpdateStatus(ctx, booking.ID, models.BookingCancelled, &cancelledBy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	booking.Status = models.BookingCancelled
	booking.CancelledBy = &cancelledBy

	s.invalidateSlots(ctx, booking.TeacherID)
	s.notifier.BookingEvent(ctx, "booking.cancelled", booking)

	return booking, nil
}

// ExpireStalePending marks PENDING bookings older than the configured TTL as
// EXPIRED. Invoked periodically by the lifecycle sweep.
func (s *BookingService) ExpireStalePending(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.pendingTTL)
	expired, err := s.repo.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to expire pending bookings")
	}
	if expired > 0 {
		s.logger.Info("expired stale pending bookings", zap.Int64("count", expired))
	}
	return expired, nil
}

func (s *BookingService) invalidateSlots(ctx context.Context, teacherID string) {
	if err := s.cache.Invalidate(ctx, "slots:"+teacherID+":*"); err != nil {
		s.logger.Warn("failed to invalidate slot cache", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
