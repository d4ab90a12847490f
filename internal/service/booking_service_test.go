package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/repository"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
)

type mockBookingRepo struct {
	created       *models.Booking
	createErr     error
	listResult    []models.Booking
	listTotal     int
	findResult    *models.Booking
	findErr       error
	statusUpdates []models.BookingStatus
	expired       int64
}

func (m *mockBookingRepo) List(_ context.Context, _ models.BookingFilter) ([]models.Booking, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockBookingRepo) FindByID(_ context.Context, _ string) (*models.Booking, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.findResult, nil
}

func (m *mockBookingRepo) Create(_ context.Context, booking *models.Booking) error {
	if m.createErr != nil {
		return m.createErr
	}
	booking.ID = "booking-1"
	m.created = booking
	return nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, _ string, status models.BookingStatus, _ *string) error {
	m.statusUpdates = append(m.statusUpdates, status)
	return nil
}

func (m *mockBookingRepo) ExpirePending(_ context.Context, _ time.Time) (int64, error) {
	return m.expired, nil
}

func newBookingFixture(repo *mockBookingRepo, store *stubAvailabilityStore, now time.Time) *BookingService {
	availability := newAvailabilityFixture(store, &stubBookingReader{}, now)
	notifier := NewNotificationService(nil, nil)
	svc := NewBookingService(repo, availability, nil, notifier, nil, nil, time.Hour)
	svc.now = func() time.Time { return now }
	return svc
}

func claimsFor(userID string, role models.UserRole) *models.JWTClaims {
	return &models.JWTClaims{
		UserID:           userID,
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	}
}

func TestBookingCreatePendingByDefault(t *testing.T) {
	repo := &mockBookingRepo{}
	store := &stubAvailabilityStore{rules: []models.WeeklyRule{mondayRule("09:00", "17:00")}}
	svc := newBookingFixture(repo, store, fixedNow)

	booking, err := svc.Create(context.Background(), "student-1", CreateBookingRequest{
		TeacherID:       "teacher-1",
		Subject:         "Algebra",
		StartAt:         monday(10, 0),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingPending, booking.Status)
	assert.Equal(t, monday(11, 0), booking.EndAt)
	require.NotNil(t, repo.created)
	assert.Equal(t, "student-1", repo.created.StudentID)
}

func TestBookingCreateAutoAcceptConfirms(t *testing.T) {
	repo := &mockBookingRepo{}
	policy := models.DefaultBookingPolicy("teacher-1")
	policy.AutoAccept = true
	store := &stubAvailabilityStore{
		rules:  []models.WeeklyRule{mondayRule("09:00", "17:00")},
		policy: policy,
	}
	svc := newBookingFixture(repo, store, fixedNow)

	booking, err := svc.Create(context.Background(), "student-1", CreateBookingRequest{
		TeacherID:       "teacher-1",
		Subject:         "Algebra",
		StartAt:         monday(10, 0),
		DurationMinutes: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, booking.Status)
}

func TestBookingCreateRejectsInvalid(t *testing.T) {
	repo := &mockBookingRepo{}
	// No weekly rules, so any interval is outside the schedule.
	svc := newBookingFixture(repo, &stubAvailabilityStore{}, fixedNow)

	_, err := svc.Create(context.Background(), "student-1", CreateBookingRequest{
		TeacherID:       "teacher-1",
		Subject:         "Algebra",
		StartAt:         monday(10, 0),
		DurationMinutes: 60,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Nil(t, repo.created)
}

func TestBookingCreateMapsOverlapRace(t *testing.T) {
	repo := &mockBookingRepo{createErr: repository.ErrBookingOverlap}
	store := &stubAvailabilityStore{rules: []models.WeeklyRule{mondayRule("09:00", "17:00")}}
	svc := newBookingFixture(repo, store, fixedNow)

	_, err := svc.Create(context.Background(), "student-1", CreateBookingRequest{
		TeacherID:       "teacher-1",
		Subject:         "Algebra",
		StartAt:         monday(10, 0),
		DurationMinutes: 60,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, "the requested time was just booked by someone else", appErr.Message)
}

func TestBookingCancelByStudentInsideWindow(t *testing.T) {
	repo := &mockBookingRepo{findResult: &models.Booking{
		ID:        "booking-1",
		TeacherID: "teacher-1",
		StudentID: "student-1",
		StartAt:   monday(10, 0),
		Status:    models.BookingConfirmed,
	}}
	store := &stubAvailabilityStore{rules: []models.WeeklyRule{mondayRule("09:00", "17:00")}}
	svc := newBookingFixture(repo, store, fixedNow)

	booking, err := svc.Cancel(context.Background(), "booking-1", claimsFor("student-1", models.RoleStudent), "")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, booking.Status)
	require.Len(t, repo.statusUpdates, 1)
	assert.Equal(t, models.BookingCancelled, repo.statusUpdates[0])
}

func TestBookingCancelByStudentPastWindow(t *testing.T) {
	repo := &mockBookingRepo{findResult: &models.Booking{
		ID:        "booking-1",
		TeacherID: "teacher-1",
		StudentID: "student-1",
		StartAt:   monday(10, 0),
		Status:    models.BookingConfirmed,
	}}
	store := &stubAvailabilityStore{rules: []models.WeeklyRule{mondayRule("09:00", "17:00")}}
	// Less than the 24h cancellation window before the lesson.
	svc := newBookingFixture(repo, store, monday(8, 0))

	_, err := svc.Cancel(context.Background(), "booking-1", claimsFor("student-1", models.RoleStudent), "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Empty(t, repo.statusUpdates)
}

func TestBookingCancelTeacherBypassesWindow(t *testing.T) {
	repo := &mockBookingRepo{findResult: &models.Booking{
		ID:        "booking-1",
		TeacherID: "teacher-1",
		StudentID: "student-1",
		StartAt:   monday(10, 0),
		Status:    models.BookingPending,
	}}
	store := &stubAvailabilityStore{rules: []models.WeeklyRule{mondayRule("09:00", "17:00")}}
	svc := newBookingFixture(repo, store, monday(8, 0))

	booking, err := svc.Cancel(context.Background(), "booking-1", claimsFor("teacher-user", models.RoleTeacher), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, booking.Status)
}

func TestBookingCancelForbiddenForStrangers(t *testing.T) {
	repo := &mockBookingRepo{findResult: &models.Booking{
		ID:        "booking-1",
		TeacherID: "teacher-1",
		StudentID: "student-1",
		StartAt:   monday(10, 0),
		Status:    models.BookingConfirmed,
	}}
	svc := newBookingFixture(repo, &stubAvailabilityStore{}, fixedNow)

	_, err := svc.Cancel(context.Background(), "booking-1", claimsFor("someone-else", models.RoleStudent), "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestBookingCancelInactiveBooking(t *testing.T) {
	repo := &mockBookingRepo{findResult: &models.Booking{
		ID:        "booking-1",
		TeacherID: "teacher-1",
		StudentID: "student-1",
		StartAt:   monday(10, 0),
		Status:    models.BookingCancelled,
	}}
	svc := newBookingFixture(repo, &stubAvailabilityStore{}, fixedNow)

	_, err := svc.Cancel(context.Background(), "booking-1", claimsFor("student-1", models.RoleStudent), "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestBookingCancelNotFound(t *testing.T) {
	repo := &mockBookingRepo{findErr: sql.ErrNoRows}
	svc := newBookingFixture(repo, &stubAvailabilityStore{}, fixedNow)

	_, err := svc.Cancel(context.Background(), "missing", claimsFor("student-1", models.RoleStudent), "")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBookingListPagination(t *testing.T) {
	repo := &mockBookingRepo{
		listResult: []models.Booking{{ID: "booking-1"}},
		listTotal:  41,
	}
	svc := newBookingFixture(repo, &stubAvailabilityStore{}, fixedNow)

	bookings, pagination, err := svc.List(context.Background(), models.BookingFilter{Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 41, pagination.TotalCount)
}

func TestExpireStalePending(t *testing.T) {
	repo := &mockBookingRepo{expired: 3}
	svc := newBookingFixture(repo, &stubAvailabilityStore{}, fixedNow)

	count, err := svc.ExpireStalePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
