package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop-api/internal/models"
)

func TestBookingRepositoryListActiveInRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "student_id", "subject", "start_at", "end_at", "duration_minutes", "status", "cancelled_by", "created_at", "updated_at"}).
		AddRow("booking-1", "teacher-1", "student-1", "Algebra", from.Add(10*time.Hour), from.Add(11*time.Hour), 60, "CONFIRMED", nil, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, student_id, subject, start_at, end_at, duration_minutes, status, cancelled_by, created_at, updated_at FROM bookings WHERE teacher_id = $1 AND status IN ('PENDING', 'CONFIRMED') AND start_at < $3 AND end_at > $2 ORDER BY start_at ASC")).
		WithArgs("teacher-1", from, to).
		WillReturnRows(rows)

	bookings, err := repo.ListActiveInRange(context.Background(), "teacher-1", from, to)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingConfirmed, bookings[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE teacher_id = $1 AND status IN ('PENDING', 'CONFIRMED') AND start_at < $3 AND end_at > $2")).
		WithArgs("teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	booking := &models.Booking{
		TeacherID:       "teacher-1",
		StudentID:       "student-1",
		Subject:         "Algebra",
		StartAt:         start,
		EndAt:           start.Add(time.Hour),
		DurationMinutes: 60,
		Status:          models.BookingPending,
	}
	require.NoError(t, repo.Create(context.Background(), booking))
	assert.NotEmpty(t, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryCreateLosesRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SELECT pg_advisory_xact_lock(hashtext($1))")).
		WithArgs("teacher-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WithArgs("teacher-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	start := time.Date(2025, time.June, 2, 10, 0, 0, 0, time.UTC)
	err := repo.Create(context.Background(), &models.Booking{
		TeacherID: "teacher-1",
		StudentID: "student-1",
		StartAt:   start,
		EndAt:     start.Add(time.Hour),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBookingOverlap))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryExpirePending(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	cutoff := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = 'EXPIRED', updated_at = $2 WHERE status = 'PENDING' AND created_at < $1")).
		WithArgs(cutoff, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.ExpirePending(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBookingRepositoryListCalendarLessons(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBookingRepository(db)

	from := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 6, 0)
	rows := sqlmock.NewRows([]string{"id", "subject", "start_at", "duration_minutes", "teacher_name", "teacher_email", "student_name", "student_email"}).
		AddRow("booking-1", "Algebra", from.AddDate(0, 1, 0), 60, "Alice", "alice@example.com", "Bob", "bob@example.com")
	mock.ExpectQuery("SELECT b.id, b.subject, b.start_at, b.duration_minutes").
		WithArgs("user-1", from, to).
		WillReturnRows(rows)

	lessons, err := repo.ListCalendarLessons(context.Background(), "user-1", from, to)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "Algebra", lessons[0].Title)
	assert.Equal(t, "alice@example.com", lessons[0].Organizer.Email)
	assert.Equal(t, "bob@example.com", lessons[0].Attendee.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}
