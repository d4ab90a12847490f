package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lessonloop/lessonloop-api/internal/models"
)

// ErrBookingOverlap is returned when an insert loses the race against a
// concurrent booking for an overlapping interval.
var ErrBookingOverlap = errors.New("booking overlaps an existing lesson")

// BookingRepository provides persistence for lesson bookings.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// ListActiveInRange returns PENDING/CONFIRMED bookings intersecting [from, to).
func (r *BookingRepository) ListActiveInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error) {
	const query = `SELECT id, teacher_id, student_id, subject, start_at, end_at, duration_minutes, status, cancelled_by, created_at, updated_at FROM bookings WHERE teacher_id = $1 AND status IN ('PENDING', 'CONFIRMED') AND start_at < $3 AND end_at > $2 ORDER BY start_at ASC`
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// List returns bookings with optional filtering and pagination.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.From != nil {
		conditions = append(conditions, fmt.Sprintf("start_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		conditions = append(conditions, fmt.Sprintf("start_at < $%d", len(args)+1))
		args = append(args, *filter.To)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, teacher_id, student_id, subject, start_at, end_at, duration_minutes, status, cancelled_by, created_at, updated_at %s ORDER BY start_at ASC LIMIT %d OFFSET %d", base, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	return bookings, total, nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `SELECT id, teacher_id, student_id, subject, start_at, end_at, duration_minutes, status, cancelled_by, created_at, updated_at FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// Create inserts a booking after re-checking for a racing overlap inside the
// transaction. The per-teacher advisory lock serializes the check-then-insert,
// which is the real correctness boundary for double bookings.
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create booking: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, booking.TeacherID); err != nil {
		return fmt.Errorf("lock teacher calendar: %w", err)
	}

	var conflicts int
	err = tx.GetContext(ctx, &conflicts,
		`SELECT COUNT(*) FROM bookings WHERE teacher_id = $1 AND status IN ('PENDING', 'CONFIRMED') AND start_at < $3 AND end_at > $2`,
		booking.TeacherID, booking.StartAt, booking.EndAt)
	if err != nil {
		return fmt.Errorf("recheck booking overlap: %w", err)
	}
	if conflicts > 0 {
		err = ErrBookingOverlap
		return err
	}

	const query = `INSERT INTO bookings (id, teacher_id, student_id, subject, start_at, end_at, duration_minutes, status, created_at, updated_at) VALUES (:id, :teacher_id, :student_id, :subject, :start_at, :end_at, :duration_minutes, :status, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create booking: %w", err)
	}
	return nil
}

type calendarLessonRow struct {
	ID              string    `db:"id"`
	Subject         string    `db:"subject"`
	StartAt         time.Time `db:"start_at"`
	DurationMinutes int       `db:"duration_minutes"`
	TeacherName     string    `db:"teacher_name"`
	TeacherEmail    string    `db:"teacher_email"`
	StudentName     string    `db:"student_name"`
	StudentEmail    string    `db:"student_email"`
}

// ListCalendarLessons returns the user's lessons in [from, to) joined with
// participant contact details for calendar export. The user may appear as the
// student or as the teacher behind the booking.
func (r *BookingRepository) ListCalendarLessons(ctx context.Context, userID string, from, to time.Time) ([]models.CalendarLesson, error) {
	const query = `SELECT b.id, b.subject, b.start_at, b.duration_minutes,
			tu.full_name AS teacher_name, tu.email AS teacher_email,
			su.full_name AS student_name, su.email AS student_email
		FROM bookings b
		JOIN teachers t ON t.id = b.teacher_id
		JOIN users tu ON tu.id = t.user_id
		JOIN users su ON su.id = b.student_id
		WHERE (su.id = $1 OR tu.id = $1)
			AND b.status IN ('PENDING', 'CONFIRMED', 'COMPLETED')
			AND b.start_at >= $2 AND b.start_at < $3
		ORDER BY b.start_at ASC`

	var rows []calendarLessonRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, from, to); err != nil {
		return nil, fmt.Errorf("list calendar lessons: %w", err)
	}

	lessons := make([]models.CalendarLesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, models.CalendarLesson{
			ID:              row.ID,
			Title:           row.Subject,
			Description:     fmt.Sprintf("Lesson with %s", row.TeacherName),
			StartAt:         row.StartAt,
			DurationMinutes: row.DurationMinutes,
			Organizer:       models.CalendarContact{Name: row.TeacherName, Email: row.TeacherEmail},
			Attendee:        models.CalendarContact{Name: row.StudentName, Email: row.StudentEmail},
		})
	}
	return lessons, nil
}

// UpdateStatus transitions a booking to the given status.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus, cancelledBy *string) error {
	const query = `UPDATE bookings SET status = $2, cancelled_by = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, cancelledBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// ExpirePending marks PENDING bookings created before the cutoff as EXPIRED
// and returns how many rows changed.
func (r *BookingRepository) ExpirePending(ctx context.Context, createdBefore time.Time) (int64, error) {
	const query = `UPDATE bookings SET status = 'EXPIRED', updated_at = $2 WHERE status = 'PENDING' AND created_at < $1`
	res, err := r.db.ExecContext(ctx, query, createdBefore, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("expire pending bookings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire pending bookings: %w", err)
	}
	return affected, nil
}
