package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/lessonloop/lessonloop-api/internal/models"
)

// AvailabilityRepository is the read side of the scheduling store: weekly
// rules, blocked ranges and booking policies as plain data. All interval
// reasoning happens in the service layer, not in SQL.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository creates a new availability repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

// ListActiveWeeklyRules returns the active recurring rules for a teacher.
func (r *AvailabilityRepository) ListActiveWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error) {
	const query = `SELECT id, teacher_id, weekday, start_time, end_time, timezone, active, created_at, updated_at FROM weekly_rules WHERE teacher_id = $1 AND active = TRUE ORDER BY weekday ASC, start_time ASC`
	var rules []models.WeeklyRule
	if err := r.db.SelectContext(ctx, &rules, query, teacherID); err != nil {
		return nil, fmt.Errorf("list active weekly rules: %w", err)
	}
	return rules, nil
}

// ListBlockedRanges returns blocked ranges intersecting [from, to).
func (r *AvailabilityRepository) ListBlockedRanges(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedRange, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, recurring, recurrence_rule, created_at FROM blocked_ranges WHERE teacher_id = $1 AND start_at < $3 AND end_at > $2 ORDER BY start_at ASC`
	var blocks []models.BlockedRange
	if err := r.db.SelectContext(ctx, &blocks, query, teacherID, from, to); err != nil {
		return nil, fmt.Errorf("list blocked ranges: %w", err)
	}
	return blocks, nil
}

// GetBookingPolicy loads the teacher's policy. sql.ErrNoRows signals that the
// documented defaults apply.
func (r *AvailabilityRepository) GetBookingPolicy(ctx context.Context, teacherID string) (*models.BookingPolicy, error) {
	const query = `SELECT teacher_id, buffer_minutes, min_advance_hours, max_advance_days, allowed_durations, auto_accept, cancellation_hours, updated_at FROM booking_policies WHERE teacher_id = $1`
	var policy models.BookingPolicy
	if err := r.db.GetContext(ctx, &policy, query, teacherID); err != nil {
		return nil, err
	}
	return &policy, nil
}
