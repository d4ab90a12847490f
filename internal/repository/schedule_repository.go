package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lessonloop/lessonloop-api/internal/models"
)

// ScheduleRepository is the write side of the scheduling store: weekly rules,
// blocked ranges and booking policies owned by a teacher.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListWeeklyRules returns every rule for a teacher, active or not.
func (r *ScheduleRepository) ListWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error) {
	const query = `SELECT id, teacher_id, weekday, start_time, end_time, timezone, active, created_at, updated_at FROM weekly_rules WHERE teacher_id = $1 ORDER BY weekday ASC, start_time ASC`
	var rules []models.WeeklyRule
	if err := r.db.SelectContext(ctx, &rules, query, teacherID); err != nil {
		return nil, fmt.Errorf("list weekly rules: %w", err)
	}
	return rules, nil
}

// FindWeeklyRule loads one rule by id.
func (r *ScheduleRepository) FindWeeklyRule(ctx context.Context, id string) (*models.WeeklyRule, error) {
	const query = `SELECT id, teacher_id, weekday, start_time, end_time, timezone, active, created_at, updated_at FROM weekly_rules WHERE id = $1`
	var rule models.WeeklyRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		return nil, err
	}
	return &rule, nil
}

// CreateWeeklyRule stores a new recurring rule.
func (r *ScheduleRepository) CreateWeeklyRule(ctx context.Context, rule *models.WeeklyRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	const query = `INSERT INTO weekly_rules (id, teacher_id, weekday, start_time, end_time, timezone, active, created_at, updated_at) VALUES (:id, :teacher_id, :weekday, :start_time, :end_time, :timezone, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create weekly rule: %w", err)
	}
	return nil
}

// UpdateWeeklyRule modifies an existing rule.
func (r *ScheduleRepository) UpdateWeeklyRule(ctx context.Context, rule *models.WeeklyRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE weekly_rules SET weekday = :weekday, start_time = :start_time, end_time = :end_time, timezone = :timezone, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("update weekly rule: %w", err)
	}
	return nil
}

// DeleteWeeklyRule removes a rule by id.
func (r *ScheduleRepository) DeleteWeeklyRule(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM weekly_rules WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete weekly rule: %w", err)
	}
	return nil
}

// ListBlockedRanges returns every blocked range for a teacher.
func (r *ScheduleRepository) ListBlockedRanges(ctx context.Context, teacherID string) ([]models.BlockedRange, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, recurring, recurrence_rule, created_at FROM blocked_ranges WHERE teacher_id = $1 ORDER BY start_at ASC`
	var blocks []models.BlockedRange
	if err := r.db.SelectContext(ctx, &blocks, query, teacherID); err != nil {
		return nil, fmt.Errorf("list blocked ranges: %w", err)
	}
	return blocks, nil
}

// FindBlockedRange loads one blocked range by id.
func (r *ScheduleRepository) FindBlockedRange(ctx context.Context, id string) (*models.BlockedRange, error) {
	const query = `SELECT id, teacher_id, start_at, end_at, reason, recurring, recurrence_rule, created_at FROM blocked_ranges WHERE id = $1`
	var block models.BlockedRange
	if err := r.db.GetContext(ctx, &block, query, id); err != nil {
		return nil, err
	}
	return &block, nil
}

// CreateBlockedRange stores a new blocked range.
func (r *ScheduleRepository) CreateBlockedRange(ctx context.Context, block *models.BlockedRange) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO blocked_ranges (id, teacher_id, start_at, end_at, reason, recurring, recurrence_rule, created_at) VALUES (:id, :teacher_id, :start_at, :end_at, :reason, :recurring, :recurrence_rule, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, block); err != nil {
		return fmt.Errorf("create blocked range: %w", err)
	}
	return nil
}

// DeleteBlockedRange removes a blocked range by id.
func (r *ScheduleRepository) DeleteBlockedRange(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM blocked_ranges WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete blocked range: %w", err)
	}
	return nil
}

// UpsertBookingPolicy creates or replaces the teacher's policy.
func (r *ScheduleRepository) UpsertBookingPolicy(ctx context.Context, policy *models.BookingPolicy) error {
	policy.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO booking_policies (teacher_id, buffer_minutes, min_advance_hours, max_advance_days, allowed_durations, auto_accept, cancellation_hours, updated_at)
		VALUES (:teacher_id, :buffer_minutes, :min_advance_hours, :max_advance_days, :allowed_durations, :auto_accept, :cancellation_hours, :updated_at)
		ON CONFLICT (teacher_id) DO UPDATE SET buffer_minutes = EXCLUDED.buffer_minutes, min_advance_hours = EXCLUDED.min_advance_hours, max_advance_days = EXCLUDED.max_advance_days, allowed_durations = EXCLUDED.allowed_durations, auto_accept = EXCLUDED.auto_accept, cancellation_hours = EXCLUDED.cancellation_hours, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, policy); err != nil {
		return fmt.Errorf("upsert booking policy: %w", err)
	}
	return nil
}
