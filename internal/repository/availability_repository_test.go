package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAvailabilityRepositoryListActiveWeeklyRules(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"id", "teacher_id", "weekday", "start_time", "end_time", "timezone", "active", "created_at", "updated_at"}).
		AddRow("rule-1", "teacher-1", 1, "09:00", "17:00", "UTC", true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, weekday, start_time, end_time, timezone, active, created_at, updated_at FROM weekly_rules WHERE teacher_id = $1 AND active = TRUE ORDER BY weekday ASC, start_time ASC")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	rules, err := repo.ListActiveWeeklyRules(context.Background(), "teacher-1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 1, rules[0].Weekday)
	assert.Equal(t, "09:00", rules[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryListBlockedRanges(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	from := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)
	rows := sqlmock.NewRows([]string{"id", "teacher_id", "start_at", "end_at", "reason", "recurring", "recurrence_rule", "created_at"}).
		AddRow("block-1", "teacher-1", from.Add(24*time.Hour), from.Add(27*time.Hour), nil, false, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, teacher_id, start_at, end_at, reason, recurring, recurrence_rule, created_at FROM blocked_ranges WHERE teacher_id = $1 AND start_at < $3 AND end_at > $2 ORDER BY start_at ASC")).
		WithArgs("teacher-1", from, to).
		WillReturnRows(rows)

	blocks, err := repo.ListBlockedRanges(context.Background(), "teacher-1", from, to)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Nil(t, blocks[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryGetBookingPolicy(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := sqlmock.NewRows([]string{"teacher_id", "buffer_minutes", "min_advance_hours", "max_advance_days", "allowed_durations", "auto_accept", "cancellation_hours", "updated_at"}).
		AddRow("teacher-1", 10, 12, 60, "{30,60}", true, 12, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT teacher_id, buffer_minutes, min_advance_hours, max_advance_days, allowed_durations, auto_accept, cancellation_hours, updated_at FROM booking_policies WHERE teacher_id = $1")).
		WithArgs("teacher-1").
		WillReturnRows(rows)

	policy, err := repo.GetBookingPolicy(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, 10, policy.BufferMinutes)
	assert.True(t, policy.AllowsDuration(30))
	assert.False(t, policy.AllowsDuration(90))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryGetBookingPolicyMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery("SELECT teacher_id, buffer_minutes").
		WithArgs("teacher-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetBookingPolicy(context.Background(), "teacher-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}
