package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lessonloop/lessonloop-api/internal/models"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
)

type stubScheduleStore struct {
	rules   []models.WeeklyRule
	blocks  []models.BlockedRange
	policy  *models.BookingPolicy
	created *models.WeeklyRule
	updated *models.WeeklyRule
	deleted []string

	createdBlock  *models.BlockedRange
	deletedBlocks []string
}

func (s *stubScheduleStore) ListWeeklyRules(_ context.Context, _ string) ([]models.WeeklyRule, error) {
	return s.rules, nil
}

func (s *stubScheduleStore) FindWeeklyRule(_ context.Context, id string) (*models.WeeklyRule, error) {
	for i := range s.rules {
		if s.rules[i].ID == id {
			return &s.rules[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubScheduleStore) CreateWeeklyRule(_ context.Context, rule *models.WeeklyRule) error {
	s.created = rule
	return nil
}

func (s *stubScheduleStore) UpdateWeeklyRule(_ context.Context, rule *models.WeeklyRule) error {
	s.updated = rule
	return nil
}

func (s *stubScheduleStore) DeleteWeeklyRule(_ context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubScheduleStore) ListBlockedRanges(_ context.Context, _ string) ([]models.BlockedRange, error) {
	return s.blocks, nil
}

func (s *stubScheduleStore) FindBlockedRange(_ context.Context, id string) (*models.BlockedRange, error) {
	for i := range s.blocks {
		if s.blocks[i].ID == id {
			return &s.blocks[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubScheduleStore) CreateBlockedRange(_ context.Context, block *models.BlockedRange) error {
	s.createdBlock = block
	return nil
}

func (s *stubScheduleStore) DeleteBlockedRange(_ context.Context, id string) error {
	s.deletedBlocks = append(s.deletedBlocks, id)
	return nil
}

func (s *stubScheduleStore) UpsertBookingPolicy(_ context.Context, policy *models.BookingPolicy) error {
	s.policy = policy
	return nil
}

func newScheduleFixture(store *stubScheduleStore) *ScheduleService {
	return NewScheduleService(store, nil, nil, nil)
}

func TestCreateWeeklyRule(t *testing.T) {
	store := &stubScheduleStore{}
	svc := newScheduleFixture(store)

	rule, err := svc.CreateWeeklyRule(context.Background(), "teacher-1", WeeklyRuleRequest{
		Weekday:   1,
		StartTime: "09:00",
		EndTime:   "17:00",
		Timezone:  "Europe/Berlin",
	})
	require.NoError(t, err)
	assert.True(t, rule.Active, "rules default to active")
	assert.Equal(t, "teacher-1", rule.TeacherID)
	require.NotNil(t, store.created)
}

func TestCreateWeeklyRuleRejectsBadTimes(t *testing.T) {
	svc := newScheduleFixture(&stubScheduleStore{})

	cases := []WeeklyRuleRequest{
		{Weekday: 1, StartTime: "9:00", EndTime: "17:00", Timezone: "UTC"},
		{Weekday: 1, StartTime: "09:00", EndTime: "25:00", Timezone: "UTC"},
		{Weekday: 1, StartTime: "17:00", EndTime: "09:00", Timezone: "UTC"},
		{Weekday: 1, StartTime: "09:00", EndTime: "17:00", Timezone: "Mars/Olympus"},
	}
	for _, req := range cases {
		_, err := svc.CreateWeeklyRule(context.Background(), "teacher-1", req)
		require.Error(t, err, "request %+v should fail", req)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrFormat.Code, appErr.Code)
	}
}

func TestCreateWeeklyRuleRejectsOverlap(t *testing.T) {
	store := &stubScheduleStore{rules: []models.WeeklyRule{{
		ID:        "rule-1",
		TeacherID: "teacher-1",
		Weekday:   1,
		StartTime: "09:00",
		EndTime:   "12:00",
		Timezone:  "UTC",
		Active:    true,
	}}}
	svc := newScheduleFixture(store)

	_, err := svc.CreateWeeklyRule(context.Background(), "teacher-1", WeeklyRuleRequest{
		Weekday:   1,
		StartTime: "11:00",
		EndTime:   "15:00",
		Timezone:  "UTC",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	// Touching windows do not overlap.
	_, err = svc.CreateWeeklyRule(context.Background(), "teacher-1", WeeklyRuleRequest{
		Weekday:   1,
		StartTime: "12:00",
		EndTime:   "15:00",
		Timezone:  "UTC",
	})
	require.NoError(t, err)

	// Same window on another weekday is fine.
	_, err = svc.CreateWeeklyRule(context.Background(), "teacher-1", WeeklyRuleRequest{
		Weekday:   2,
		StartTime: "11:00",
		EndTime:   "15:00",
		Timezone:  "UTC",
	})
	require.NoError(t, err)
}

func TestUpdateWeeklyRuleExcludesSelfFromOverlap(t *testing.T) {
	store := &stubScheduleStore{rules: []models.WeeklyRule{{
		ID:        "rule-1",
		TeacherID: "teacher-1",
		Weekday:   1,
		StartTime: "09:00",
		EndTime:   "12:00",
		Timezone:  "UTC",
		Active:    true,
	}}}
	svc := newScheduleFixture(store)

	rule, err := svc.UpdateWeeklyRule(context.Background(), "teacher-1", "rule-1", WeeklyRuleRequest{
		Weekday:   1,
		StartTime: "10:00",
		EndTime:   "13:00",
		Timezone:  "UTC",
	})
	require.NoError(t, err)
	assert.Equal(t, "rule-1", rule.ID)
	require.NotNil(t, store.updated)
}

func TestUpdateWeeklyRuleForbiddenForOtherTeacher(t *testing.T) {
	store := &stubScheduleStore{rules: []models.WeeklyRule{{
		ID:        "rule-1",
		TeacherID: "teacher-2",
		Weekday:   1,
		StartTime: "09:00",
		EndTime:   "12:00",
		Timezone:  "UTC",
	}}}
	svc := newScheduleFixture(store)

	_, err := svc.UpdateWeeklyRule(context.Background(), "teacher-1", "rule-1", WeeklyRuleRequest{
		Weekday:   1,
		StartTime: "10:00",
		EndTime:   "13:00",
		Timezone:  "UTC",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDeleteWeeklyRule(t *testing.T) {
	store := &stubScheduleStore{rules: []models.WeeklyRule{{
		ID:        "rule-1",
		TeacherID: "teacher-1",
	}}}
	svc := newScheduleFixture(store)

	require.NoError(t, svc.DeleteWeeklyRule(context.Background(), "teacher-1", "rule-1"))
	assert.Equal(t, []string{"rule-1"}, store.deleted)

	err := svc.DeleteWeeklyRule(context.Background(), "teacher-1", "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestCreateBlockedRange(t *testing.T) {
	store := &stubScheduleStore{}
	svc := newScheduleFixture(store)

	start := time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)
	block, err := svc.CreateBlockedRange(context.Background(), "teacher-1", BlockedRangeRequest{
		StartAt: start,
		EndAt:   start.Add(3 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", block.TeacherID)
	require.NotNil(t, store.createdBlock)

	_, err = svc.CreateBlockedRange(context.Background(), "teacher-1", BlockedRangeRequest{
		StartAt: start,
		EndAt:   start,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrFormat.Code, appErr.Code)
}

func TestUpdateBookingPolicy(t *testing.T) {
	store := &stubScheduleStore{}
	svc := newScheduleFixture(store)

	policy, err := svc.UpdateBookingPolicy(context.Background(), "teacher-1", BookingPolicyRequest{
		BufferMinutes:     10,
		MinAdvanceHours:   12,
		MaxAdvanceDays:    30,
		AllowedDurations:  []int{30, 45},
		AutoAccept:        true,
		CancellationHours: 12,
	})
	require.NoError(t, err)
	assert.True(t, policy.AllowsDuration(45))
	assert.False(t, policy.AllowsDuration(60))
	require.NotNil(t, store.policy)
	assert.Equal(t, "teacher-1", store.policy.TeacherID)
}

func TestUpdateBookingPolicyRejectsEmptyDurations(t *testing.T) {
	svc := newScheduleFixture(&stubScheduleStore{})

	_, err := svc.UpdateBookingPolicy(context.Background(), "teacher-1", BookingPolicyRequest{
		MinAdvanceHours:  24,
		MaxAdvanceDays:   90,
		AllowedDurations: nil,
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}
