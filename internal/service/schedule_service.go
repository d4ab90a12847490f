package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/timeutil"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
)

type scheduleStore interface {
	ListWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error)
	FindWeeklyRule(ctx context.Context, id string) (*models.WeeklyRule, error)
	CreateWeeklyRule(ctx context.Context, rule *models.WeeklyRule) error
	UpdateWeeklyRule(ctx context.Context, rule *models.WeeklyRule) error
	DeleteWeeklyRule(ctx context.Context, id string) error
	ListBlockedRanges(ctx context.Context, teacherID string) ([]models.BlockedRange, error)
	FindBlockedRange(ctx context.Context, id string) (*models.BlockedRange, error)
	CreateBlockedRange(ctx context.Context, block *models.BlockedRange) error
	DeleteBlockedRange(ctx context.Context, id string) error
	UpsertBookingPolicy(ctx context.Context, policy *models.BookingPolicy) error
}

// WeeklyRuleRequest carries the fields for creating or updating a rule.
type WeeklyRuleRequest struct {
	Weekday   int    `json:"weekday" validate:"min=0,max=6"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Timezone  string `json:"timezone" validate:"required"`
	Active    *bool  `json:"active"`
}

// BlockedRangeRequest carries the fields for creating a blocked range.
type BlockedRangeRequest struct {
	StartAt        time.Time `json:"start_at" validate:"required"`
	EndAt          time.Time `json:"end_at" validate:"required"`
	Reason         *string   `json:"reason"`
	Recurring      bool      `json:"recurring"`
	RecurrenceRule *string   `json:"recurrence_rule"`
}

// BookingPolicyRequest carries the teacher's policy settings.
type BookingPolicyRequest struct {
	BufferMinutes     int   `json:"buffer_minutes" validate:"min=0"`
	MinAdvanceHours   int   `json:"min_advance_hours" validate:"min=1"`
	MaxAdvanceDays    int   `json:"max_advance_days" validate:"min=1"`
	AllowedDurations  []int `json:"allowed_durations" validate:"required,min=1,dive,gt=0"`
	AutoAccept        bool  `json:"auto_accept"`
	CancellationHours int   `json:"cancellation_hours" validate:"min=0"`
}

// ScheduleService manages a teacher's weekly rules, blocked ranges and booking
// policy. Overlap between rules on the same weekday is rejected here so the
// slot generator can rely on at most one containing rule per day.
type ScheduleService struct {
	store     scheduleStore
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService instantiates ScheduleService.
func NewScheduleService(store scheduleStore, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{store: store, cache: cache, validator: validate, logger: logger}
}

// ListWeeklyRules returns all of the teacher's rules.
func (s *ScheduleService) ListWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error) {
	rules, err := s.store.ListWeeklyRules(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weekly rules")
	}
	return rules, nil
}

// CreateWeeklyRule validates and stores a new recurring rule.
func (s *ScheduleService) CreateWeeklyRule(ctx context.Context, teacherID string, req WeeklyRuleRequest) (*models.WeeklyRule, error) {
	rule, err := s.buildRule(teacherID, req)
	if err != nil {
		return nil, err
	}
	if err := s.checkRuleOverlap(ctx, rule, ""); err != nil {
		return nil, err
	}
	if err := s.store.CreateWeeklyRule(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create weekly rule")
	}
	s.invalidateSlots(ctx, teacherID)
	return rule, nil
}

// UpdateWeeklyRule validates and replaces an existing rule's fields.
func (s *ScheduleService) UpdateWeeklyRule(ctx context.Context, teacherID, ruleID string, req WeeklyRuleRequest) (*models.WeeklyRule, error) {
	existing, err := s.store.FindWeeklyRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "weekly rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly rule")
	}
	if existing.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "rule belongs to another teacher")
	}

	rule, err := s.buildRule(teacherID, req)
	if err != nil {
		return nil, err
	}
	rule.ID = existing.ID
	rule.CreatedAt = existing.CreatedAt

	if err := s.checkRuleOverlap(ctx, rule, rule.ID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateWeeklyRule(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update weekly rule")
	}
	s.invalidateSlots(ctx, teacherID)
	return rule, nil
}

// DeleteWeeklyRule removes one of the teacher's rules.
func (s *ScheduleService) DeleteWeeklyRule(ctx context.Context, teacherID, ruleID string) error {
	existing, err := s.store.FindWeeklyRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "weekly rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly rule")
	}
	if existing.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "rule belongs to another teacher")
	}
	if err := s.store.DeleteWeeklyRule(ctx, ruleID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete weekly rule")
	}
	s.invalidateSlots(ctx, teacherID)
	return nil
}

// ListBlockedRanges returns all of the teacher's blocked ranges.
func (s *ScheduleService) ListBlockedRanges(ctx context.Context, teacherID string) ([]models.BlockedRange, error) {
	blocks, err := s.store.ListBlockedRanges(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocked ranges")
	}
	return blocks, nil
}

// CreateBlockedRange validates and stores a new blocked range. Recurrence
// rules are stored verbatim; they are not expanded for slot exclusion.
func (s *ScheduleService) CreateBlockedRange(ctx context.Context, teacherID string, req BlockedRangeRequest) (*models.BlockedRange, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked range payload")
	}
	if !req.EndAt.After(req.StartAt) {
		return nil, appErrors.Clone(appErrors.ErrFormat, "end must be after start")
	}
	block := &models.BlockedRange{
		TeacherID:      teacherID,
		StartAt:        req.StartAt.UTC(),
		EndAt:          req.EndAt.UTC(),
		Reason:         req.Reason,
		Recurring:      req.Recurring,
		RecurrenceRule: req.RecurrenceRule,
	}
	if err := s.store.CreateBlockedRange(ctx, block); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create blocked range")
	}
	s.invalidateSlots(ctx, teacherID)
	return block, nil
}

// DeleteBlockedRange removes one of the teacher's blocked ranges.
func (s *ScheduleService) DeleteBlockedRange(ctx context.Context, teacherID, blockID string) error {
	existing, err := s.store.FindBlockedRange(ctx, blockID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blocked range not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked range")
	}
	if existing.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "blocked range belongs to another teacher")
	}
	if err := s.store.DeleteBlockedRange(ctx, blockID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete blocked range")
	}
	s.invalidateSlots(ctx, teacherID)
	return nil
}

// UpdateBookingPolicy creates or replaces the teacher's booking policy.
func (s *ScheduleService) UpdateBookingPolicy(ctx context.Context, teacherID string, req BookingPolicyRequest) (*models.BookingPolicy, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking policy payload")
	}
	durations := make(pq.Int64Array, 0, len(req.AllowedDurations))
	for _, d := range req.AllowedDurations {
		durations = append(durations, int64(d))
	}
	policy := &models.BookingPolicy{
		TeacherID:         teacherID,
		BufferMinutes:     req.BufferMinutes,
		MinAdvanceHours:   req.MinAdvanceHours,
		MaxAdvanceDays:    req.MaxAdvanceDays,
		AllowedDurations:  durations,
		AutoAccept:        req.AutoAccept,
		CancellationHours: req.CancellationHours,
	}
	if err := s.store.UpsertBookingPolicy(ctx, policy); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save booking policy")
	}
	s.invalidateSlots(ctx, teacherID)
	return policy, nil
}

func (s *ScheduleService) buildRule(teacherID string, req WeeklyRuleRequest) (*models.WeeklyRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekly rule payload")
	}
	startMin, err := timeutil.MinutesFromClock(req.StartTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrFormat, "start_time must be HH:MM")
	}
	endMin, err := timeutil.MinutesFromClock(req.EndTime)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrFormat, "end_time must be HH:MM")
	}
	if endMin <= startMin {
		return nil, appErrors.Clone(appErrors.ErrFormat, "end_time must be after start_time")
	}
	if _, err := time.LoadLocation(req.Timezone); err != nil {
		return nil, appErrors.Clone(appErrors.ErrFormat, "unknown timezone")
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.WeeklyRule{
		TeacherID: teacherID,
		Weekday:   req.Weekday,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Timezone:  req.Timezone,
		Active:    active,
	}, nil
}

// checkRuleOverlap rejects a rule whose window intersects another rule on the
// same weekday. excludeID skips the rule being updated.
func (s *ScheduleService) checkRuleOverlap(ctx context.Context, rule *models.WeeklyRule, excludeID string) error {
	existing, err := s.store.ListWeeklyRules(ctx, rule.TeacherID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weekly rules")
	}
	startMin, _ := timeutil.MinutesFromClock(rule.StartTime)
	endMin, _ := timeutil.MinutesFromClock(rule.EndTime)

	for _, other := range existing {
		if other.ID == excludeID || other.Weekday != rule.Weekday {
			continue
		}
		otherStart, err := timeutil.MinutesFromClock(other.StartTime)
		if err != nil {
			continue
		}
		otherEnd, err := timeutil.MinutesFromClock(other.EndTime)
		if err != nil {
			continue
		}
		if timeutil.Overlaps(startMin, endMin, otherStart, otherEnd) {
			return appErrors.Clone(appErrors.ErrConflict, "rule overlaps an existing rule on the same weekday")
		}
	}
	return nil
}

func (s *ScheduleService) invalidateSlots(ctx context.Context, teacherID string) {
	if err := s.cache.Invalidate(ctx, "slots:"+teacherID+":*"); err != nil {
		s.logger.Warn("failed to invalidate slot cache", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}
