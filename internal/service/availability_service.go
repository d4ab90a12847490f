package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lessonloop/lessonloop-api/internal/models"
	"github.com/lessonloop/lessonloop-api/internal/timeutil"
	appErrors "github.com/lessonloop/lessonloop-api/pkg/errors"
)

const (
	reasonLessonConflict     = "teacher has another lesson at this time"
	reasonBlocked            = "teacher is unavailable at this time"
	reasonOutsideSchedule    = "outside teacher's regular availability"
	reasonPastBooking        = "cannot book a lesson in the past"
	reasonBusinessHoursBound = "select a time between 6 AM and 11 PM"
)

type availabilityStore interface {
	ListActiveWeeklyRules(ctx context.Context, teacherID string) ([]models.WeeklyRule, error)
	ListBlockedRanges(ctx context.Context, teacherID string, from, to time.Time) ([]models.BlockedRange, error)
	GetBookingPolicy(ctx context.Context, teacherID string) (*models.BookingPolicy, error)
}

type activeBookingReader interface {
	ListActiveInRange(ctx context.Context, teacherID string, from, to time.Time) ([]models.Booking, error)
}

// AvailabilityService computes bookable slots and availability verdicts from
// the teacher's weekly rules, blocked ranges, booking policy and existing
// lessons. It reads projections from the store and never mutates state.
type AvailabilityService struct {
	store    availabilityStore
	bookings activeBookingReader
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewAvailabilityService instantiates AvailabilityService.
func NewAvailabilityService(store availabilityStore, bookings activeBookingReader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{
		store:    store,
		bookings: bookings,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// scheduleSnapshot is the in-process projection a single request evaluates
// against. Interval comparisons are pure functions over this data; nothing is
// delegated to SQL operators.
type scheduleSnapshot struct {
	rules    []models.WeeklyRule
	blocks   []models.BlockedRange
	bookings []models.Booking
	policy   *models.BookingPolicy
}

func (s *AvailabilityService) loadSnapshot(ctx context.Context, teacherID string, from, to time.Time) (*scheduleSnapshot, error) {
	rules, err := s.store.ListActiveWeeklyRules(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly rules")
	}

	blocks, err := s.store.ListBlockedRanges(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked ranges")
	}

	bookings, err := s.bookings.ListActiveInRange(ctx, teacherID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing lessons")
	}

	policy, err := s.policyOrDefault(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	return &scheduleSnapshot{rules: rules, blocks: blocks, bookings: bookings, policy: policy}, nil
}

func (s *AvailabilityService) policyOrDefault(ctx context.Context, teacherID string) (*models.BookingPolicy, error) {
	policy, err := s.store.GetBookingPolicy(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DefaultBookingPolicy(teacherID), nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking policy")
	}
	return policy, nil
}

// evaluate runs the conflict chain for [start, end) against the snapshot.
// Checks run in strict precedence order and the first failure wins:
// existing lessons, blocked ranges, weekly schedule membership, advance
// notice, booking horizon.
func (s *AvailabilityService) evaluate(snap *scheduleSnapshot, start, end, now time.Time) models.AvailabilityCheck {
	for _, booking := range snap.bookings {
		if !booking.Status.Active() {
			continue
		}
		if timeutil.OverlapsInstant(start, end, booking.StartAt, booking.EndAt) {
			return models.AvailabilityCheck{Available: false, Reason: reasonLessonConflict}
		}
	}

	// A block rejects only candidates it fully contains; a slot straddling
	// the block's edge passes this check. Mirrors the legacy containment
	// test (see DESIGN.md).
	for _, block := range snap.blocks {
		if !block.StartAt.After(start) && !block.EndAt.Before(end) {
			reason := reasonBlocked
			if block.Reason != nil && *block.Reason != "" {
				reason = *block.Reason
			}
			return models.AvailabilityCheck{Available: false, Reason: reason}
		}
	}

	if !s.withinWeeklyRules(snap.rules, start, end) {
		return models.AvailabilityCheck{Available: false, Reason: reasonOutsideSchedule}
	}

	minAdvance := time.Duration(snap.policy.MinAdvanceHours) * time.Hour
	if start.Sub(now) < minAdvance {
		return models.AvailabilityCheck{
			Available: false,
			Reason:    fmt.Sprintf("bookings require at least %d hours notice", snap.policy.MinAdvanceHours),
		}
	}

	maxAdvance := time.Duration(snap.policy.MaxAdvanceDays) * 24 * time.Hour
	if start.Sub(now) > maxAdvance {
		return models.AvailabilityCheck{
			Available: false,
			Reason:    fmt.Sprintf("bookings can be made at most %d days in advance", snap.policy.MaxAdvanceDays),
		}
	}

	return models.AvailabilityCheck{Available: true}
}

// withinWeeklyRules reports whether some active rule fully contains the
// candidate, compared in the rule's own timezone.
func (s *AvailabilityService) withinWeeklyRules(rules []models.WeeklyRule, start, end time.Time) bool {
	duration := int(end.Sub(start) / time.Minute)
	for _, rule := range rules {
		loc := s.ruleLocation(rule)
		localStart := start.In(loc)
		if int(localStart.Weekday()) != rule.Weekday {
			continue
		}
		ruleStart, err := timeutil.MinutesFromClock(rule.StartTime)
		if err != nil {
			s.logger.Warn("skipping weekly rule with malformed start", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		ruleEnd, err := timeutil.MinutesFromClock(rule.EndTime)
		if err != nil {
			s.logger.Warn("skipping weekly rule with malformed end", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		startMin := localStart.Hour()*60 + localStart.Minute()
		endMin := startMin + duration
		if ruleStart <= startMin && ruleEnd >= endMin {
			return true
		}
	}
	return false
}

func (s *AvailabilityService) ruleLocation(rule models.WeeklyRule) *time.Location {
	if rule.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(rule.Timezone)
	if err != nil {
		s.logger.Warn("unknown rule timezone, falling back to UTC", zap.String("timezone", rule.Timezone))
		return time.UTC
	}
	return loc
}

// PolicyFor exposes the teacher's effective booking policy, falling back to
// the documented defaults when none is stored.
func (s *AvailabilityService) PolicyFor(ctx context.Context, teacherID string) (*models.BookingPolicy, error) {
	return s.policyOrDefault(ctx, teacherID)
}

// CheckAvailability decides whether [start, end) is bookable for the teacher.
// An unavailable interval is a normal negative result, not an error.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, teacherID string, start, end time.Time) (*models.AvailabilityCheck, error) {
	if !start.Before(end) {
		return nil, appErrors.Clone(appErrors.ErrFormat, "interval start must precede its end")
	}

	snap, err := s.loadSnapshot(ctx, teacherID, start, end)
	if err != nil {
		return nil, err
	}

	check := s.evaluate(snap, start, end, s.now().UTC())
	return &check, nil
}

// GenerateSlots enumerates candidate slots of the requested duration between
// from and to (calendar days, inclusive), annotated with availability
// verdicts. Rules, policy, blocks and lessons are fetched once per call.
func (s *AvailabilityService) GenerateSlots(ctx context.Context, teacherID string, from, to time.Time, durationMinutes int) ([]models.CandidateSlot, error) {
	if durationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrFormat, "duration must be a positive number of minutes")
	}
	if to.Before(from) {
		return nil, appErrors.Clone(appErrors.ErrFormat, "date range end must not precede its start")
	}

	cacheKey := slotsCacheKey(teacherID, from, to, durationMinutes)
	var cached []models.CandidateSlot
	if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	rules, err := s.store.ListActiveWeeklyRules(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly rules")
	}
	if len(rules) == 0 {
		return []models.CandidateSlot{}, nil
	}

	policy, err := s.policyOrDefault(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	// All days iterate in the teacher's calendar timezone; rules share one
	// timezone per teacher.
	loc := s.ruleLocation(rules[0])

	firstDay := time.Date(from.In(loc).Year(), from.In(loc).Month(), from.In(loc).Day(), 0, 0, 0, 0, loc)
	lastDay := time.Date(to.In(loc).Year(), to.In(loc).Month(), to.In(loc).Day(), 0, 0, 0, 0, loc)

	snap := &scheduleSnapshot{rules: rules, policy: policy}
	snap.blocks, err = s.store.ListBlockedRanges(ctx, teacherID, firstDay, lastDay.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load blocked ranges")
	}
	snap.bookings, err = s.bookings.ListActiveInRange(ctx, teacherID, firstDay, lastDay.AddDate(0, 0, 1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing lessons")
	}

	byWeekday := rulesByWeekday(rules)
	step := durationMinutes + policy.BufferMinutes
	now := s.now().UTC()

	slots := []models.CandidateSlot{}
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		rule, ok := byWeekday[int(day.Weekday())]
		if !ok {
			continue
		}
		startMin, err := timeutil.MinutesFromClock(rule.StartTime)
		if err != nil {
			continue
		}
		endMin, err := timeutil.MinutesFromClock(rule.EndTime)
		if err != nil {
			continue
		}
		for minute := startMin; minute+durationMinutes <= endMin; minute += step {
			slotStart := day.Add(time.Duration(minute) * time.Minute)
			slotEnd := slotStart.Add(time.Duration(durationMinutes) * time.Minute)
			if slotStart.Before(now) {
				continue
			}
			check := s.evaluate(snap, slotStart, slotEnd, now)
			slots = append(slots, models.CandidateSlot{
				StartAt:   slotStart,
				EndAt:     slotEnd,
				Available: check.Available,
				Reason:    check.Reason,
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartAt.Before(slots[j].StartAt) })

	s.metrics.RecordSlotsGenerated(len(slots))
	_ = s.cache.Set(ctx, cacheKey, slots, 0)

	return slots, nil
}

// ValidateBooking is the admission gate run before a lesson record is
// created. Unlike CheckAvailability it accumulates every violated constraint
// so the caller can report all problems at once.
func (s *AvailabilityService) ValidateBooking(ctx context.Context, teacherID string, start time.Time, durationMinutes int) (*models.BookingValidation, error) {
	if durationMinutes <= 0 {
		return nil, appErrors.Clone(appErrors.ErrFormat, "duration must be a positive number of minutes")
	}

	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	snap, err := s.loadSnapshot(ctx, teacherID, start, end)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var violations []string

	if start.Before(now) {
		violations = append(violations, reasonPastBooking)
	}

	if check := s.evaluate(snap, start, end, now); !check.Available {
		// A past start also fails the advance-notice check; reporting both
		// would restate the same problem.
		noticeReason := fmt.Sprintf("bookings require at least %d hours notice", snap.policy.MinAdvanceHours)
		if !(start.Before(now) && check.Reason == noticeReason) {
			violations = append(violations, check.Reason)
		}
	}

	if !snap.policy.AllowsDuration(durationMinutes) {
		violations = append(violations, fmt.Sprintf("lesson duration must be one of: %s minutes", formatDurations(snap.policy)))
	}

	hour := start.In(s.teacherLocation(snap.rules)).Hour()
	if hour < 6 || hour > 23 {
		violations = append(violations, reasonBusinessHoursBound)
	}

	valid := len(violations) == 0
	s.metrics.RecordBookingValidation(valid)

	return &models.BookingValidation{Valid: valid, Errors: violations}, nil
}

func (s *AvailabilityService) teacherLocation(rules []models.WeeklyRule) *time.Location {
	if len(rules) == 0 {
		return time.UTC
	}
	return s.ruleLocation(rules[0])
}

func rulesByWeekday(rules []models.WeeklyRule) map[int]models.WeeklyRule {
	byWeekday := make(map[int]models.WeeklyRule, len(rules))
	for _, rule := range rules {
		if _, exists := byWeekday[rule.Weekday]; !exists {
			byWeekday[rule.Weekday] = rule
		}
	}
	return byWeekday
}

func formatDurations(policy *models.BookingPolicy) string {
	parts := make([]string, 0, len(policy.AllowedDurations))
	for _, d := range policy.AllowedDurations {
		parts = append(parts, fmt.Sprintf("%d", d))
	}
	return strings.Join(parts, ", ")
}

func slotsCacheKey(teacherID string, from, to time.Time, durationMinutes int) string {
	return fmt.Sprintf("slots:%s:%s:%s:%d", teacherID, from.Format("2006-01-02"), to.Format("2006-01-02"), durationMinutes)
}
