package models

import "time"

// WeeklyRule declares a recurring availability window for one weekday.
// Start and end are local wall-clock "HH:MM" strings interpreted in Timezone.
// Rules for the same teacher and weekday must not overlap; ScheduleService
// enforces that at write time so slot generation can assume at most one
// containing rule per day.
type WeeklyRule struct {
	ID        string    `db:"id" json:"id"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	Weekday   int       `db:"weekday" json:"weekday"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BlockedRange is a hard unavailability window overriding the weekly schedule.
// RecurrenceRule is stored verbatim but never expanded; only the literal
// start/end excludes slots.
type BlockedRange struct {
	ID             string    `db:"id" json:"id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	StartAt        time.Time `db:"start_at" json:"start_at"`
	EndAt          time.Time `db:"end_at" json:"end_at"`
	Reason         *string   `db:"reason" json:"reason,omitempty"`
	Recurring      bool      `db:"recurring" json:"recurring"`
	RecurrenceRule *string   `db:"recurrence_rule" json:"recurrence_rule,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// CandidateSlot is a bookable interval annotated with its availability verdict.
// It is computed per request and never persisted.
type CandidateSlot struct {
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Available bool      `json:"available"`
	Reason    string    `json:"reason,omitempty"`
}

// AvailabilityCheck is the verdict for a single candidate interval.
type AvailabilityCheck struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// BookingValidation aggregates every constraint violated by a booking request.
type BookingValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
