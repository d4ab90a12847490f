package models

import (
	"time"

	"github.com/lib/pq"
)

// BookingPolicy is the teacher-configurable rule set governing notice windows,
// horizon, buffer spacing and allowed lesson durations. At most one per teacher.
type BookingPolicy struct {
	TeacherID         string        `db:"teacher_id" json:"teacher_id"`
	BufferMinutes     int           `db:"buffer_minutes" json:"buffer_minutes"`
	MinAdvanceHours   int           `db:"min_advance_hours" json:"min_advance_hours"`
	MaxAdvanceDays    int           `db:"max_advance_days" json:"max_advance_days"`
	AllowedDurations  pq.Int64Array `db:"allowed_durations" json:"allowed_durations"`
	AutoAccept        bool          `db:"auto_accept" json:"auto_accept"`
	CancellationHours int           `db:"cancellation_hours" json:"cancellation_hours"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// DefaultBookingPolicy applies when a teacher has not stored a policy.
func DefaultBookingPolicy(teacherID string) *BookingPolicy {
	return &BookingPolicy{
		TeacherID:         teacherID,
		BufferMinutes:     15,
		MinAdvanceHours:   24,
		MaxAdvanceDays:    90,
		AllowedDurations:  pq.Int64Array{30, 60, 90, 120},
		AutoAccept:        false,
		CancellationHours: 24,
	}
}

// AllowsDuration reports whether the given lesson length is permitted.
func (p *BookingPolicy) AllowsDuration(minutes int) bool {
	for _, d := range p.AllowedDurations {
		if int(d) == minutes {
			return true
		}
	}
	return false
}
