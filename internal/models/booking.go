package models

import "time"

// BookingStatus enumerates the lesson booking lifecycle.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingExpired   BookingStatus = "EXPIRED"
)

// Active reports whether the status still occupies the teacher's calendar.
// Only PENDING and CONFIRMED bookings count as conflicts.
func (s BookingStatus) Active() bool {
	return s == BookingPending || s == BookingConfirmed
}

// Booking represents a scheduled lesson between a student and a teacher.
type Booking struct {
	ID              string        `db:"id" json:"id"`
	TeacherID       string        `db:"teacher_id" json:"teacher_id"`
	StudentID       string        `db:"student_id" json:"student_id"`
	Subject         string        `db:"subject" json:"subject"`
	StartAt         time.Time     `db:"start_at" json:"start_at"`
	EndAt           time.Time     `db:"end_at" json:"end_at"`
	DurationMinutes int           `db:"duration_minutes" json:"duration_minutes"`
	Status          BookingStatus `db:"status" json:"status"`
	CancelledBy     *string       `db:"cancelled_by" json:"cancelled_by,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// BookingFilter describes query params for listing bookings.
type BookingFilter struct {
	TeacherID string
	StudentID string
	Status    string
	From      *time.Time
	To        *time.Time
	Page      int
	PageSize  int
}
