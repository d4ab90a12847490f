package models

import "time"

// CalendarContact identifies an organizer or attendee on an exported event.
type CalendarContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CalendarLesson is the projection of a booking handed to the iCal exporter.
type CalendarLesson struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	StartAt         time.Time       `json:"start_at"`
	DurationMinutes int             `json:"duration_minutes"`
	Organizer       CalendarContact `json:"organizer"`
	Attendee        CalendarContact `json:"attendee"`
}
