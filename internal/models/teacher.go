package models

import "time"

// Teacher represents a tutor offering lessons on the marketplace.
type Teacher struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Email      string    `db:"email" json:"email"`
	FullName   string    `db:"full_name" json:"full_name"`
	Headline   *string   `db:"headline" json:"headline,omitempty"`
	Timezone   string    `db:"timezone" json:"timezone"`
	HourlyRate *float64  `db:"hourly_rate" json:"hourly_rate,omitempty"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}
