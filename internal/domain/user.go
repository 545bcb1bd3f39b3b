package domain

import (
	"time"
)

// User represents an anonymous patient identity together with the optional
// onboarding profile captured by the dashboard.
type User struct {
	UserID          string    `json:"user_id"`
	Username        string    `json:"username"`
	FullName        string    `json:"full_name,omitempty"`
	DateOfBirth     string    `json:"date_of_birth,omitempty"`
	Conditions      string    `json:"conditions,omitempty"`
	PreferredClinic string    `json:"preferred_clinic,omitempty"`
	LastSeenAt      time.Time `json:"last_seen_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Onboarded returns true once the user has completed the onboarding form.
func (u *User) Onboarded() bool {
	return u.FullName != ""
}
