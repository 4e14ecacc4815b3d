package model

import "time"

// User represents the authenticated account
type User struct {
	ID              int64      `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Roles           []string   `json:"roles"`
	Banned          bool       `json:"banned,omitempty"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// HasRole returns true if the user carries the given role claim
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin returns true if the user carries the "admin" role
func (u *User) IsAdmin() bool {
	return u.HasRole("admin")
}
