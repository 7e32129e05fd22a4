package domain

import "time"

// User represents a user in the system. PasswordHash is empty for users
// created through an OAuth provider who never set a password.
type User struct {
	ID              string     `json:"id" db:"id"`
	Email           string     `json:"email" db:"email"`
	Name            *string    `json:"name" db:"name"`
	PasswordHash    string     `json:"-" db:"password_hash"`
	Image           *string    `json:"image" db:"image"`
	IsEmailVerified bool       `json:"is_email_verified" db:"is_email_verified"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	LastLoginAt     *time.Time `json:"last_login_at" db:"last_login_at"`
}

// HasPassword reports whether the user can authenticate with a password.
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
