package domain

import "time"

// Account represents an external OAuth provider identity linked to a user.
// The (provider, provider_account_id) pair is unique, and a user holds at
// most one account per provider.
type Account struct {
	ID                string     `json:"id" db:"id"`
	UserID            string     `json:"user_id" db:"user_id"`
	Provider          string     `json:"provider" db:"provider"` // google, github, ...
	ProviderAccountID string     `json:"provider_account_id" db:"provider_account_id"`
	AccessToken       *string    `json:"-" db:"access_token"`
	RefreshToken      *string    `json:"-" db:"refresh_token"`
	ExpiresAt         *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}
