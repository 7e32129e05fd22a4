package domain

import "time"

// SessionStrategy selects how sessions are persisted and validated.
type SessionStrategy string

const (
	// SessionStrategyDatabase stores sessions as rows keyed by an opaque
	// token; sessions can be actively revoked.
	SessionStrategyDatabase SessionStrategy = "database"

	// SessionStrategyJWT mints self-contained signed tokens; nothing is
	// stored server-side and revocation is a no-op.
	SessionStrategyJWT SessionStrategy = "jwt"
)

// Valid reports whether the strategy is one of the recognized values.
func (s SessionStrategy) Valid() bool {
	return s == SessionStrategyDatabase || s == SessionStrategyJWT
}

// Session represents an authenticated context. For the database strategy
// Token is an opaque random value resolved by a store lookup; for the JWT
// strategy the session is reconstructed from token claims and never persisted.
type Session struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Token     string    `json:"-" db:"token"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}
