package domain

import "time"

// Token purposes recognized by the engine.
const (
	TokenPurposePasswordReset = "password_reset"
)

// VerificationToken is a single-use, time-boxed secret bound to an
// identifier (usually an email). It is deleted on first successful use.
type VerificationToken struct {
	ID         string    `json:"id" db:"id"`
	Identifier string    `json:"identifier" db:"identifier"`
	Token      string    `json:"-" db:"token"`
	Purpose    string    `json:"purpose" db:"purpose"`
	ExpiresAt  time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// IsExpired checks if the token has expired.
func (t *VerificationToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// SessionClaims represents the claims embedded in a stateless session token.
type SessionClaims struct {
	UserID          string `json:"user_id"`
	Email           string `json:"email"`
	Name            string `json:"name,omitempty"`
	IsEmailVerified bool   `json:"is_email_verified"`
	Exp             int64  `json:"exp"`
	Iat             int64  `json:"iat"`
}

// IsExpired checks if the claims have expired.
func (c SessionClaims) IsExpired() bool {
	return time.Now().Unix() > c.Exp
}
