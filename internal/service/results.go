package service

import "github.com/prperemyshlev/auth-engine/internal/domain"

// Generic failure messages. Credential checks never distinguish "no such
// user" from "wrong password" to prevent account enumeration.
const (
	msgInvalidCredentials = "invalid email or password"
	msgUserAlreadyExists  = "user with this email already exists"
)

// SignUpResult is the soft-failure result of a sign-up attempt. A failed
// pre-condition (user already exists) sets Success=false instead of
// returning an error.
type SignUpResult struct {
	Success              bool         `json:"success"`
	User                 *domain.User `json:"user,omitempty"`
	RequiresVerification bool         `json:"requires_verification"`
	Error                string       `json:"error,omitempty"`
}

// SignInResult is the soft-failure result of a credential or OAuth sign-in.
// On success Session and Token carry the minted session; Token is either the
// opaque session token or the signed stateless token depending on strategy.
type SignInResult struct {
	Success bool            `json:"success"`
	User    *domain.User    `json:"user,omitempty"`
	Session *domain.Session `json:"session,omitempty"`
	Token   string          `json:"-"`
	// IsNewUser is set when an OAuth callback created the user.
	IsNewUser bool   `json:"is_new_user,omitempty"`
	Error     string `json:"error,omitempty"`
}

// SessionData is the strategy-agnostic return shape of session lookups:
// both strategies converge on the same {user, session} pair.
type SessionData struct {
	User    *domain.User    `json:"user"`
	Session *domain.Session `json:"session"`
}

func failedSignIn() *SignInResult {
	return &SignInResult{Success: false, Error: msgInvalidCredentials}
}
