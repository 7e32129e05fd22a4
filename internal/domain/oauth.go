package domain

import "time"

// OAuthProfile holds user information returned by an OAuth provider,
// normalized to a provider-agnostic shape.
type OAuthProfile struct {
	ID    string
	Email string
	Name  string
	Image string
}

// OAuthTokens holds the token material returned by a code exchange.
type OAuthTokens struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}
