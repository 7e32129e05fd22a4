package service

import (
	"net/http"
	"time"
)

// SessionCookieName is the cookie under which the session token travels.
const SessionCookieName = "auth_session"

// SessionCookie builds the cookie carrying a freshly minted session token.
// HttpOnly always; Secure only when the deployment serves https.
func SessionCookie(token string, maxAge time.Duration, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// LogoutCookie builds the expiring cookie that clears the session on the
// client. Attributes match SessionCookie so browsers treat it as the same
// cookie.
func LogoutCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
