package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/auth-engine/internal/domain"
)

// sessionStrategy abstracts where session state lives: database rows with
// opaque tokens, or self-contained signed tokens. A strategy never returns an
// error for an absent, expired or malformed token; that is a nil SessionData.
type sessionStrategy interface {
	Create(ctx context.Context, user *domain.User) (*domain.Session, error)
	Get(ctx context.Context, token string) (*SessionData, error)
	Delete(ctx context.Context, token string) error
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)
	CleanupExpired(ctx context.Context) (int64, error)
}

// SessionManager issues, validates and revokes sessions through the
// configured strategy.
type SessionManager struct {
	strategy sessionStrategy
	name     domain.SessionStrategy
	maxAge   time.Duration
}

func newSessionManager(strategy sessionStrategy, name domain.SessionStrategy, maxAge time.Duration) *SessionManager {
	return &SessionManager{strategy: strategy, name: name, maxAge: maxAge}
}

// Strategy reports which strategy is active.
func (m *SessionManager) Strategy() domain.SessionStrategy { return m.name }

// MaxAge is the configured session lifetime.
func (m *SessionManager) MaxAge() time.Duration { return m.maxAge }

// CreateSession mints a session for the user.
func (m *SessionManager) CreateSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	return m.strategy.Create(ctx, user)
}

// ValidateSession resolves a token to its session and user. Unknown, expired
// and malformed tokens all yield (nil, nil). Renewal is part of validation:
// the database strategy slides the session's expiry forward on every
// successful lookup, so there is no separate update operation; stateless
// tokens keep their original expiry.
func (m *SessionManager) ValidateSession(ctx context.Context, token string) (*SessionData, error) {
	if token == "" {
		return nil, nil
	}
	return m.strategy.Get(ctx, token)
}

// DeleteSession revokes a single session. Revoking a token that no longer
// exists is a success.
func (m *SessionManager) DeleteSession(ctx context.Context, token string) error {
	return m.strategy.Delete(ctx, token)
}

// DeleteUserSessions revokes every session belonging to the user and reports
// how many were removed.
func (m *SessionManager) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return m.strategy.DeleteAllForUser(ctx, userID)
}

// CleanupExpiredSessions purges expired session state.
func (m *SessionManager) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	return m.strategy.CleanupExpired(ctx)
}
