package service

import (
	"context"
	"errors"
	"time"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

// databaseStrategy stores sessions as rows keyed by an opaque random token.
// Validation slides the expiry forward, so active sessions stay alive.
type databaseStrategy struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	maxAge   time.Duration
}

func newDatabaseStrategy(sessions repository.SessionRepository, users repository.UserRepository, maxAge time.Duration) *databaseStrategy {
	return &databaseStrategy{sessions: sessions, users: users, maxAge: maxAge}
}

func (s *databaseStrategy) Create(ctx context.Context, user *domain.User) (*domain.Session, error) {
	token, err := utils.GenerateOpaqueToken()
	if err != nil {
		return nil, &AuthError{Code: "token_generation_failed", Status: 500, Message: err.Error()}
	}

	session := &domain.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: time.Now().Add(s.maxAge),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, &DatabaseError{Op: "create session", Err: err}
	}
	return session, nil
}

func (s *databaseStrategy) Get(ctx context.Context, token string) (*SessionData, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, &DatabaseError{Op: "get session", Err: err}
	}

	if session.IsExpired() {
		// Lazy purge; periodic cleanup handles the rest.
		_ = s.sessions.Delete(ctx, token)
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = s.sessions.Delete(ctx, token)
			return nil, nil
		}
		return nil, &DatabaseError{Op: "get session user", Err: err}
	}

	newExpiry := time.Now().Add(s.maxAge)
	if err := s.sessions.Touch(ctx, token, newExpiry); err == nil {
		session.ExpiresAt = newExpiry
	}

	return &SessionData{User: user, Session: session}, nil
}

func (s *databaseStrategy) Delete(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &DatabaseError{Op: "delete session", Err: err}
	}
	return nil
}

func (s *databaseStrategy) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	n, err := s.sessions.DeleteByUserID(ctx, userID)
	if err != nil {
		return 0, &DatabaseError{Op: "delete user sessions", Err: err}
	}
	return n, nil
}

func (s *databaseStrategy) CleanupExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, &DatabaseError{Op: "delete expired sessions", Err: err}
	}
	return n, nil
}
