package service

import (
	"context"
	"time"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

// statelessStrategy encodes the session inside a signed JWT. Nothing is
// persisted, so revocation only happens when the token expires.
type statelessStrategy struct {
	jwt *utils.JWTManager
}

func newStatelessStrategy(jwt *utils.JWTManager) *statelessStrategy {
	return &statelessStrategy{jwt: jwt}
}

func (s *statelessStrategy) Create(_ context.Context, user *domain.User) (*domain.Session, error) {
	token, err := s.jwt.GenerateSessionToken(user)
	if err != nil {
		return nil, &AuthError{Code: "token_generation_failed", Status: 500, Message: err.Error()}
	}
	now := time.Now()
	return &domain.Session{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: now.Add(s.jwt.MaxAge()),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *statelessStrategy) Get(_ context.Context, token string) (*SessionData, error) {
	claims, err := s.jwt.ValidateSessionToken(token)
	if err != nil || claims.IsExpired() {
		// Bad signature, garbage and expiry all read as "no session".
		return nil, nil
	}

	user := &domain.User{
		ID:              claims.UserID,
		Email:           claims.Email,
		IsEmailVerified: claims.IsEmailVerified,
	}
	if claims.Name != "" {
		name := claims.Name
		user.Name = &name
	}

	return &SessionData{
		User: user,
		Session: &domain.Session{
			UserID:    claims.UserID,
			Token:     token,
			ExpiresAt: time.Unix(claims.Exp, 0),
			CreatedAt: time.Unix(claims.Iat, 0),
			UpdatedAt: time.Unix(claims.Iat, 0),
		},
	}, nil
}

// Delete is a no-op: a signed token cannot be recalled, only outlived.
func (s *statelessStrategy) Delete(_ context.Context, _ string) error { return nil }

func (s *statelessStrategy) DeleteAllForUser(_ context.Context, _ string) (int64, error) {
	return 0, nil
}

func (s *statelessStrategy) CleanupExpired(_ context.Context) (int64, error) {
	return 0, nil
}
