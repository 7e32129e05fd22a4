package repository

import (
	"context"
	"time"

	"github.com/prperemyshlev/auth-engine/internal/domain"
)

// UserRepository defines methods for user operations
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	UpdateLastLogin(ctx context.Context, userID string) error
}

// AccountRepository defines methods for linked OAuth provider accounts
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByProvider(ctx context.Context, provider, providerAccountID string) (*domain.Account, error)
	GetByUserID(ctx context.Context, userID string) ([]*domain.Account, error)
	UpdateTokens(ctx context.Context, accountID string, tokens domain.OAuthTokens) error
	Delete(ctx context.Context, accountID string) error
}

// SessionRepository defines methods for database-strategy sessions
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByToken(ctx context.Context, token string) (*domain.Session, error)
	Touch(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
	DeleteByUserID(ctx context.Context, userID string) (int64, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// VerificationTokenRepository defines methods for single-use verification tokens
type VerificationTokenRepository interface {
	Create(ctx context.Context, token *domain.VerificationToken) error
	GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error)
	Delete(ctx context.Context, tokenID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// Pinger checks store connectivity without mutating state.
type Pinger interface {
	Ping(ctx context.Context) error
}
