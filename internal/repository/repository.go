package repository

import (
	"context"

	"github.com/prperemyshlev/auth-engine/pkg/database"
)

// Repositories holds all repository interfaces
type Repositories struct {
	User              UserRepository
	Account           AccountRepository
	Session           SessionRepository
	VerificationToken VerificationTokenRepository

	pinger Pinger
}

// NewRepositories creates all repositories backed by Postgres
func NewRepositories(db *database.Postgres) *Repositories {
	return &Repositories{
		User:              NewUserRepository(db),
		Account:           NewAccountRepository(db),
		Session:           NewSessionRepository(db),
		VerificationToken: NewVerificationTokenRepository(db),
		pinger:            db,
	}
}

// Ping verifies store connectivity without mutating state.
func (r *Repositories) Ping(ctx context.Context) error {
	if r.pinger == nil {
		return nil
	}
	return r.pinger.Ping(ctx)
}
