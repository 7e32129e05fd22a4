package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prperemyshlev/auth-engine/internal/domain"
)

// NewMemoryRepositories creates all repositories backed by in-process maps.
// Useful for tests and for embedders who do not run Postgres. Uniqueness
// constraints mirror the database schema so the engine sees the same
// duplicate sentinels.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		User:              NewMemoryUserRepository(),
		Account:           NewMemoryAccountRepository(),
		Session:           NewMemorySessionRepository(),
		VerificationToken: NewMemoryVerificationTokenRepository(),
	}
}

// memoryUserRepository implements UserRepository with a mutex-guarded map
type memoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User // keyed by id
}

// NewMemoryUserRepository creates a new in-memory user repository
func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{users: make(map[string]*domain.User)}
}

func (r *memoryUserRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
		}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}

	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memoryUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("user with email %s not found: %w", email, ErrNotFound)
}

func (r *memoryUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user with id %s not found: %w", id, ErrNotFound)
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[user.ID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", user.ID, ErrNotFound)
	}
	for id, u := range r.users {
		if id != user.ID && u.Email == user.Email {
			return fmt.Errorf("user with email %s already exists: %w", user.Email, ErrDuplicateEmail)
		}
	}

	updated := *user
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	r.users[user.ID] = &updated
	return nil
}

func (r *memoryUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now()
	return nil
}

func (r *memoryUserRepository) UpdateLastLogin(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user with id %s not found: %w", userID, ErrNotFound)
	}
	now := time.Now()
	u.LastLoginAt = &now
	return nil
}

// memoryAccountRepository implements AccountRepository with a mutex-guarded map
type memoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account // keyed by id
}

// NewMemoryAccountRepository creates a new in-memory account repository
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{accounts: make(map[string]*domain.Account)}
}

func (r *memoryAccountRepository) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.accounts {
		if a.Provider == account.Provider && a.ProviderAccountID == account.ProviderAccountID {
			return fmt.Errorf("account for provider %s already exists: %w", account.Provider, ErrDuplicateAccount)
		}
	}

	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	if account.UpdatedAt.IsZero() {
		account.UpdatedAt = now
	}

	stored := *account
	r.accounts[account.ID] = &stored
	return nil
}

func (r *memoryAccountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, a := range r.accounts {
		if a.Provider == provider && a.ProviderAccountID == providerAccountID {
			copied := *a
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("account for provider %s not found: %w", provider, ErrNotFound)
}

func (r *memoryAccountRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var accounts []*domain.Account
	for _, a := range r.accounts {
		if a.UserID == userID {
			copied := *a
			accounts = append(accounts, &copied)
		}
	}
	return accounts, nil
}

func (r *memoryAccountRepository) UpdateTokens(ctx context.Context, accountID string, tokens domain.OAuthTokens) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[accountID]
	if !ok {
		return fmt.Errorf("account with id %s not found: %w", accountID, ErrNotFound)
	}

	a.AccessToken = &tokens.AccessToken
	if tokens.RefreshToken != "" {
		rt := tokens.RefreshToken
		a.RefreshToken = &rt
	}
	if !tokens.Expiry.IsZero() {
		exp := tokens.Expiry
		a.ExpiresAt = &exp
	} else {
		a.ExpiresAt = nil
	}
	a.UpdatedAt = time.Now()
	return nil
}

func (r *memoryAccountRepository) Delete(ctx context.Context, accountID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[accountID]; !ok {
		return fmt.Errorf("account with id %s not found: %w", accountID, ErrNotFound)
	}
	delete(r.accounts, accountID)
	return nil
}

// memorySessionRepository implements SessionRepository with a mutex-guarded map
type memorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session // keyed by token
}

// NewMemorySessionRepository creates a new in-memory session repository
func NewMemorySessionRepository() SessionRepository {
	return &memorySessionRepository{sessions: make(map[string]*domain.Session)}
}

func (r *memorySessionRepository) Create(ctx context.Context, session *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session.Token]; ok {
		return fmt.Errorf("session token already exists: %w", ErrDuplicateSession)
	}

	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = now
	}

	stored := *session
	r.sessions[session.Token] = &stored
	return nil
}

func (r *memorySessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, fmt.Errorf("session not found: %w", ErrNotFound)
	}
	copied := *s
	return &copied, nil
}

func (r *memorySessionRepository) Touch(ctx context.Context, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil
	}
	s.ExpiresAt = expiresAt
	s.UpdatedAt = time.Now()
	return nil
}

func (r *memorySessionRepository) Delete(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, token)
	return nil
}

func (r *memorySessionRepository) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for token, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memorySessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var deleted int64
	for token, s := range r.sessions {
		if !s.ExpiresAt.After(now) {
			delete(r.sessions, token)
			deleted++
		}
	}
	return deleted, nil
}

// memoryVerificationTokenRepository implements VerificationTokenRepository
type memoryVerificationTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*domain.VerificationToken // keyed by token value
}

// NewMemoryVerificationTokenRepository creates a new in-memory verification token repository
func NewMemoryVerificationTokenRepository() VerificationTokenRepository {
	return &memoryVerificationTokenRepository{tokens: make(map[string]*domain.VerificationToken)}
}

func (r *memoryVerificationTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tokens[token.Token]; ok {
		return fmt.Errorf("verification token already exists: %w", ErrDuplicateToken)
	}

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	stored := *token
	r.tokens[token.Token] = &stored
	return nil
}

func (r *memoryVerificationTokenRepository) GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[token]
	if !ok {
		return nil, fmt.Errorf("verification token not found: %w", ErrNotFound)
	}
	copied := *t
	return &copied, nil
}

func (r *memoryVerificationTokenRepository) Delete(ctx context.Context, tokenID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for value, t := range r.tokens {
		if t.ID == tokenID {
			delete(r.tokens, value)
			return nil
		}
	}
	return fmt.Errorf("verification token with id %s not found: %w", tokenID, ErrNotFound)
}

func (r *memoryVerificationTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	var deleted int64
	for value, t := range r.tokens {
		if !t.ExpiresAt.After(now) {
			delete(r.tokens, value)
			deleted++
		}
	}
	return deleted, nil
}
