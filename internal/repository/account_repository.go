package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/pkg/database"
)

// accountRepository implements AccountRepository interface
type accountRepository struct {
	db *database.Postgres
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *database.Postgres) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new provider account link
func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	// Generate UUID if not provided
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

	_, err := r.db.DB.ExecContext(ctx, query,
		account.ID,
		account.UserID,
		account.Provider,
		account.ProviderAccountID,
		account.AccessToken,
		account.RefreshToken,
		account.ExpiresAt,
		account.CreatedAt,
		account.UpdatedAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate provider + provider_account_id)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("account for provider %s already exists: %w", account.Provider, ErrDuplicateAccount)
			}
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByProvider retrieves a provider account by provider and provider account ID
func (r *accountRepository) GetByProvider(ctx context.Context, provider, providerAccountID string) (*domain.Account, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM accounts
		WHERE provider = $1 AND provider_account_id = $2
	`

	account, err := r.scanAccount(r.db.DB.QueryRowContext(ctx, query, provider, providerAccountID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("account for provider %s not found: %w", provider, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return account, nil
}

// GetByUserID retrieves all provider accounts for a user
func (r *accountRepository) GetByUserID(ctx context.Context, userID string) ([]*domain.Account, error) {
	query := `
		SELECT id, user_id, provider, provider_account_id, access_token, refresh_token, expires_at, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.DB.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts by user id: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := r.scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *accountRepository) scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	var accessToken, refreshToken sql.NullString
	var expiresAt sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.UserID,
		&account.Provider,
		&account.ProviderAccountID,
		&accessToken,
		&refreshToken,
		&expiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if accessToken.Valid {
		account.AccessToken = &accessToken.String
	}
	if refreshToken.Valid {
		account.RefreshToken = &refreshToken.String
	}
	if expiresAt.Valid {
		account.ExpiresAt = &expiresAt.Time
	}

	return account, nil
}

// UpdateTokens refreshes the stored provider tokens for an account
func (r *accountRepository) UpdateTokens(ctx context.Context, accountID string, tokens domain.OAuthTokens) error {
	query := `
		UPDATE accounts
		SET access_token = $2, refresh_token = NULLIF($3, ''), expires_at = $4, updated_at = $5
		WHERE id = $1
	`

	var expiresAt *time.Time
	if !tokens.Expiry.IsZero() {
		expiresAt = &tokens.Expiry
	}

	result, err := r.db.DB.ExecContext(ctx, query,
		accountID,
		tokens.AccessToken,
		tokens.RefreshToken,
		expiresAt,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to update account tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", accountID, ErrNotFound)
	}

	return nil
}

// Delete deletes a provider account link by ID
func (r *accountRepository) Delete(ctx context.Context, accountID string) error {
	query := `DELETE FROM accounts WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, accountID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("account with id %s not found: %w", accountID, ErrNotFound)
	}

	return nil
}
