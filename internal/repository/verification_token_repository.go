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

// verificationTokenRepository implements VerificationTokenRepository interface
type verificationTokenRepository struct {
	db *database.Postgres
}

// NewVerificationTokenRepository creates a new verification token repository
func NewVerificationTokenRepository(db *database.Postgres) VerificationTokenRepository {
	return &verificationTokenRepository{db: db}
}

// Create creates a new verification token in the database
func (r *verificationTokenRepository) Create(ctx context.Context, token *domain.VerificationToken) error {
	query := `
		INSERT INTO verification_tokens (id, identifier, token, purpose, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	// Generate UUID if not provided
	if token.ID == "" {
		token.ID = uuid.New().String()
	}

	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}

	_, err := r.db.DB.ExecContext(ctx, query,
		token.ID,
		token.Identifier,
		token.Token,
		token.Purpose,
		token.ExpiresAt,
		token.CreatedAt,
	)

	if err != nil {
		// Check for unique constraint violation (duplicate token value)
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return fmt.Errorf("verification token already exists: %w", ErrDuplicateToken)
			}
		}
		return fmt.Errorf("failed to create verification token: %w", err)
	}

	return nil
}

// GetByToken retrieves a verification token by its value
func (r *verificationTokenRepository) GetByToken(ctx context.Context, token string) (*domain.VerificationToken, error) {
	query := `
		SELECT id, identifier, token, purpose, expires_at, created_at
		FROM verification_tokens
		WHERE token = $1
	`

	vt := &domain.VerificationToken{}
	err := r.db.DB.QueryRowContext(ctx, query, token).Scan(
		&vt.ID,
		&vt.Identifier,
		&vt.Token,
		&vt.Purpose,
		&vt.ExpiresAt,
		&vt.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("verification token not found: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get verification token: %w", err)
	}

	return vt, nil
}

// Delete deletes a verification token by ID (single-use consumption)
func (r *verificationTokenRepository) Delete(ctx context.Context, tokenID string) error {
	query := `DELETE FROM verification_tokens WHERE id = $1`

	result, err := r.db.DB.ExecContext(ctx, query, tokenID)
	if err != nil {
		return fmt.Errorf("failed to delete verification token: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("verification token with id %s not found: %w", tokenID, ErrNotFound)
	}

	return nil
}

// DeleteExpired bulk-deletes all expired verification tokens
func (r *verificationTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM verification_tokens WHERE expires_at <= $1`

	result, err := r.db.DB.ExecContext(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification tokens: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
