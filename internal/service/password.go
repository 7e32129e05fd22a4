package service

import (
	"context"
	"errors"
	"time"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

const passwordPolicyMessage = "password must be at least 8 characters long and contain uppercase, lowercase, number and special character"

// PasswordAuth owns sign-up, sign-in, password-change and reset-token flows.
type PasswordAuth struct {
	users      repository.UserRepository
	tokens     repository.VerificationTokenRepository
	bcryptCost int
	resetTTL   time.Duration
}

// NewPasswordAuth creates a new password authenticator
func NewPasswordAuth(
	users repository.UserRepository,
	tokens repository.VerificationTokenRepository,
	bcryptCost int,
	resetTTL time.Duration,
) *PasswordAuth {
	return &PasswordAuth{
		users:      users,
		tokens:     tokens,
		bcryptCost: bcryptCost,
		resetTTL:   resetTTL,
	}
}

// SignUp registers a new user with an email and password. Malformed input is
// rejected with a ValidationError before storage is touched; an existing user
// yields a soft failure, not an error. The store's uniqueness constraint is
// authoritative for concurrent sign-ups racing past the pre-check.
func (p *PasswordAuth) SignUp(ctx context.Context, email, password string, name *string) (*SignUpResult, error) {
	email = utils.SanitizeEmail(email)

	if !utils.ValidateEmail(email) {
		return nil, &ValidationError{Field: "email", Message: "invalid email format"}
	}
	if !utils.ValidatePassword(password) {
		return nil, &ValidationError{Field: "password", Message: passwordPolicyMessage}
	}

	// Fast-path existence check; the unique index is the real guard.
	_, err := p.users.GetByEmail(ctx, email)
	if err == nil {
		return &SignUpResult{Success: false, Error: msgUserAlreadyExists}, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, &DatabaseError{Op: "check user existence", Err: err}
	}

	passwordHash, err := utils.HashPassword(password, p.bcryptCost)
	if err != nil {
		return nil, &AuthError{Code: "hash_failed", Status: 500, Message: err.Error()}
	}

	user := &domain.User{
		Email:           email,
		Name:            name,
		PasswordHash:    passwordHash,
		IsEmailVerified: false,
	}

	if err := p.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return &SignUpResult{Success: false, Error: msgUserAlreadyExists}, nil
		}
		return nil, &DatabaseError{Op: "create user", Err: err}
	}

	return &SignUpResult{
		Success:              true,
		User:                 user,
		RequiresVerification: true,
	}, nil
}

// SignIn verifies an email/password pair. Any mismatch, missing user or
// OAuth-only account (no password hash) fails softly with the same generic
// message.
func (p *PasswordAuth) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	user, err := p.users.GetByEmail(ctx, utils.SanitizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return failedSignIn(), nil
		}
		return nil, &DatabaseError{Op: "get user", Err: err}
	}

	if !user.HasPassword() {
		return failedSignIn(), nil
	}

	if !utils.CheckPasswordHash(password, user.PasswordHash) {
		return failedSignIn(), nil
	}

	if err := p.users.UpdateLastLogin(ctx, user.ID); err != nil {
		// Best-effort; must not fail the login.
		_ = err
	}

	return &SignInResult{Success: true, User: user}, nil
}

// UpdatePassword re-verifies the old password before accepting the new one.
// A wrong old password is a ValidationError (specific, unlike SignIn) so the
// caller can surface field-level feedback.
func (p *PasswordAuth) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if !utils.ValidatePassword(newPassword) {
		return &ValidationError{Field: "newPassword", Message: passwordPolicyMessage}
	}

	user, err := p.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Field: "userId", Message: "user not found"}
		}
		return &DatabaseError{Op: "get user", Err: err}
	}

	if !user.HasPassword() || !utils.CheckPasswordHash(oldPassword, user.PasswordHash) {
		return &ValidationError{Field: "oldPassword", Message: "current password is incorrect"}
	}

	passwordHash, err := utils.HashPassword(newPassword, p.bcryptCost)
	if err != nil {
		return &AuthError{Code: "hash_failed", Status: 500, Message: err.Error()}
	}

	if err := p.users.UpdatePassword(ctx, userID, passwordHash); err != nil {
		return &DatabaseError{Op: "update password", Err: err}
	}

	return nil
}

// GeneratePasswordResetToken issues a short-lived single-use reset token.
// Returns an empty token, not an error, when no user matches: unauthenticated
// callers must not learn whether an account exists.
func (p *PasswordAuth) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	email = utils.SanitizeEmail(email)

	_, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", &DatabaseError{Op: "get user", Err: err}
	}

	token, err := utils.GenerateOpaqueToken()
	if err != nil {
		return "", &AuthError{Code: "token_generation_failed", Status: 500, Message: err.Error()}
	}

	vt := &domain.VerificationToken{
		Identifier: email,
		Token:      token,
		Purpose:    domain.TokenPurposePasswordReset,
		ExpiresAt:  time.Now().Add(p.resetTTL),
	}

	if err := p.tokens.Create(ctx, vt); err != nil {
		return "", &DatabaseError{Op: "create verification token", Err: err}
	}

	return token, nil
}

// ResetPassword consumes a reset token and sets a new password. The token
// must exist, carry the password_reset purpose, be unexpired, and be bound to
// the same normalized email. It is deleted on success (single use).
func (p *PasswordAuth) ResetPassword(ctx context.Context, email, newPassword, token string) error {
	if !utils.ValidatePassword(newPassword) {
		return &ValidationError{Field: "newPassword", Message: passwordPolicyMessage}
	}

	email = utils.SanitizeEmail(email)

	vt, err := p.tokens.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Field: "token", Message: "invalid or expired reset token"}
		}
		return &DatabaseError{Op: "get verification token", Err: err}
	}

	if vt.Purpose != domain.TokenPurposePasswordReset || vt.Identifier != email || vt.IsExpired() {
		return &ValidationError{Field: "token", Message: "invalid or expired reset token"}
	}

	user, err := p.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Field: "token", Message: "invalid or expired reset token"}
		}
		return &DatabaseError{Op: "get user", Err: err}
	}

	passwordHash, err := utils.HashPassword(newPassword, p.bcryptCost)
	if err != nil {
		return &AuthError{Code: "hash_failed", Status: 500, Message: err.Error()}
	}

	if err := p.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return &DatabaseError{Op: "update password", Err: err}
	}

	if err := p.tokens.Delete(ctx, vt.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &DatabaseError{Op: "delete verification token", Err: err}
	}

	return nil
}
