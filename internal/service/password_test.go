package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

func newPasswordAuth(t *testing.T) (*PasswordAuth, *repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	return NewPasswordAuth(repos.User, repos.VerificationToken, 4, time.Hour), repos
}

func (p *PasswordAuth) mustSignUp(t *testing.T, email string) *domain.User {
	t.Helper()
	result, err := p.SignUp(context.Background(), email, testPassword, nil)
	require.NoError(t, err)
	require.True(t, result.Success)
	return result.User
}

func TestHashAndVerify(t *testing.T) {
	hash, err := utils.HashPassword(testPassword, 4)
	require.NoError(t, err)
	assert.NotEqual(t, testPassword, hash)
	assert.True(t, utils.CheckPasswordHash(testPassword, hash))
	assert.False(t, utils.CheckPasswordHash("WrongPassword1!", hash))
}

func TestUpdatePassword_WrongOldPassword(t *testing.T) {
	auth, _ := newPasswordAuth(t)
	ctx := context.Background()

	user := auth.mustSignUp(t, "holly@example.com")

	err := auth.UpdatePassword(ctx, user.ID, "WrongOld1!", "NewPassword456!")
	require.Error(t, err)

	// Unlike sign-in, a wrong current password is a specific field error.
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "oldPassword", validationErr.Field)
}

func TestUpdatePassword_WeakNewPassword(t *testing.T) {
	auth, _ := newPasswordAuth(t)
	ctx := context.Background()

	user := auth.mustSignUp(t, "ivan@example.com")

	err := auth.UpdatePassword(ctx, user.ID, testPassword, "weak")
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "newPassword", validationErr.Field)
}

func TestUpdatePassword_Success(t *testing.T) {
	auth, _ := newPasswordAuth(t)
	ctx := context.Background()

	user := auth.mustSignUp(t, "judy@example.com")
	require.NoError(t, auth.UpdatePassword(ctx, user.ID, testPassword, "NewPassword456!"))

	old, err := auth.SignIn(ctx, "judy@example.com", testPassword)
	require.NoError(t, err)
	assert.False(t, old.Success)

	updated, err := auth.SignIn(ctx, "judy@example.com", "NewPassword456!")
	require.NoError(t, err)
	assert.True(t, updated.Success)
}

func TestGeneratePasswordResetToken_UnknownEmail(t *testing.T) {
	auth, _ := newPasswordAuth(t)

	// No account enumeration: unknown email yields an empty token, no error.
	token, err := auth.GeneratePasswordResetToken(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestResetPassword_RoundTrip(t *testing.T) {
	auth, _ := newPasswordAuth(t)
	ctx := context.Background()

	auth.mustSignUp(t, "kate@example.com")

	token, err := auth.GeneratePasswordResetToken(ctx, "kate@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, auth.ResetPassword(ctx, "kate@example.com", "NewPassword456!", token))

	result, err := auth.SignIn(ctx, "kate@example.com", "NewPassword456!")
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestResetPassword_TokenIsSingleUse(t *testing.T) {
	auth, _ := newPasswordAuth(t)
	ctx := context.Background()

	auth.mustSignUp(t, "liam@example.com")

	token, err := auth.GeneratePasswordResetToken(ctx, "liam@example.com")
	require.NoError(t, err)

	require.NoError(t, auth.ResetPassword(ctx, "liam@example.com", "NewPassword456!", token))

	err = auth.ResetPassword(ctx, "liam@example.com", "AnotherPass789!", token)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "token", validationErr.Field)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	auth, repos := newPasswordAuth(t)
	ctx := context.Background()

	auth.mustSignUp(t, "mona@example.com")

	require.NoError(t, repos.VerificationToken.Create(ctx, &domain.VerificationToken{
		Identifier: "mona@example.com",
		Token:      "stale-token",
		Purpose:    domain.TokenPurposePasswordReset,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}))

	err := auth.ResetPassword(ctx, "mona@example.com", "NewPassword456!", "stale-token")
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestResetPassword_WrongIdentifier(t *testing.T) {
	auth, _ := newPasswordAuth(t)
	ctx := context.Background()

	auth.mustSignUp(t, "nina@example.com")
	auth.mustSignUp(t, "otto@example.com")

	token, err := auth.GeneratePasswordResetToken(ctx, "nina@example.com")
	require.NoError(t, err)

	// A token issued for one email cannot reset another account.
	err = auth.ResetPassword(ctx, "otto@example.com", "NewPassword456!", token)
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}

func TestResetPassword_WrongPurpose(t *testing.T) {
	auth, repos := newPasswordAuth(t)
	ctx := context.Background()

	auth.mustSignUp(t, "pete@example.com")

	require.NoError(t, repos.VerificationToken.Create(ctx, &domain.VerificationToken{
		Identifier: "pete@example.com",
		Token:      "verify-token",
		Purpose:    "email_verification",
		ExpiresAt:  time.Now().Add(time.Hour),
	}))

	err := auth.ResetPassword(ctx, "pete@example.com", "NewPassword456!", "verify-token")
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
}
