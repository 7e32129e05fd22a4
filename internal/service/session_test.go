package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

func newDatabaseSessions(t *testing.T) (*SessionManager, *repository.Repositories) {
	t.Helper()
	repos := repository.NewMemoryRepositories()
	strategy := newDatabaseStrategy(repos.Session, repos.User, time.Hour)
	return newSessionManager(strategy, domain.SessionStrategyDatabase, time.Hour), repos
}

func newJWTSessions(t *testing.T) *SessionManager {
	t.Helper()
	jwt := utils.NewJWTManager("test-secret-key-that-is-at-least-32-characters-long", time.Hour)
	return newSessionManager(newStatelessStrategy(jwt), domain.SessionStrategyJWT, time.Hour)
}

func storedUser(t *testing.T, repos *repository.Repositories, email string) *domain.User {
	t.Helper()
	user := &domain.User{Email: email, IsEmailVerified: true}
	require.NoError(t, repos.User.Create(context.Background(), user))
	return user
}

func TestDatabaseSessions_RoundTrip(t *testing.T) {
	sessions, repos := newDatabaseSessions(t)
	ctx := context.Background()

	user := storedUser(t, repos, "quinn@example.com")

	session, err := sessions.CreateSession(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.True(t, session.ExpiresAt.After(time.Now()))

	data, err := sessions.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, user.ID, data.User.ID)
	assert.Equal(t, user.Email, data.User.Email)
}

func TestDatabaseSessions_UnknownToken(t *testing.T) {
	sessions, _ := newDatabaseSessions(t)

	data, err := sessions.ValidateSession(context.Background(), "no-such-token")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDatabaseSessions_ExpiredNeverReturned(t *testing.T) {
	sessions, repos := newDatabaseSessions(t)
	ctx := context.Background()

	user := storedUser(t, repos, "rosa@example.com")

	require.NoError(t, repos.Session.Create(ctx, &domain.Session{
		UserID:    user.ID,
		Token:     "expired",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))

	data, err := sessions.ValidateSession(ctx, "expired")
	require.NoError(t, err)
	assert.Nil(t, data)

	// The expired row was purged lazily.
	_, err = repos.Session.GetByToken(ctx, "expired")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDatabaseSessions_ValidationSlidesExpiry(t *testing.T) {
	sessions, repos := newDatabaseSessions(t)
	ctx := context.Background()

	user := storedUser(t, repos, "sven@example.com")

	require.NoError(t, repos.Session.Create(ctx, &domain.Session{
		UserID:    user.ID,
		Token:     "almost-expired",
		ExpiresAt: time.Now().Add(time.Minute),
	}))

	data, err := sessions.ValidateSession(ctx, "almost-expired")
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.True(t, data.Session.ExpiresAt.After(time.Now().Add(30*time.Minute)),
		"validation should extend the expiry toward the full max age")
}

func TestDatabaseSessions_DeleteAllForUser(t *testing.T) {
	sessions, repos := newDatabaseSessions(t)
	ctx := context.Background()

	user := storedUser(t, repos, "tina@example.com")
	other := storedUser(t, repos, "ugo@example.com")

	for range 3 {
		_, err := sessions.CreateSession(ctx, user)
		require.NoError(t, err)
	}
	otherSession, err := sessions.CreateSession(ctx, other)
	require.NoError(t, err)

	n, err := sessions.DeleteUserSessions(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	data, err := sessions.ValidateSession(ctx, otherSession.Token)
	require.NoError(t, err)
	assert.NotNil(t, data, "other users' sessions stay intact")
}

func TestDatabaseSessions_Cleanup(t *testing.T) {
	sessions, repos := newDatabaseSessions(t)
	ctx := context.Background()

	user := storedUser(t, repos, "vera@example.com")

	require.NoError(t, repos.Session.Create(ctx, &domain.Session{
		UserID:    user.ID,
		Token:     "old-1",
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, repos.Session.Create(ctx, &domain.Session{
		UserID:    user.ID,
		Token:     "old-2",
		ExpiresAt: time.Now().Add(-time.Minute),
	}))
	live, err := sessions.CreateSession(ctx, user)
	require.NoError(t, err)

	n, err := sessions.CleanupExpiredSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	data, err := sessions.ValidateSession(ctx, live.Token)
	require.NoError(t, err)
	assert.NotNil(t, data)
}

func TestJWTSessions_RoundTrip(t *testing.T) {
	sessions := newJWTSessions(t)
	ctx := context.Background()

	name := "Wanda"
	user := &domain.User{
		ID:              "user-1",
		Email:           "wanda@example.com",
		Name:            &name,
		IsEmailVerified: true,
	}

	session, err := sessions.CreateSession(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	assert.Equal(t, 3, len(strings.Split(session.Token, ".")), "token should be a JWT")

	data, err := sessions.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	require.NotNil(t, data)
	assert.Equal(t, user.ID, data.User.ID)
	assert.Equal(t, user.Email, data.User.Email)
	require.NotNil(t, data.User.Name)
	assert.Equal(t, name, *data.User.Name)
	assert.True(t, data.User.IsEmailVerified)
}

func TestJWTSessions_TamperedTokenRejected(t *testing.T) {
	sessions := newJWTSessions(t)
	ctx := context.Background()

	session, err := sessions.CreateSession(ctx, &domain.User{ID: "user-2", Email: "x@example.com"})
	require.NoError(t, err)

	tampered := session.Token[:len(session.Token)-2] + "xx"
	data, err := sessions.ValidateSession(ctx, tampered)
	require.NoError(t, err)
	assert.Nil(t, data)

	data, err = sessions.ValidateSession(ctx, "garbage")
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestJWTSessions_WrongKeyRejected(t *testing.T) {
	ctx := context.Background()

	other := utils.NewJWTManager("another-secret-key-that-is-32-characters!!", time.Hour)
	foreign, err := other.GenerateSessionToken(&domain.User{ID: "user-3", Email: "y@example.com"})
	require.NoError(t, err)

	sessions := newJWTSessions(t)
	data, err := sessions.ValidateSession(ctx, foreign)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestJWTSessions_ExpiredRejected(t *testing.T) {
	jwt := utils.NewJWTManager("test-secret-key-that-is-at-least-32-characters-long", -time.Minute)
	sessions := newSessionManager(newStatelessStrategy(jwt), domain.SessionStrategyJWT, -time.Minute)
	ctx := context.Background()

	session, err := sessions.CreateSession(ctx, &domain.User{ID: "user-4", Email: "z@example.com"})
	require.NoError(t, err)

	data, err := sessions.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestJWTSessions_RevocationIsNoop(t *testing.T) {
	sessions := newJWTSessions(t)
	ctx := context.Background()

	session, err := sessions.CreateSession(ctx, &domain.User{ID: "user-5", Email: "w@example.com"})
	require.NoError(t, err)

	// Stateless tokens cannot be recalled: delete succeeds but the token
	// keeps validating until it expires.
	require.NoError(t, sessions.DeleteSession(ctx, session.Token))

	data, err := sessions.ValidateSession(ctx, session.Token)
	require.NoError(t, err)
	assert.NotNil(t, data)

	n, err := sessions.DeleteUserSessions(ctx, "user-5")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestValidateSession_EmptyToken(t *testing.T) {
	sessions, _ := newDatabaseSessions(t)
	data, err := sessions.ValidateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, data)
}
