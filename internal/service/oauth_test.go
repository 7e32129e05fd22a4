package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
)

// fakeProvider serves a minimal OAuth provider: a token endpoint and a
// userinfo endpoint returning the given payload.
func fakeProvider(t *testing.T, userInfo map[string]any) (*httptest.Server, *Provider) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "fake-access-token",
			"refresh_token": "fake-refresh-token",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	provider := &Provider{
		ID:           "fake",
		Name:         "Fake",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  srv.URL + "/auth",
			TokenURL: srv.URL + "/token",
		},
		Scopes:      []string{"email"},
		UserInfoURL: srv.URL + "/userinfo",
		MapProfile: func(raw map[string]any) domain.OAuthProfile {
			return domain.OAuthProfile{
				ID:    stringField(raw, "sub"),
				Email: stringField(raw, "email"),
				Name:  stringField(raw, "name"),
				Image: stringField(raw, "picture"),
			}
		},
	}
	return srv, provider
}

func newOAuthManager(t *testing.T, provider *Provider) (*OAuthManager, *repository.Repositories) {
	t.Helper()
	registry := NewProviderRegistry()
	registry.Register(provider)
	repos := repository.NewMemoryRepositories()
	return NewOAuthManager(registry, repos.User, repos.Account), repos
}

func TestAuthorizationURL(t *testing.T) {
	_, provider := fakeProvider(t, nil)
	m, _ := newOAuthManager(t, provider)

	url, err := m.AuthorizationURL("fake", "http://localhost/callback", "state-123")
	require.NoError(t, err)
	assert.Contains(t, url, "state=state-123")
	assert.Contains(t, url, "client_id=client-id")
	assert.Contains(t, url, "redirect_uri=")
}

func TestAuthorizationURL_UnknownProvider(t *testing.T) {
	_, provider := fakeProvider(t, nil)
	m, _ := newOAuthManager(t, provider)

	_, err := m.AuthorizationURL("myspace", "http://localhost/callback", "state")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
}

func TestAuthorizationURL_UnconfiguredProvider(t *testing.T) {
	_, provider := fakeProvider(t, nil)
	provider.ClientID = ""
	provider.ClientSecret = ""
	m, _ := newOAuthManager(t, provider)

	_, err := m.AuthorizationURL("fake", "http://localhost/callback", "state")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
}

func TestHandleCallback_CreatesUser(t *testing.T) {
	_, provider := fakeProvider(t, map[string]any{
		"sub":     "acct-1",
		"email":   "oauth@example.com",
		"name":    "OAuth User",
		"picture": "https://example.com/pic.png",
	})
	m, repos := newOAuthManager(t, provider)
	ctx := context.Background()

	user, created, err := m.HandleCallback(ctx, "fake", "http://localhost/callback", "auth-code")
	require.NoError(t, err)
	require.NotNil(t, user)

	assert.True(t, created, "first callback for an unknown profile creates the user")
	assert.Equal(t, "oauth@example.com", user.Email)
	assert.True(t, user.IsEmailVerified, "provider-asserted email counts as verified")
	require.NotNil(t, user.Name)
	assert.Equal(t, "OAuth User", *user.Name)
	assert.False(t, user.HasPassword())

	account, err := repos.Account.GetByProvider(ctx, "fake", "acct-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, account.UserID)
	require.NotNil(t, account.AccessToken)
	assert.Equal(t, "fake-access-token", *account.AccessToken)
}

func TestHandleCallback_Idempotent(t *testing.T) {
	_, provider := fakeProvider(t, map[string]any{
		"sub":   "acct-2",
		"email": "repeat@example.com",
	})
	m, repos := newOAuthManager(t, provider)
	ctx := context.Background()

	first, created, err := m.HandleCallback(ctx, "fake", "http://localhost/callback", "code-1")
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := m.HandleCallback(ctx, "fake", "http://localhost/callback", "code-2")
	require.NoError(t, err)
	assert.False(t, created, "a returning provider account is not a sign-up")

	assert.Equal(t, first.ID, second.ID, "same provider account resolves to the same user")

	accounts, err := repos.Account.GetByUserID(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}

func TestHandleCallback_LinksToExistingEmail(t *testing.T) {
	_, provider := fakeProvider(t, map[string]any{
		"sub":   "acct-3",
		"email": "linked@example.com",
	})
	m, repos := newOAuthManager(t, provider)
	ctx := context.Background()

	existing := &domain.User{
		Email:        "linked@example.com",
		PasswordHash: "some-bcrypt-hash",
	}
	require.NoError(t, repos.User.Create(ctx, existing))

	user, created, err := m.HandleCallback(ctx, "fake", "http://localhost/callback", "code")
	require.NoError(t, err)

	assert.Equal(t, existing.ID, user.ID, "callback links to the password account, not a new user")
	assert.False(t, created, "linking is not a sign-up")
	assert.True(t, user.HasPassword(), "linking must not clear the password")

	account, err := repos.Account.GetByProvider(ctx, "fake", "acct-3")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, account.UserID)
}

func TestHandleCallback_MixedCaseEmailLinks(t *testing.T) {
	// The provider reports the email with different casing than the user
	// signed up with; the callback must still link, not mint a second user.
	_, provider := fakeProvider(t, map[string]any{
		"sub":   "acct-case",
		"email": "Alice@Example.com",
	})
	m, repos := newOAuthManager(t, provider)
	ctx := context.Background()

	existing := &domain.User{
		Email:        "alice@example.com",
		PasswordHash: "some-bcrypt-hash",
	}
	require.NoError(t, repos.User.Create(ctx, existing))

	user, created, err := m.HandleCallback(ctx, "fake", "http://localhost/callback", "code")
	require.NoError(t, err)

	assert.Equal(t, existing.ID, user.ID, "casing differences must not fork the identity")
	assert.False(t, created)
	assert.Equal(t, "alice@example.com", user.Email)

	account, err := repos.Account.GetByProvider(ctx, "fake", "acct-case")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, account.UserID)
}

func TestHandleCallback_MissingProfileID(t *testing.T) {
	_, provider := fakeProvider(t, map[string]any{
		"email": "no-id@example.com",
	})
	m, _ := newOAuthManager(t, provider)

	_, _, err := m.HandleCallback(context.Background(), "fake", "http://localhost/callback", "code")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadGateway, authErr.Status)
}

func TestHandleCallback_ExchangeFailure(t *testing.T) {
	_, provider := fakeProvider(t, nil)
	provider.Endpoint.TokenURL = "http://127.0.0.1:1/token"
	m, _ := newOAuthManager(t, provider)

	_, _, err := m.HandleCallback(context.Background(), "fake", "http://localhost/callback", "code")
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusBadGateway, authErr.Status)
}

func TestHandleCallback_SecondaryEmailLookup(t *testing.T) {
	// Userinfo omits the email; the provider's FetchEmail hook resolves it.
	srv, provider := fakeProvider(t, map[string]any{
		"sub": "acct-4",
	})

	emailsURL := srv.URL + "/emails"
	srv.Config.Handler.(*http.ServeMux).HandleFunc("/emails", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"email": "secondary@example.com", "primary": false, "verified": true},
			{"email": "primary@example.com", "primary": true, "verified": true},
		})
	})

	provider.FetchEmail = func(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (string, error) {
		resp, err := cfg.Client(ctx, token).Get(emailsURL)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
			return "", err
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				return e.Email, nil
			}
		}
		return "", nil
	}

	m, _ := newOAuthManager(t, provider)

	user, _, err := m.HandleCallback(context.Background(), "fake", "http://localhost/callback", "code")
	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", user.Email)
}

// raceUserRepository reports ErrNotFound for an email until it has been asked
// once, mimicking a concurrent sign-up landing between lookup and insert.
type raceUserRepository struct {
	repository.UserRepository
	mu     sync.Mutex
	missed map[string]bool
}

func (r *raceUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	first := !r.missed[email]
	r.missed[email] = true
	r.mu.Unlock()

	if first {
		return nil, repository.ErrNotFound
	}
	return r.UserRepository.GetByEmail(ctx, email)
}

func TestFindOrCreateUser_DuplicateEmailRaceConverts(t *testing.T) {
	_, provider := fakeProvider(t, nil)
	registry := NewProviderRegistry()
	registry.Register(provider)
	repos := repository.NewMemoryRepositories()
	ctx := context.Background()

	// The user already exists, but the racy lookup misses it once.
	existing := &domain.User{Email: "racer@example.com"}
	require.NoError(t, repos.User.Create(ctx, existing))

	racy := &raceUserRepository{UserRepository: repos.User, missed: map[string]bool{}}
	m := NewOAuthManager(registry, racy, repos.Account)

	profile := &domain.OAuthProfile{ID: "acct-race", Email: "racer@example.com"}
	user, created, err := m.findOrCreateUser(ctx, "fake", profile, domain.OAuthTokens{AccessToken: "at"})
	require.NoError(t, err, "the store's duplicate error converts into the link path")
	assert.Equal(t, existing.ID, user.ID)
	assert.False(t, created, "a race loss resolves as a link, not a sign-up")

	account, err := repos.Account.GetByProvider(ctx, "fake", "acct-race")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, account.UserID)
}

func TestLinkAccount_DuplicateAccountRaceConverts(t *testing.T) {
	_, provider := fakeProvider(t, nil)
	m, repos := newOAuthManager(t, provider)
	ctx := context.Background()

	user := &domain.User{Email: "dup-acct@example.com"}
	require.NoError(t, repos.User.Create(ctx, user))

	old := "old-token"
	require.NoError(t, repos.Account.Create(ctx, &domain.Account{
		UserID:            user.ID,
		Provider:          "fake",
		ProviderAccountID: "acct-dup",
		AccessToken:       &old,
	}))

	// Linking the same account again refreshes tokens instead of failing.
	err := m.linkAccount(ctx, user.ID, "fake", "acct-dup", domain.OAuthTokens{AccessToken: "new-token"})
	require.NoError(t, err)

	account, err := repos.Account.GetByProvider(ctx, "fake", "acct-dup")
	require.NoError(t, err)
	require.NotNil(t, account.AccessToken)
	assert.Equal(t, "new-token", *account.AccessToken)
}

func TestProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry()
	RegisterBuiltinProviders(registry)

	assert.NotNil(t, registry.Get("google"))
	assert.NotNil(t, registry.Get("github"))
	assert.Nil(t, registry.Get("gitlab"))
	assert.Empty(t, registry.IDs(), "builtins are unconfigured until given credentials")

	require.NoError(t, registry.Configure("google", "id", "secret"))
	assert.Equal(t, []string{"google"}, registry.IDs())

	require.Error(t, registry.Configure("gitlab", "id", "secret"))
}

func TestGitHubProfileMapping(t *testing.T) {
	p := GitHubProvider()

	profile := p.MapProfile(map[string]any{
		"id":         float64(12345),
		"email":      "gh@example.com",
		"name":       "Octo",
		"avatar_url": "https://avatars.example.com/u/12345",
	})

	assert.Equal(t, "12345", profile.ID, "numeric ids render without an exponent")
	assert.Equal(t, "gh@example.com", profile.Email)
	assert.Equal(t, "Octo", profile.Name)
}

func TestGoogleProfileMapping(t *testing.T) {
	p := GoogleProvider()

	profile := p.MapProfile(map[string]any{
		"id":      "google-sub",
		"email":   "goog@example.com",
		"name":    "Googler",
		"picture": "https://example.com/p.png",
	})

	assert.Equal(t, "google-sub", profile.ID)
	assert.Equal(t, "goog@example.com", profile.Email)
}
