package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

// Provider describes one OAuth provider: its endpoints, scopes, and how to
// turn its userinfo payload into a normalized profile.
type Provider struct {
	ID           string
	Name         string
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	Scopes       []string
	UserInfoURL  string

	// MapProfile normalizes the provider's userinfo JSON.
	MapProfile func(raw map[string]any) domain.OAuthProfile

	// FetchEmail, when set, resolves the email with an extra API call for
	// providers that omit it from userinfo (GitHub with private emails).
	FetchEmail func(ctx context.Context, client *oauth2.Config, token *oauth2.Token) (string, error)
}

func (p *Provider) configured() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

func (p *Provider) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		Endpoint:     p.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       p.Scopes,
	}
}

// ProviderRegistry holds the known OAuth providers. Built-in providers are
// registered unconfigured; Configure injects credentials at engine start.
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{providers: make(map[string]*Provider)}
}

// Register adds or replaces a provider definition.
func (r *ProviderRegistry) Register(p *Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID] = p
}

// Configure sets credentials for an already registered provider.
func (r *ProviderRegistry) Configure(id, clientID, clientSecret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[id]
	if !ok {
		return fmt.Errorf("unknown oauth provider: %s", id)
	}
	p.ClientID = clientID
	p.ClientSecret = clientSecret
	return nil
}

// Get returns a provider by id, or nil if it is not registered.
func (r *ProviderRegistry) Get(id string) *Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[id]
}

// IDs returns the ids of all configured providers.
func (r *ProviderRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id, p := range r.providers {
		if p.configured() {
			ids = append(ids, id)
		}
	}
	return ids
}

// OAuthManager drives the authorization-code flow and the account
// find-or-create logic on callback.
type OAuthManager struct {
	registry *ProviderRegistry
	users    repository.UserRepository
	accounts repository.AccountRepository
}

func NewOAuthManager(
	registry *ProviderRegistry,
	users repository.UserRepository,
	accounts repository.AccountRepository,
) *OAuthManager {
	return &OAuthManager{
		registry: registry,
		users:    users,
		accounts: accounts,
	}
}

func (m *OAuthManager) provider(id string) (*Provider, error) {
	p := m.registry.Get(id)
	if p == nil {
		return nil, newUnknownProviderError(id)
	}
	if !p.configured() {
		return nil, newProviderNotConfiguredError(id)
	}
	return p, nil
}

// AuthorizationURL builds the provider's consent URL for the given state.
// State generation and verification belong to the caller.
func (m *OAuthManager) AuthorizationURL(providerID, redirectURL, state string) (string, error) {
	p, err := m.provider(providerID)
	if err != nil {
		return "", err
	}
	return p.oauthConfig(redirectURL).AuthCodeURL(state, oauth2.AccessTypeOffline), nil
}

// HandleCallback exchanges the authorization code, fetches and normalizes the
// profile, and resolves it to a local user. The boolean reports whether a new
// user was created, so callers can fire the matching lifecycle hook.
func (m *OAuthManager) HandleCallback(ctx context.Context, providerID, redirectURL, code string) (*domain.User, bool, error) {
	p, err := m.provider(providerID)
	if err != nil {
		return nil, false, err
	}

	cfg := p.oauthConfig(redirectURL)

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, false, newOAuthError(providerID, fmt.Sprintf("code exchange failed: %v", err))
	}

	profile, err := m.fetchProfile(ctx, p, cfg, token)
	if err != nil {
		return nil, false, err
	}

	return m.findOrCreateUser(ctx, p.ID, profile, tokensFromOAuth2(token))
}

func (m *OAuthManager) fetchProfile(ctx context.Context, p *Provider, cfg *oauth2.Config, token *oauth2.Token) (*domain.OAuthProfile, error) {
	raw, err := fetchUserInfo(ctx, cfg, token, p.UserInfoURL)
	if err != nil {
		return nil, newOAuthError(p.ID, fmt.Sprintf("userinfo request failed: %v", err))
	}

	profile := p.MapProfile(raw)

	if profile.Email == "" && p.FetchEmail != nil {
		email, err := p.FetchEmail(ctx, cfg, token)
		if err != nil {
			return nil, newOAuthError(p.ID, fmt.Sprintf("email lookup failed: %v", err))
		}
		profile.Email = email
	}

	// Providers disagree on email casing; local accounts are keyed by the
	// normalized form, so normalize before any lookup.
	profile.Email = utils.SanitizeEmail(profile.Email)

	if profile.ID == "" {
		return nil, newOAuthError(p.ID, "profile is missing an account id")
	}
	if profile.Email == "" {
		return nil, newOAuthError(p.ID, "profile is missing an email")
	}

	return &profile, nil
}

// findOrCreateUser resolves an OAuth profile to a local user:
//  1. an existing account for (provider, providerAccountID) wins; its tokens
//     are refreshed and the linked user returned;
//  2. otherwise a user with the same email gets a new account linked;
//  3. otherwise a fresh user is created with a verified email.
//
// Concurrent callbacks may race past the lookups; the store's unique
// constraints are authoritative, and duplicate errors convert into the
// link/re-fetch path instead of failing the flow.
func (m *OAuthManager) findOrCreateUser(ctx context.Context, providerID string, profile *domain.OAuthProfile, tokens domain.OAuthTokens) (*domain.User, bool, error) {
	account, err := m.accounts.GetByProvider(ctx, providerID, profile.ID)
	if err == nil {
		if err := m.accounts.UpdateTokens(ctx, account.ID, tokens); err != nil {
			return nil, false, &DatabaseError{Op: "update account tokens", Err: err}
		}
		user, err := m.users.GetByID(ctx, account.UserID)
		if err != nil {
			return nil, false, &DatabaseError{Op: "get user for account", Err: err}
		}
		return m.touchLogin(ctx, user), false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, &DatabaseError{Op: "get account", Err: err}
	}

	user, err := m.users.GetByEmail(ctx, profile.Email)
	if err == nil {
		if err := m.linkAccount(ctx, user.ID, providerID, profile.ID, tokens); err != nil {
			return nil, false, err
		}
		return m.touchLogin(ctx, user), false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, &DatabaseError{Op: "get user by email", Err: err}
	}

	user = &domain.User{
		Email:           profile.Email,
		IsEmailVerified: true,
	}
	if profile.Name != "" {
		name := profile.Name
		user.Name = &name
	}
	if profile.Image != "" {
		image := profile.Image
		user.Image = &image
	}

	if err := m.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			// Lost the race to another callback; the user exists now.
			user, err = m.users.GetByEmail(ctx, profile.Email)
			if err != nil {
				return nil, false, &DatabaseError{Op: "get user by email", Err: err}
			}
			if err := m.linkAccount(ctx, user.ID, providerID, profile.ID, tokens); err != nil {
				return nil, false, err
			}
			return m.touchLogin(ctx, user), false, nil
		}
		return nil, false, &DatabaseError{Op: "create user", Err: err}
	}

	if err := m.linkAccount(ctx, user.ID, providerID, profile.ID, tokens); err != nil {
		return nil, false, err
	}
	return m.touchLogin(ctx, user), true, nil
}

func (m *OAuthManager) linkAccount(ctx context.Context, userID, providerID, providerAccountID string, tokens domain.OAuthTokens) error {
	account := &domain.Account{
		UserID:            userID,
		Provider:          providerID,
		ProviderAccountID: providerAccountID,
	}
	if tokens.AccessToken != "" {
		at := tokens.AccessToken
		account.AccessToken = &at
	}
	if tokens.RefreshToken != "" {
		rt := tokens.RefreshToken
		account.RefreshToken = &rt
	}
	if !tokens.Expiry.IsZero() {
		exp := tokens.Expiry
		account.ExpiresAt = &exp
	}

	err := m.accounts.Create(ctx, account)
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrDuplicateAccount) {
		// Another callback created it first; refresh its tokens instead.
		existing, getErr := m.accounts.GetByProvider(ctx, providerID, providerAccountID)
		if getErr != nil {
			return &DatabaseError{Op: "get account", Err: getErr}
		}
		if updErr := m.accounts.UpdateTokens(ctx, existing.ID, tokens); updErr != nil {
			return &DatabaseError{Op: "update account tokens", Err: updErr}
		}
		return nil
	}
	return &DatabaseError{Op: "create account", Err: err}
}

func (m *OAuthManager) touchLogin(ctx context.Context, user *domain.User) *domain.User {
	if err := m.users.UpdateLastLogin(ctx, user.ID); err == nil {
		now := time.Now()
		user.LastLoginAt = &now
	}
	return user
}

func tokensFromOAuth2(t *oauth2.Token) domain.OAuthTokens {
	tokens := domain.OAuthTokens{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
	}
	if !t.Expiry.IsZero() {
		tokens.Expiry = t.Expiry
	}
	return tokens
}
