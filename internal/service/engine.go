package service

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/utils"
)

const (
	minSessionSecretLength = 32
	defaultSessionMaxAge   = 30 * 24 * time.Hour
	defaultResetTokenTTL   = time.Hour
	defaultBcryptCost      = 12
)

// ProviderCredentials carries one OAuth provider's client id and secret.
type ProviderCredentials struct {
	ClientID     string
	ClientSecret string
}

// Hooks are optional callbacks fired after lifecycle events. They run
// best-effort: a failing hook is logged and never fails the operation.
type Hooks struct {
	OnSignUp  func(ctx context.Context, user *domain.User) error
	OnSignIn  func(ctx context.Context, user *domain.User) error
	OnSignOut func(ctx context.Context, user *domain.User) error
}

// Config assembles the engine. Zero values get defaults in Validate; invalid
// combinations fail construction with a ConfigurationError.
type Config struct {
	SessionStrategy      domain.SessionStrategy
	SessionMaxAge        time.Duration
	SessionSecret        string
	SecureCookies        bool
	EmailPasswordEnabled bool
	BcryptCost           int
	ResetTokenTTL        time.Duration
	Providers            map[string]ProviderCredentials

	// CustomProviders registers OAuth providers beyond the built-in set.
	// They are added to the registry before Providers credentials are
	// applied, so a custom provider can be configured by id like any other.
	CustomProviders []*Provider

	Hooks Hooks
}

func (c *Config) validate() error {
	if c.SessionStrategy == "" {
		c.SessionStrategy = domain.SessionStrategyDatabase
	}
	if !c.SessionStrategy.Valid() {
		return &ConfigurationError{
			Field:   "SessionStrategy",
			Message: "must be \"database\" or \"jwt\"",
		}
	}
	if c.SessionMaxAge < 0 {
		return &ConfigurationError{Field: "SessionMaxAge", Message: "must be positive"}
	}
	if c.SessionMaxAge == 0 {
		c.SessionMaxAge = defaultSessionMaxAge
	}
	if c.SessionStrategy == domain.SessionStrategyJWT && len(c.SessionSecret) < minSessionSecretLength {
		return &ConfigurationError{
			Field:   "SessionSecret",
			Message: "jwt strategy requires a secret of at least 32 characters",
		}
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = defaultBcryptCost
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = defaultResetTokenTTL
	}
	return nil
}

// AuthEngine is the façade over password auth, OAuth and sessions.
type AuthEngine interface {
	// Password flows.
	SignUp(ctx context.Context, email, password string, name *string) (*SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*SignInResult, error)
	SignOut(ctx context.Context, token string) error
	UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error
	GeneratePasswordResetToken(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, email, newPassword, token string) error

	// OAuth flows.
	AuthorizationURL(providerID, redirectURL, state string) (string, error)
	HandleOAuthCallback(ctx context.Context, providerID, redirectURL, code string) (*SignInResult, error)
	Providers() []string

	// Sessions.
	ValidateSession(ctx context.Context, token string) (*SessionData, error)
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	SessionStrategy() domain.SessionStrategy
	SessionCookie(token string) *http.Cookie
	LogoutCookie() *http.Cookie

	// Maintenance.
	CleanupExpired(ctx context.Context) error
	StartCleanup(ctx context.Context, interval time.Duration)
	Health(ctx context.Context) error
}

type authEngine struct {
	cfg      Config
	password *PasswordAuth
	oauth    *OAuthManager
	sessions *SessionManager
	registry *ProviderRegistry
	repos    *repository.Repositories
	logger   *zap.Logger
}

// NewAuthEngine validates the config and wires the engine. Construction is
// the only place configuration errors can surface; a returned engine is
// ready to serve.
func NewAuthEngine(cfg Config, repos *repository.Repositories, logger *zap.Logger) (AuthEngine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := NewProviderRegistry()
	RegisterBuiltinProviders(registry)
	for _, p := range cfg.CustomProviders {
		if p == nil || p.ID == "" || p.MapProfile == nil {
			return nil, &ConfigurationError{
				Field:   "CustomProviders",
				Message: "a custom provider needs an id and a profile mapper",
			}
		}
		registry.Register(p)
	}
	for id, creds := range cfg.Providers {
		if err := registry.Configure(id, creds.ClientID, creds.ClientSecret); err != nil {
			return nil, &ConfigurationError{Field: "Providers", Message: err.Error()}
		}
	}

	var strategy sessionStrategy
	switch cfg.SessionStrategy {
	case domain.SessionStrategyJWT:
		strategy = newStatelessStrategy(utils.NewJWTManager(cfg.SessionSecret, cfg.SessionMaxAge))
	default:
		strategy = newDatabaseStrategy(repos.Session, repos.User, cfg.SessionMaxAge)
	}

	return &authEngine{
		cfg:      cfg,
		password: NewPasswordAuth(repos.User, repos.VerificationToken, cfg.BcryptCost, cfg.ResetTokenTTL),
		oauth:    NewOAuthManager(registry, repos.User, repos.Account),
		sessions: newSessionManager(strategy, cfg.SessionStrategy, cfg.SessionMaxAge),
		registry: registry,
		repos:    repos,
		logger:   logger,
	}, nil
}

func (e *authEngine) fireHook(ctx context.Context, name string, hook func(context.Context, *domain.User) error, user *domain.User) {
	if hook == nil {
		return
	}
	if err := hook(ctx, user); err != nil {
		e.logger.Warn("lifecycle hook failed",
			zap.String("hook", name),
			zap.String("user_id", user.ID),
			zap.Error(err))
	}
}

func (e *authEngine) SignUp(ctx context.Context, email, password string, name *string) (*SignUpResult, error) {
	if !e.cfg.EmailPasswordEnabled {
		return nil, &ConfigurationError{Field: "EmailPasswordEnabled", Message: "email/password authentication is disabled"}
	}

	result, err := e.password.SignUp(ctx, email, password, name)
	if err != nil || !result.Success {
		return result, err
	}

	e.fireHook(ctx, "OnSignUp", e.cfg.Hooks.OnSignUp, result.User)
	return result, nil
}

func (e *authEngine) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	if !e.cfg.EmailPasswordEnabled {
		return nil, &ConfigurationError{Field: "EmailPasswordEnabled", Message: "email/password authentication is disabled"}
	}

	result, err := e.password.SignIn(ctx, email, password)
	if err != nil || !result.Success {
		return result, err
	}

	if err := e.attachSession(ctx, result); err != nil {
		return nil, err
	}

	e.fireHook(ctx, "OnSignIn", e.cfg.Hooks.OnSignIn, result.User)
	return result, nil
}

// attachSession mints a session for a successful sign-in result.
func (e *authEngine) attachSession(ctx context.Context, result *SignInResult) error {
	session, err := e.sessions.CreateSession(ctx, result.User)
	if err != nil {
		return err
	}
	result.Session = session
	result.Token = session.Token
	return nil
}

func (e *authEngine) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	// Resolve the user first so the hook still fires for a valid token.
	data, err := e.sessions.ValidateSession(ctx, token)
	if err != nil {
		return err
	}

	if err := e.sessions.DeleteSession(ctx, token); err != nil {
		return err
	}

	if data != nil {
		e.fireHook(ctx, "OnSignOut", e.cfg.Hooks.OnSignOut, data.User)
	}
	return nil
}

func (e *authEngine) UpdatePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	return e.password.UpdatePassword(ctx, userID, oldPassword, newPassword)
}

func (e *authEngine) GeneratePasswordResetToken(ctx context.Context, email string) (string, error) {
	return e.password.GeneratePasswordResetToken(ctx, email)
}

func (e *authEngine) ResetPassword(ctx context.Context, email, newPassword, token string) error {
	return e.password.ResetPassword(ctx, email, newPassword, token)
}

func (e *authEngine) AuthorizationURL(providerID, redirectURL, state string) (string, error) {
	return e.oauth.AuthorizationURL(providerID, redirectURL, state)
}

func (e *authEngine) HandleOAuthCallback(ctx context.Context, providerID, redirectURL, code string) (*SignInResult, error) {
	user, created, err := e.oauth.HandleCallback(ctx, providerID, redirectURL, code)
	if err != nil {
		return nil, err
	}

	result := &SignInResult{Success: true, User: user, IsNewUser: created}
	if err := e.attachSession(ctx, result); err != nil {
		return nil, err
	}

	// A first-time OAuth user is a sign-up and a sign-in in one flow.
	if created {
		e.fireHook(ctx, "OnSignUp", e.cfg.Hooks.OnSignUp, user)
	}
	e.fireHook(ctx, "OnSignIn", e.cfg.Hooks.OnSignIn, user)
	return result, nil
}

func (e *authEngine) Providers() []string {
	return e.registry.IDs()
}

func (e *authEngine) ValidateSession(ctx context.Context, token string) (*SessionData, error) {
	return e.sessions.ValidateSession(ctx, token)
}

func (e *authEngine) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	return e.sessions.DeleteUserSessions(ctx, userID)
}

func (e *authEngine) SessionStrategy() domain.SessionStrategy {
	return e.sessions.Strategy()
}

func (e *authEngine) SessionCookie(token string) *http.Cookie {
	return SessionCookie(token, e.cfg.SessionMaxAge, e.cfg.SecureCookies)
}

func (e *authEngine) LogoutCookie() *http.Cookie {
	return LogoutCookie(e.cfg.SecureCookies)
}

// CleanupExpired purges expired sessions and verification tokens once.
func (e *authEngine) CleanupExpired(ctx context.Context) error {
	sessions, err := e.sessions.CleanupExpiredSessions(ctx)
	if err != nil {
		return err
	}

	tokens, err := e.repos.VerificationToken.DeleteExpired(ctx)
	if err != nil {
		return &DatabaseError{Op: "delete expired verification tokens", Err: err}
	}

	if sessions > 0 || tokens > 0 {
		e.logger.Info("cleanup pass finished",
			zap.Int64("sessions_removed", sessions),
			zap.Int64("tokens_removed", tokens))
	}
	return nil
}

// StartCleanup runs CleanupExpired on a ticker until the context is
// cancelled.
func (e *authEngine) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := e.CleanupExpired(ctx); err != nil {
					e.logger.Error("cleanup pass failed", zap.Error(err))
				}
			}
		}
	}()
}

// Health reports whether the backing store is reachable.
func (e *authEngine) Health(ctx context.Context) error {
	if err := e.repos.Ping(ctx); err != nil {
		return &DatabaseError{Op: "ping", Err: err}
	}
	return nil
}
