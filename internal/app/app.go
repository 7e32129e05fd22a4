package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/prperemyshlev/auth-engine/internal/config"
	"github.com/prperemyshlev/auth-engine/internal/domain"
	"github.com/prperemyshlev/auth-engine/internal/handler"
	"github.com/prperemyshlev/auth-engine/internal/repository"
	"github.com/prperemyshlev/auth-engine/internal/service"
	"github.com/prperemyshlev/auth-engine/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	infra   Infrastructure
	config  *config.Config
	engine  service.AuthEngine
	router  *gin.Engine
	server  *http.Server
	cleanup context.CancelFunc
}

func NewApp(infra Infrastructure, cfg *config.Config) (*App, error) {
	repos := repository.NewRepositories(infra.Postgres())

	providers := map[string]service.ProviderCredentials{}
	if cfg.OAuth.Google.Enabled() {
		providers["google"] = service.ProviderCredentials{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
		}
	}
	if cfg.OAuth.GitHub.Enabled() {
		providers["github"] = service.ProviderCredentials{
			ClientID:     cfg.OAuth.GitHub.ClientID,
			ClientSecret: cfg.OAuth.GitHub.ClientSecret,
		}
	}

	engine, err := service.NewAuthEngine(service.Config{
		SessionStrategy:      domain.SessionStrategy(cfg.Session.Strategy),
		SessionMaxAge:        cfg.Session.MaxAge.Duration,
		SessionSecret:        cfg.Session.Secret,
		SecureCookies:        cfg.IsProduction(),
		EmailPasswordEnabled: cfg.Security.EmailPasswordAuth,
		BcryptCost:           cfg.Security.BCryptCost,
		ResetTokenTTL:        cfg.Security.ResetTokenTTL.Duration,
		Providers:            providers,
	}, repos, infra.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to build auth engine: %w", err)
	}

	stateCache := service.NewStateCache(infra.Redis(), cfg.OAuth.StateTTL.Duration)
	rateLimiter := service.NewRateLimiter(infra.Redis())
	healthChecker := NewHealthChecker(infra, engine)

	authHandler := handler.NewAuthHandler(engine, stateCache, cfg.Server.BaseURL)

	router := gin.Default()
	router.Use(otelgin.Middleware("auth-engine"))
	router.Use(handler.LoggerMiddleware(infra.Logger()))
	router.Use(handler.CORSMiddleware(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedMethods, cfg.CORS.AllowedHeaders))

	setupRoutes(router, cfg, authHandler, engine, rateLimiter, healthChecker, infra.MetricsHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Duration,
		WriteTimeout: cfg.Server.WriteTimeout.Duration,
	}

	return &App{
		infra:  infra,
		config: cfg,
		engine: engine,
		router: router,
		server: srv,
	}, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Engine() service.AuthEngine {
	return a.engine
}

func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandler *handler.AuthHandler,
	engine service.AuthEngine,
	rateLimiter *service.RateLimiter,
	healthChecker *HealthChecker,
	metricsHandler http.Handler,
) {
	router.GET("/metrics", observability.PrometheusHandler(metricsHandler))
	router.GET("/health", healthChecker.Handler)

	throttled := handler.RateLimitMiddleware(rateLimiter, cfg.Security.RateLimitRequests, cfg.Security.RateLimitWindow.Duration, handler.IPBasedKey)

	api := router.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", throttled, authHandler.Register)
			auth.POST("/login", throttled, authHandler.Login)
			auth.POST("/logout", authHandler.Logout)
			auth.GET("/me", handler.AuthMiddleware(engine), authHandler.GetMe)
			auth.PUT("/password", handler.AuthMiddleware(engine), authHandler.ChangePassword)
			auth.POST("/password/reset", throttled, authHandler.RequestPasswordReset)
			auth.POST("/password/reset/confirm", throttled, authHandler.ConfirmPasswordReset)

			oauth := auth.Group("/oauth")
			{
				oauth.GET("/providers", authHandler.Providers)
				oauth.GET("/:provider", authHandler.OAuthAuthorize)
				oauth.GET("/:provider/callback", authHandler.OAuthCallback)
			}
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	cleanupCtx, cancel := context.WithCancel(ctx)
	a.cleanup = cancel
	a.engine.StartCleanup(cleanupCtx, a.config.Security.CleanupInterval.Duration)

	errChan := make(chan error, 1)

	go func() {
		a.infra.Logger().Info("Application starting",
			zap.String("host", a.config.Server.Host),
			zap.String("port", a.config.Server.Port),
			zap.String("session_strategy", a.config.Session.Strategy),
		)

		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.infra.Logger().Error("Server error", zap.Error(err))
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case err := <-errChan:
		a.infra.Logger().Error("Application failed to start", zap.Error(err))
		serverErr = err
	case <-ctx.Done():
		a.infra.Logger().Info("Application stopped by context")
	}

	if err := a.Shutdown(); err != nil {
		a.infra.Logger().Error("Shutdown error", zap.Error(err))
		if serverErr != nil {
			return errors.Join(serverErr, err)
		}
		return err
	}

	return serverErr
}

func (a *App) Shutdown() error {
	a.infra.Logger().Info("Application shutting down...")

	if a.cleanup != nil {
		a.cleanup()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- a.server.Shutdown(ctx)
	}()

	go func() {
		errs <- a.infra.Shutdown(ctx)
	}()

	err := errors.Join(<-errs, <-errs)
	if err != nil {
		a.infra.Logger().Error("Shutdown failed", zap.Error(err))
		return err
	}

	a.infra.Logger().Info("Application exited successfully")
	return nil
}
