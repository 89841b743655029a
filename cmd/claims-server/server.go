package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/livestock/claims/internal/config"
	"github.com/livestock/claims/internal/domain/claim"
	"github.com/livestock/claims/internal/domain/export"
	"github.com/livestock/claims/internal/domain/importer"
	"github.com/livestock/claims/internal/domain/submission"
	"github.com/livestock/claims/internal/platform/auth"
	"github.com/livestock/claims/internal/platform/db"
	"github.com/livestock/claims/internal/platform/middleware"
	"github.com/livestock/claims/internal/platform/notification"
)

const version = "0.1.0"

// app holds the wired services shared by the HTTP server and the CLI
// commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	pool     *pgxpool.Pool
	claims   *claim.Service
	mapper   *importer.Mapper
	exporter *export.Exporter
	notifier *notification.Manager
	dispatch *submission.Dispatcher
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg != nil && cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	if cfg != nil {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err == nil && cfg.LogLevel != "" {
			logger = logger.Level(lvl)
		}
	}
	return logger
}

// loadConfig reads and validates the environment.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openRepository picks the claim store named by STORAGE. The returned pool
// is nil for in-memory storage.
func openRepository(ctx context.Context, cfg *config.Config) (claim.Repository, *pgxpool.Pool, error) {
	if cfg.Storage == config.StorageMemory {
		return claim.NewMemoryRepository(), nil, nil
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return claim.NewRepoPG(pool), pool, nil
}

// newApp wires the services on top of repo. A nil sender delivers over SMTP
// with the configured server.
func newApp(cfg *config.Config, logger zerolog.Logger, repo claim.Repository, pool *pgxpool.Pool, sender notification.EmailSender) (*app, error) {
	locked, err := cfg.LockPolicy()
	if err != nil {
		return nil, fmt.Errorf("locked statuses: %w", err)
	}
	if sender == nil {
		sender = notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.SMTPFrom,
		})
	}

	svc := claim.NewService(repo, locked, logger.With().Str("component", "claims").Logger())
	notifier := notification.NewManager(sender, cfg.NotifyEmail, cfg.DispatchLogTTL)
	return &app{
		cfg:      cfg,
		logger:   logger,
		pool:     pool,
		claims:   svc,
		mapper:   importer.NewMapper(svc, logger.With().Str("component", "import").Logger()),
		exporter: export.NewExporter(svc, nil, logger.With().Str("component", "export").Logger()),
		notifier: notifier,
		dispatch: submission.NewDispatcher(svc, notifier, cfg.NotifyRollback,
			logger.With().Str("component", "submission").Logger()),
	}, nil
}

func (a *app) authMiddleware() echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{Issuer: a.cfg.AuthIssuer, SigningKey: []byte(a.cfg.AuthSigningKey)}
	if a.cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// newServer builds the echo instance with the middleware stack and every
// route registered.
func (a *app) newServer() *echo.Echo {
	cfg := a.cfg

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-ID", "If-Match"},
		ExposeHeaders: []string{"ETag", "Content-Disposition", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.UploadLimit, "/api/v1"+importer.UploadRoute))

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(a.pool))

	apiV1 := e.Group("/api/v1")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(a.authMiddleware())
	if cfg.RequestTimeout > 0 {
		apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	export.NewHandler(a.exporter).RegisterRoutes(apiV1)
	submission.NewHandler(a.dispatch).RegisterRoutes(apiV1)
	claim.NewHandler(a.claims).RegisterRoutes(apiV1)
	claim.NewWorksheetHandler().RegisterRoutes(apiV1)
	importer.NewHandler(a.mapper).RegisterRoutes(apiV1)
	notification.NewHandler(a.notifier).RegisterRoutes(apiV1)

	return e
}
