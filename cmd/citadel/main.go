package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/citadel-authz/citadel/internal/app"
	"github.com/citadel-authz/citadel/internal/auth"
	"github.com/citadel-authz/citadel/internal/authz"
	"github.com/citadel-authz/citadel/internal/observability"
	"github.com/citadel-authz/citadel/internal/platform/cache"
	"github.com/citadel-authz/citadel/internal/platform/db"
	"github.com/citadel-authz/citadel/internal/shared"
	"github.com/citadel-authz/citadel/internal/tenants"
	"github.com/citadel-authz/citadel/internal/users"
	"github.com/citadel-authz/citadel/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "citadel_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())

	metrics := observability.NewMetrics()

	authzRepo := authz.NewRepository(dbpool)
	authzService := authz.NewService(authzRepo, logger)
	seedCorePermissions(ctx, logger, authzRepo)
	if err := authzService.ReloadPolicy(ctx); err != nil {
		// Start with an empty policy set rather than refuse to boot; the
		// scheduled reload picks up the store once it is reachable.
		logger.Warn("initial policy load", slog.Any("error", err))
	}
	authzMiddleware := authz.Middleware{Service: authzService, Logger: logger, Metrics: metrics}
	authzHandler := authz.NewHandler(logger, authzService, authzRepo, authzMiddleware)

	tenantsRepo := tenants.NewRepository(dbpool)
	tenantsService := tenants.NewService(tenantsRepo)
	tenantsHandler := tenants.NewHandler(logger, tenantsService, authzMiddleware)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, tenantsService, sessionManager)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService, authzMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		AuthHandler:    authHandler,
		AuthzHandler:   authzHandler,
		UsersHandler:   usersHandler,
		TenantsHandler: tenantsHandler,
		JobsHandler:    jobsHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// seedCorePermissions ensures the permissions protecting the management API
// itself exist. Existing rows are left alone.
func seedCorePermissions(ctx context.Context, logger *slog.Logger, repo authz.Repository) {
	for _, code := range shared.CorePermissionCodes() {
		resource, action, ok := strings.Cut(code, ":")
		if !ok {
			continue
		}
		if _, err := repo.CreatePermission(ctx, code, resource, action, "", ""); err != nil {
			if errors.Is(err, authz.ErrDuplicate) {
				continue
			}
			logger.Warn("seed permission", slog.String("code", code), slog.Any("error", err))
		}
	}
}
