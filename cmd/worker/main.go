package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/citadel-authz/citadel/internal/app"
	"github.com/citadel-authz/citadel/internal/authz"
	"github.com/citadel-authz/citadel/internal/platform/db"
	"github.com/citadel-authz/citadel/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	authzRepo := authz.NewRepository(pool)
	authzService := authz.NewService(authzRepo, logger)

	reloadTask, err := jobs.NewPolicyReloadTask(jobs.PolicyReloadPayload{Reason: "scheduled"})
	if err != nil {
		logger.Error("build reload task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskPolicyReload, Handler: jobs.NewPolicyReloadHandler(authzService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PolicyReloadCron, Task: reloadTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
