package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/rising-bsm/rising/internal/app"
	"github.com/rising-bsm/rising/internal/appointments"
	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/automation"
	"github.com/rising-bsm/rising/internal/customers"
	"github.com/rising-bsm/rising/internal/dashboard"
	"github.com/rising-bsm/rising/internal/invoices"
	"github.com/rising-bsm/rising/internal/platform/cache"
	"github.com/rising-bsm/rising/internal/platform/db"
	"github.com/rising-bsm/rising/internal/rbac"
	"github.com/rising-bsm/rising/internal/requests"
	"github.com/rising-bsm/rising/internal/shared"
	"github.com/rising-bsm/rising/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDialTimeout)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		os.Exit(1)
	}
	registry := auth.NewRevocationRegistry(redisClient, cfg.AuthFailClosed, logger)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, verifier, registry, auditLogger, logger,
		auth.WithRefreshTTL(cfg.RefreshTokenTTL))

	rbacStore := rbac.NewStore(pool)
	resolver := rbac.NewResolver(rbacStore)
	permCache := rbac.NewPermissionCache(cfg.PermissionCacheTTL())
	gate := rbac.NewGate(resolver, permCache, cfg.RBACAdminBypass, logger)

	customersService := customers.NewService(customers.NewRepository(pool), logger)
	appointmentsService := appointments.NewService(appointments.NewRepository(pool), logger)
	requestsService := requests.NewService(requests.NewRepository(pool), customersService, appointmentsService, logger)
	invoicesService := invoices.NewService(invoices.NewRepository(pool), invoices.NewAmountFormatter(cfg.InvoiceLocale), logger)
	dashboardService := dashboard.NewService(requestsService, customersService, appointmentsService, invoicesService, redisClient, logger)

	queue, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job queue", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("job queue close", slog.Any("error", err))
		}
	}()
	automationService := automation.NewService(automation.NewRepository(pool), queue, logger)

	purgeJob := jobs.NewPurgeTokensJob(authService, logger)
	warmJob := jobs.NewWarmCacheJob(authRepo, gate, logger)
	refreshJob := jobs.NewDashboardRefreshJob(dashboardService, logger)
	deliverJob := jobs.NewDeliverWebhookJob(automationService, logger)

	warmTask, err := jobs.NewWarmCacheTask(jobs.WarmCachePayload{SinceHours: 24, Limit: 200})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAuthPurgeTokens, Handler: purgeJob.Handle},
			{Type: jobs.TaskRBACWarmCache, Handler: warmJob.Handle},
			{Type: jobs.TaskDashboardRefresh, Handler: refreshJob.Handle},
			{Type: jobs.TaskAutomationDeliver, Handler: deliverJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 3 * * *", Task: jobs.NewPurgeTokensTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "15 * * * *", Task: warmTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "*/5 * * * *", Task: jobs.NewDashboardRefreshTask(), Options: []asynq.Option{asynq.MaxRetry(1)}},
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
