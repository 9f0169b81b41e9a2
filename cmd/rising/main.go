package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/rising-bsm/rising/internal/app"
	"github.com/rising-bsm/rising/internal/appointments"
	"github.com/rising-bsm/rising/internal/auth"
	"github.com/rising-bsm/rising/internal/automation"
	"github.com/rising-bsm/rising/internal/customers"
	"github.com/rising-bsm/rising/internal/dashboard"
	"github.com/rising-bsm/rising/internal/invoices"
	"github.com/rising-bsm/rising/internal/observability"
	"github.com/rising-bsm/rising/internal/platform/cache"
	"github.com/rising-bsm/rising/internal/platform/db"
	"github.com/rising-bsm/rising/internal/rbac"
	"github.com/rising-bsm/rising/internal/requests"
	"github.com/rising-bsm/rising/internal/shared"
	"github.com/rising-bsm/rising/internal/users"
	"github.com/rising-bsm/rising/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	metrics := observability.NewMetrics()
	validate := validator.New()
	auditLogger := shared.NewAuditLogger(dbpool)

	verifier, err := auth.NewVerifier(cfg.JWTSecret, cfg.JWTExpiresIn)
	if err != nil {
		logger.Error("init token verifier", slog.Any("error", err))
		os.Exit(1)
	}
	registry := auth.NewRevocationRegistry(redisClient, cfg.AuthFailClosed, logger)
	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo, verifier, registry, auditLogger, logger,
		auth.WithRefreshTTL(cfg.RefreshTokenTTL))
	authHandler := auth.NewHandler(logger, authService)
	authenticator := auth.NewAuthenticator(verifier, registry, logger)

	rbacStore := rbac.NewStore(dbpool)
	resolver := rbac.NewResolver(rbacStore)
	permCache := rbac.NewPermissionCache(cfg.PermissionCacheTTL(),
		rbac.WithLookupObserver(func(hit bool) {
			if hit {
				metrics.CacheLookup("hit")
			} else {
				metrics.CacheLookup("miss")
			}
		}))
	gate := rbac.NewGate(resolver, permCache, cfg.RBACAdminBypass, logger,
		rbac.WithDecisionObserver(metrics.AuthDecision))
	rbacService := rbac.NewService(rbacStore, permCache, auditLogger, logger)
	rbacHandler := rbac.NewHandler(logger, rbacService, gate)
	rbacMiddleware := rbac.Middleware{Gate: gate, Logger: logger}

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, permCache, logger)
	usersHandler := users.NewHandler(logger, usersService, validate)

	customersRepo := customers.NewRepository(dbpool)
	customersService := customers.NewService(customersRepo, logger)
	customersHandler := customers.NewHandler(logger, customersService, validate)

	appointmentsRepo := appointments.NewRepository(dbpool)
	appointmentsService := appointments.NewService(appointmentsRepo, logger)
	appointmentsHandler := appointments.NewHandler(logger, appointmentsService, validate)

	requestsRepo := requests.NewRepository(dbpool)
	requestsService := requests.NewService(requestsRepo, customersService, appointmentsService, logger)
	requestsHandler := requests.NewHandler(logger, requestsService, validate)

	formatter := invoices.NewAmountFormatter(cfg.InvoiceLocale)
	invoicesRepo := invoices.NewRepository(dbpool)
	invoicesService := invoices.NewService(invoicesRepo, formatter, logger)
	invoicesHandler := invoices.NewHandler(logger, invoicesService, validate)

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

	automationRepo := automation.NewRepository(dbpool)
	automationService := automation.NewService(automationRepo, queue, logger)
	automationHandler := automation.NewHandler(logger, automationService, validate)

	dashboardService := dashboard.NewService(requestsService, customersService, appointmentsService, invoicesService, redisClient, logger)
	dashboardHandler := dashboard.NewHandler(logger, dashboardService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Authenticator:       authenticator,
		AuthHandler:         authHandler,
		RBACHandler:         rbacHandler,
		RBACMiddleware:      rbacMiddleware,
		UsersHandler:        usersHandler,
		RequestsHandler:     requestsHandler,
		CustomersHandler:    customersHandler,
		AppointmentsHandler: appointmentsHandler,
		InvoicesHandler:     invoicesHandler,
		AutomationHandler:   automationHandler,
		DashboardHandler:    dashboardHandler,
		JobsHandler:         jobs.NewHandler(inspector, logger),
		Metrics:             metrics,
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
