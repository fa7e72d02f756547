package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/AdansBatista/orca-sub008/internal"
	"github.com/AdansBatista/orca-sub008/internal/domain"
	"github.com/AdansBatista/orca-sub008/internal/email"
	"github.com/AdansBatista/orca-sub008/internal/gateway"
	"github.com/AdansBatista/orca-sub008/internal/handler"
	"github.com/AdansBatista/orca-sub008/internal/handler/webhook"
	"github.com/AdansBatista/orca-sub008/internal/middleware"
	"github.com/AdansBatista/orca-sub008/internal/postgres"
	"github.com/AdansBatista/orca-sub008/internal/router"
	"github.com/AdansBatista/orca-sub008/internal/routes"
	"github.com/AdansBatista/orca-sub008/internal/scheduler"
	"github.com/AdansBatista/orca-sub008/internal/service"
	"github.com/AdansBatista/orca-sub008/internal/telemetry"
	"github.com/AdansBatista/orca-sub008/internal/worker"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Register billing business metrics
	telemetry.InitBusinessMetrics("orca")

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	clinics := postgres.NewClinicService(pool)
	accounts := postgres.NewAccountService(pool)
	plans := postgres.NewPaymentPlanService(pool)
	payments := postgres.NewPaymentService(pool)
	scheduledPayments := postgres.NewScheduledPaymentService(pool)
	claims := postgres.NewClaimService(pool)
	jobs := postgres.NewJobService(pool)

	// Initialize Stripe payment gateway
	logger.Info("Initializing Stripe payment gateway...")
	provider, err := gateway.NewStripeProvider(gateway.StripeConfig{
		APIKey:         cfg.Stripe.SecretKey,
		WebhookSecret:  cfg.Stripe.WebhookSecret,
		TimeoutSeconds: cfg.Stripe.TimeoutSeconds,
		MaxRetries:     cfg.Stripe.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe payment gateway initialized")

	// Initialize email delivery
	var sender email.Sender
	switch cfg.Email.Provider {
	case "postmark":
		sender = email.NewPostmarkSender(cfg.Email.PostmarkToken)
	default:
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
	}
	emailService, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName)
	if err != nil {
		return fmt.Errorf("failed to initialize email service: %w", err)
	}
	logger.Info("Email service initialized", "provider", cfg.Email.Provider)

	// Initialize billing engine
	engine := service.NewBillingEngine(
		scheduledPayments,
		plans,
		accounts,
		payments,
		jobs,
		provider,
		domain.RecurringBillingConfig{
			MaxRetryAttempts: cfg.Billing.MaxRetryAttempts,
			RetryDelayDays:   cfg.Billing.RetryDelayDays,
			NotifyOnFailure:  cfg.Billing.NotifyOnFailure,
			NotifyOnSuccess:  cfg.Billing.NotifyOnSuccess,
		},
		logger,
	)
	claimsService := service.NewClaimsService(claims)
	logger.Info("Billing engine initialized",
		"max_retry_attempts", cfg.Billing.MaxRetryAttempts,
		"retry_delay_days", cfg.Billing.RetryDelayDays,
	)

	// ==========================================================================
	// Build route dependencies
	// ==========================================================================

	apiDeps := routes.APIDeps{
		Billing: handler.NewBillingHandler(engine, accounts, logger),
		Claims:  handler.NewClaimsHandler(claimsService, logger),
		Clinics: clinics,
		Logger:  logger,
	}

	stripeWebhookHandler := webhook.NewStripeHandler(provider, engine, clinics, webhook.StripeWebhookConfig{
		WebhookSecret: cfg.Stripe.WebhookSecret,
	}, logger)
	webhookDeps := routes.WebhookDeps{
		StripeHandler: stripeWebhookHandler.HandleWebhook,
	}

	// ==========================================================================
	// Initialize middleware
	// ==========================================================================

	// Initialize Prometheus HTTP metrics
	metrics := middleware.NewMetrics("orca")

	// Configure security headers
	securityConfig := middleware.DefaultSecurityHeadersConfig()
	if cfg.Env == "dev" {
		securityConfig.ContentSecurityPolicy = ""
		securityConfig.HSTSMaxAge = 0 // Disable HSTS in development
	}

	// Configure rate limiting
	defaultRateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		middleware.WithRequestLogger(logger),
		metrics.Middleware,
		telemetry.SentryMiddleware(),
		middleware.SecurityHeaders(securityConfig),
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		defaultRateLimiter.Middleware,
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)

	// ==========================================================================
	// Start background processing
	// ==========================================================================

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.NewScheduler(jobs, clinics, scheduler.Config{
			DueRunSpec:    cfg.Scheduler.DueRunSpec,
			ReconcileSpec: cfg.Scheduler.ReconcileSpec,
			CleanupSpec:   cfg.Scheduler.CleanupSpec,
			StaleAge:      cfg.Scheduler.StaleAge,
			JobRetention:  cfg.Scheduler.JobRetention,
		}, logger)
		if err := sched.Start(); err != nil {
			return fmt.Errorf("scheduler start failed: %w", err)
		}
	}

	var workerDone chan struct{}
	if cfg.Worker.Enabled {
		workerID := cfg.Worker.ID
		if workerID == "" {
			if host, err := os.Hostname(); err == nil {
				workerID = fmt.Sprintf("%s-%d", host, os.Getpid())
			}
		}
		w := worker.NewWorker(jobs, engine, emailService, clinics, accounts, worker.Config{
			WorkerID:       workerID,
			PollInterval:   cfg.Worker.PollInterval,
			MaxConcurrency: cfg.Worker.MaxConcurrency,
			Queue:          cfg.Worker.Queue,
		}, logger)

		workerDone = make(chan struct{})
		go func() {
			defer close(workerDone)
			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Worker stopped unexpectedly", "error", err)
			}
		}()
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting billing server",
			"address", srv.Addr,
			"env", cfg.Env,
			"scheduler_enabled", cfg.Scheduler.Enabled,
			"worker_enabled", cfg.Worker.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	// Stop accepting new work, then drain: cron first so nothing new is
	// enqueued, then HTTP, then the worker finishes in-flight jobs.
	if sched != nil {
		sched.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if workerDone != nil {
		<-workerDone
	}

	logger.Info("Shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
