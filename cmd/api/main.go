package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nurture_backend/internal/adapters"
	"nurture_backend/internal/appointments"
	appointmentsvc "nurture_backend/internal/appointments/service"
	"nurture_backend/internal/email"
	"nurture_backend/internal/events"
	apphttp "nurture_backend/internal/http"
	"nurture_backend/internal/http/router"
	"nurture_backend/internal/notification"
	"nurture_backend/internal/notification/outbox"
	"nurture_backend/internal/nurture"
	nurturerepo "nurture_backend/internal/nurture/repository"
	"nurture_backend/internal/scheduler"
	"nurture_backend/internal/webhook"
	"nurture_backend/migrations"
	"nurture_backend/platform/config"
	"nurture_backend/platform/db"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, migrations.FS, ".")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	redisClient := initRedisClient(cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	mailer := email.NewSMTPSender(cfg)
	if mailer == nil {
		log.Warn("email sending disabled, no SMTP host configured")
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing).
	// Escalation alerts go through the outbox so they survive restarts.
	notificationModule := notification.New(outbox.New(pool), alertMailer(mailer), cfg, cfg.GetLocation(), log)
	notificationModule.RegisterHandlers(eventBus)

	appointmentsModule := appointments.NewModule(pool, confirmationMailer(mailer), eventBus, reminderScheduler, val, cfg, log)

	nurtureModule, err := nurture.NewModule(pool, redisClient, eventBus, val, appointmentsModule.Service, cfg, log)
	if err != nil {
		log.Error("failed to initialize nurture module", "error", err)
		panic("failed to initialize nurture module: " + err.Error())
	}

	// A confirmed viewing moves the lead to the confirmed stage (breaks
	// the circular dependency between the two modules).
	leadScheduler := adapters.NewNurtureLeadScheduler(nurturerepo.New(pool), eventBus, cfg.GetLocation(), log)
	appointmentsModule.Service.SetLeadScheduler(leadScheduler)

	// Provider-facing inbound webhook feeds the nurture inbound router.
	webhookModule := webhook.NewModule(nurturerepo.New(pool), nurtureModule.Router, cfg, val, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			nurtureModule,
			appointmentsModule,
			webhookModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// alertMailer converts a possibly-nil sender into the interface the
// notification module consumes without smuggling a typed nil.
func alertMailer(s *email.SMTPSender) notification.AlertMailer {
	if s == nil {
		return nil
	}
	return s
}

func confirmationMailer(s *email.SMTPSender) appointmentsvc.ConfirmationMailer {
	if s == nil {
		return nil
	}
	return s
}

// initRedisClient builds the client backing the cross-instance lead
// lease. Without Redis the in-process guard alone serializes runs.
func initRedisClient(cfg config.SchedulerConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; lead lease runs in-process only")
		return nil
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid REDIS_URL, lead lease disabled", "error", err)
		return nil
	}

	return redis.NewClient(opt)
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; appointment reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
