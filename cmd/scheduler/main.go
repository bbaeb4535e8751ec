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
	"nurture_backend/internal/inboundmail"
	"nurture_backend/internal/notification"
	"nurture_backend/internal/notification/outbox"
	"nurture_backend/internal/nurture"
	nurturerepo "nurture_backend/internal/nurture/repository"
	"nurture_backend/internal/scheduler"
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
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	eventBus := events.NewInMemoryBus(log)

	redisClient := initRedisClient(cfg, log)
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	mailer := email.NewSMTPSender(cfg)
	if mailer == nil {
		log.Warn("email sending disabled, no SMTP host configured")
	}

	notificationModule := notification.New(outbox.New(pool), alertMailer(mailer), cfg, cfg.GetLocation(), log)
	notificationModule.RegisterHandlers(eventBus)

	val := validator.New()

	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Inbound mail routed here needs the same booker wiring as the API
	// process: a viewing request creates a provisional appointment.
	appointmentsModule := appointments.NewModule(pool, confirmationMailer(mailer), eventBus, reminderScheduler, val, cfg, log)

	nurtureModule, err := nurture.NewModule(pool, redisClient, eventBus, val, appointmentsModule.Service, cfg, log)
	if err != nil {
		log.Error("failed to initialize nurture module", "error", err)
		panic("failed to initialize nurture module: " + err.Error())
	}

	leadScheduler := adapters.NewNurtureLeadScheduler(nurturerepo.New(pool), eventBus, cfg.GetLocation(), log)
	appointmentsModule.Service.SetLeadScheduler(leadScheduler)

	// The due-lead sweeper is the heart of this process.
	sweeper := scheduler.NewSweeper(nurtureModule.Executor, cfg, log)
	go sweeper.Run(ctx)

	// Optional IMAP poller feeds inbound replies into the router.
	poller := inboundmail.New(cfg, nurturerepo.New(pool), nurtureModule.Router, log)
	go poller.Run(ctx)

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; outbox dispatch and reminder delivery disabled")
		<-ctx.Done()
		return
	}

	dispatcher, err := scheduler.NewNotificationOutboxDispatcher(cfg, pool, log)
	if err != nil {
		log.Error("failed to initialize outbox dispatcher", "error", err)
		panic("failed to initialize outbox dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, pool, eventBus, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
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
