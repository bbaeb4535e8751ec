package scheduler

import (
	"context"
	"fmt"

	apptrepo "nurture_backend/internal/appointments/repository"
	"nurture_backend/internal/events"
	"nurture_backend/internal/nurture/domain"
	nurturerepo "nurture_backend/internal/nurture/repository"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker consumes delayed tasks. Reminder tasks re-read the appointment
// and the lead before publishing, so a cancellation or opt-out between
// scheduling and firing suppresses the reminder.
type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	appointments *apptrepo.Repository
	leads        *nurturerepo.Repository
	bus          events.Bus
	log          *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, bus events.Bus, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:       server,
		mux:          mux,
		appointments: apptrepo.New(pool),
		leads:        nurturerepo.New(pool),
		bus:          bus,
		log:          log,
	}

	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)
	mux.HandleFunc(TaskNotificationOutboxDue, w.handleNotificationOutboxDue)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return err
	}

	apptID, err := uuid.Parse(payload.AppointmentID)
	if err != nil {
		return err
	}

	appt, err := w.appointments.Get(ctx, apptID)
	if err != nil {
		return err
	}

	if appt.Status != apptrepo.StatusConfirmed || appt.ScheduledAt == nil {
		return nil
	}

	lead, err := w.leads.Get(ctx, appt.LeadID)
	if err != nil {
		return err
	}

	// A lead that opted out after confirming gets no reminder.
	if lead.Stage == domain.StageNotInterested {
		return nil
	}
	if lead.Email == nil || *lead.Email == "" {
		return nil
	}

	if w.bus == nil {
		return nil
	}

	w.bus.Publish(ctx, events.AppointmentReminderDue{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: appt.ID,
		LeadID:        appt.LeadID,
		ScheduledAt:   *appt.ScheduledAt,
		ConsumerName:  lead.Name,
		ConsumerEmail: *lead.Email,
	})

	return nil
}

func (w *Worker) handleNotificationOutboxDue(ctx context.Context, task *asynq.Task) error {
	if w.bus == nil {
		return nil
	}

	payload, err := ParseNotificationOutboxDuePayload(task)
	if err != nil {
		return err
	}

	outboxID, err := uuid.Parse(payload.OutboxID)
	if err != nil {
		return err
	}

	return w.bus.PublishSync(ctx, events.NotificationOutboxDue{
		BaseEvent: events.NewBaseEvent(),
		OutboxID:  outboxID,
	})
}
