// Package notification turns domain events into email for the
// operations team and for leads with a confirmed viewing. Escalations go
// through the outbox so they survive restarts; reminders are already
// durable as delayed queue tasks and are sent directly.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"nurture_backend/internal/events"
	"nurture_backend/internal/notification/outbox"
	"nurture_backend/internal/nurture/playbook"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"

	"github.com/google/uuid"
)

const (
	invalidOutboxPayloadPrefix = "invalid payload: "
	maxOutboxRetryAttempts     = 5
	outboxRetryBaseDelay       = time.Minute
	outboxRetryMaxDelay        = 60 * time.Minute
)

// AlertMailer delivers operational and reminder email.
type AlertMailer interface {
	SendOpsAlert(ctx context.Context, toEmail, leadName string, bodyLines []string, leadURL string) error
	SendAppointmentReminder(ctx context.Context, toEmail, consumerName, slotText string) error
}

// opsAlertOutboxPayload is the stored form of an escalation alert.
type opsAlertOutboxPayload struct {
	LeadID   string `json:"leadId"`
	LeadName string `json:"leadName"`
	Channel  string `json:"channel"`
	Intent   string `json:"intent"`
	Reason   string `json:"reason"`
	Excerpt  string `json:"excerpt"`
}

// Module handles notification-related event subscriptions.
type Module struct {
	outbox *outbox.Repository
	mailer AlertMailer
	cfg    config.NotificationConfig
	loc    *time.Location
	log    *logger.Logger
}

// New creates the notification module. outboxRepo may be nil when no
// queue infrastructure runs; escalation alerts are then sent inline.
func New(outboxRepo *outbox.Repository, mailer AlertMailer, cfg config.NotificationConfig, loc *time.Location, log *logger.Logger) *Module {
	return &Module{
		outbox: outboxRepo,
		mailer: mailer,
		cfg:    cfg,
		loc:    loc,
		log:    log,
	}
}

// RegisterHandlers subscribes to the domain events this module acts on.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.InboundEscalated{}.EventName(), m)
	bus.Subscribe(events.AppointmentReminderDue{}.EventName(), m)
	bus.Subscribe(events.NotificationOutboxDue{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.InboundEscalated:
		return m.handleInboundEscalated(ctx, e)
	case events.AppointmentReminderDue:
		return m.handleAppointmentReminderDue(ctx, e)
	case events.NotificationOutboxDue:
		return m.handleNotificationOutboxDue(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleInboundEscalated(ctx context.Context, e events.InboundEscalated) error {
	payload := opsAlertOutboxPayload{
		LeadID:   e.LeadID.String(),
		LeadName: e.LeadName,
		Channel:  e.Channel,
		Intent:   e.Intent,
		Reason:   e.Reason,
		Excerpt:  e.Excerpt,
	}

	if m.outbox == nil {
		return m.sendOpsAlert(ctx, payload)
	}

	id, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Kind:    outbox.KindOpsAlert,
		Payload: payload,
		RunAt:   time.Now().UTC(),
	})
	if err != nil {
		m.log.Error("failed to enqueue ops alert", "leadId", e.LeadID, "error", err)
		// The alert must not get lost; fall back to a direct send.
		return m.sendOpsAlert(ctx, payload)
	}

	m.log.Info("ops alert enqueued", "outboxId", id.String(), "leadId", e.LeadID, "intent", e.Intent)
	return nil
}

func (m *Module) handleAppointmentReminderDue(ctx context.Context, e events.AppointmentReminderDue) error {
	if m.mailer == nil {
		m.log.Warn("mailer not configured; reminder dropped", "appointmentId", e.AppointmentID)
		return nil
	}
	if e.ConsumerEmail == "" {
		return nil
	}

	slotText := playbook.FormatSlot(e.ScheduledAt, m.loc)
	if err := m.mailer.SendAppointmentReminder(ctx, e.ConsumerEmail, e.ConsumerName, slotText); err != nil {
		m.log.Error("failed to send appointment reminder",
			"appointmentId", e.AppointmentID,
			"leadId", e.LeadID,
			"error", err,
		)
		return err
	}

	m.log.Info("appointment reminder sent", "appointmentId", e.AppointmentID, "leadId", e.LeadID)
	return nil
}

func (m *Module) handleNotificationOutboxDue(ctx context.Context, e events.NotificationOutboxDue) error {
	if m.outbox == nil {
		m.log.Debug("notification outbox not configured; skipping due event", "outboxId", e.OutboxID)
		return nil
	}

	rec, process, err := m.prepareOutboxRecord(ctx, e.OutboxID)
	if err != nil || !process {
		if err != nil {
			m.log.Error("failed to prepare outbox record", "outboxId", e.OutboxID, "error", err)
		}
		return err
	}

	var processErr error
	switch rec.Kind {
	case outbox.KindOpsAlert:
		processErr = m.processOpsAlertRecord(ctx, rec)
	default:
		_ = m.outbox.MarkFailed(ctx, rec.ID, "unsupported kind: "+rec.Kind)
		m.log.Warn("outbox record has unsupported kind", "outboxId", rec.ID.String(), "kind", rec.Kind)
		return nil
	}

	if processErr != nil {
		m.handleOutboxDeliveryError(ctx, rec, processErr)
		return processErr
	}

	if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
		m.log.Error("failed to mark outbox record succeeded", "outboxId", rec.ID.String(), "error", err)
	}
	m.log.Info("outbox record processed", "outboxId", rec.ID.String(), "kind", rec.Kind)
	return nil
}

func (m *Module) prepareOutboxRecord(ctx context.Context, outboxID uuid.UUID) (outbox.Record, bool, error) {
	rec, err := m.outbox.GetByID(ctx, outboxID)
	if err != nil {
		return outbox.Record{}, false, err
	}
	if rec.Status == outbox.StatusSucceeded {
		m.log.Debug("outbox record already succeeded; skipping", "outboxId", rec.ID.String())
		return rec, false, nil
	}
	if err := m.outbox.MarkProcessing(ctx, rec.ID); err != nil {
		return outbox.Record{}, false, err
	}
	return rec, true, nil
}

func (m *Module) processOpsAlertRecord(ctx context.Context, rec outbox.Record) error {
	var payload opsAlertOutboxPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, invalidOutboxPayloadPrefix+err.Error())
		return nil
	}
	return m.sendOpsAlert(ctx, payload)
}

func (m *Module) sendOpsAlert(ctx context.Context, payload opsAlertOutboxPayload) error {
	if m.mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	toEmail := m.cfg.GetOpsAlertEmail()
	if toEmail == "" {
		return fmt.Errorf("ops alert email not configured")
	}

	leadURL := strings.TrimRight(m.cfg.GetAppBaseURL(), "/") + "/leads/" + payload.LeadID
	bodyLines := []string{
		fmt.Sprintf("%s stuurde een bericht dat niet automatisch beantwoord kon worden.", payload.LeadName),
		fmt.Sprintf("Kanaal: %s", payload.Channel),
		fmt.Sprintf("Intentie: %s", payload.Intent),
		fmt.Sprintf("Bericht: “%s”", payload.Excerpt),
	}

	if err := m.mailer.SendOpsAlert(ctx, toEmail, payload.LeadName, bodyLines, leadURL); err != nil {
		return err
	}

	m.log.Info("ops alert sent", "leadId", payload.LeadID, "intent", payload.Intent)
	return nil
}

func (m *Module) handleOutboxDeliveryError(ctx context.Context, rec outbox.Record, deliveryErr error) {
	attempt := rec.Attempts + 1
	if attempt >= maxOutboxRetryAttempts {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Warn("notification outbox exhausted retries",
			"outboxId", rec.ID.String(),
			"kind", rec.Kind,
			"attempt", attempt,
			"maxAttempts", maxOutboxRetryAttempts,
			"error", deliveryErr,
		)
		return
	}

	retryAt := time.Now().UTC().Add(computeOutboxRetryDelay(attempt))
	if err := m.outbox.ScheduleRetry(ctx, rec.ID, retryAt, deliveryErr.Error()); err != nil {
		_ = m.outbox.MarkFailed(ctx, rec.ID, deliveryErr.Error())
		m.log.Error("notification outbox retry scheduling failed; marked failed",
			"outboxId", rec.ID.String(),
			"attempt", attempt,
			"error", err,
		)
		return
	}

	m.log.Warn("notification outbox scheduled retry",
		"outboxId", rec.ID.String(),
		"kind", rec.Kind,
		"attempt", attempt,
		"retryAt", retryAt,
		"error", deliveryErr,
	)
}

func computeOutboxRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := outboxRetryBaseDelay << (attempt - 1)
	if delay > outboxRetryMaxDelay {
		return outboxRetryMaxDelay
	}
	return delay
}
