package notification

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/events"
	"nurture_backend/platform/logger"
)

type fakeNotificationConfig struct {
	opsEmail string
	baseURL  string
}

func (f fakeNotificationConfig) GetOpsAlertEmail() string { return f.opsEmail }
func (f fakeNotificationConfig) GetAppBaseURL() string    { return f.baseURL }

type opsAlertCall struct {
	toEmail   string
	leadName  string
	bodyLines []string
	leadURL   string
}

type reminderCall struct {
	toEmail      string
	consumerName string
	slotText     string
}

type fakeAlertMailer struct {
	opsAlerts []opsAlertCall
	reminders []reminderCall
	sendErr   error
}

func (f *fakeAlertMailer) SendOpsAlert(ctx context.Context, toEmail, leadName string, bodyLines []string, leadURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.opsAlerts = append(f.opsAlerts, opsAlertCall{toEmail: toEmail, leadName: leadName, bodyLines: bodyLines, leadURL: leadURL})
	return nil
}

func (f *fakeAlertMailer) SendAppointmentReminder(ctx context.Context, toEmail, consumerName, slotText string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.reminders = append(f.reminders, reminderCall{toEmail: toEmail, consumerName: consumerName, slotText: slotText})
	return nil
}

func newTestModule(mailer AlertMailer, cfg fakeNotificationConfig) *Module {
	loc, _ := time.LoadLocation("Europe/Amsterdam")
	return New(nil, mailer, cfg, loc, logger.New("development"))
}

func TestInboundEscalatedSendsOpsAlert(t *testing.T) {
	mailer := &fakeAlertMailer{}
	m := newTestModule(mailer, fakeNotificationConfig{
		opsEmail: "ops@example.com",
		baseURL:  "https://portal.example.com/",
	})

	leadID := uuid.New()
	err := m.Handle(context.Background(), events.InboundEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    leadID,
		LeadName:  "Jan de Vries",
		Channel:   "email",
		Intent:    "unsubscribe",
		Reason:    "reply received while suppressed",
		Excerpt:   "graag geen mail meer",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(mailer.opsAlerts) != 1 {
		t.Fatalf("expected 1 ops alert, got %d", len(mailer.opsAlerts))
	}
	call := mailer.opsAlerts[0]
	if call.toEmail != "ops@example.com" {
		t.Errorf("ops alert sent to %q, want ops@example.com", call.toEmail)
	}
	wantURL := "https://portal.example.com/leads/" + leadID.String()
	if call.leadURL != wantURL {
		t.Errorf("lead URL = %q, want %q", call.leadURL, wantURL)
	}
	body := strings.Join(call.bodyLines, "\n")
	for _, want := range []string{"Jan de Vries", "email", "unsubscribe", "graag geen mail meer"} {
		if !strings.Contains(body, want) {
			t.Errorf("alert body missing %q:\n%s", want, body)
		}
	}
}

func TestInboundEscalatedWithoutOpsEmailFails(t *testing.T) {
	mailer := &fakeAlertMailer{}
	m := newTestModule(mailer, fakeNotificationConfig{baseURL: "https://portal.example.com"})

	err := m.Handle(context.Background(), events.InboundEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
		LeadName:  "Jan de Vries",
	})
	if err == nil {
		t.Fatal("expected error when ops alert email is not configured")
	}
	if len(mailer.opsAlerts) != 0 {
		t.Errorf("expected no ops alerts, got %d", len(mailer.opsAlerts))
	}
}

func TestInboundEscalatedMailerFailurePropagates(t *testing.T) {
	mailer := &fakeAlertMailer{sendErr: errors.New("smtp down")}
	m := newTestModule(mailer, fakeNotificationConfig{opsEmail: "ops@example.com"})

	err := m.Handle(context.Background(), events.InboundEscalated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    uuid.New(),
	})
	if err == nil {
		t.Fatal("expected delivery error to propagate")
	}
}

func TestAppointmentReminderDueSendsEmail(t *testing.T) {
	mailer := &fakeAlertMailer{}
	m := newTestModule(mailer, fakeNotificationConfig{opsEmail: "ops@example.com"})

	scheduledAt := time.Date(2025, 3, 12, 13, 0, 0, 0, time.UTC)
	err := m.Handle(context.Background(), events.AppointmentReminderDue{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: uuid.New(),
		LeadID:        uuid.New(),
		ScheduledAt:   scheduledAt,
		ConsumerName:  "Jan de Vries",
		ConsumerEmail: "jan@example.com",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(mailer.reminders) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(mailer.reminders))
	}
	call := mailer.reminders[0]
	if call.toEmail != "jan@example.com" {
		t.Errorf("reminder sent to %q, want jan@example.com", call.toEmail)
	}
	// 13:00 UTC is 14:00 in Amsterdam in March before DST.
	if !strings.Contains(call.slotText, "14:00") {
		t.Errorf("slot text %q not rendered in local time", call.slotText)
	}
}

func TestAppointmentReminderDueWithoutEmailIsSkipped(t *testing.T) {
	mailer := &fakeAlertMailer{}
	m := newTestModule(mailer, fakeNotificationConfig{})

	err := m.Handle(context.Background(), events.AppointmentReminderDue{
		BaseEvent:     events.NewBaseEvent(),
		AppointmentID: uuid.New(),
		LeadID:        uuid.New(),
		ScheduledAt:   time.Now(),
		ConsumerName:  "Jan de Vries",
	})
	if err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(mailer.reminders) != 0 {
		t.Errorf("expected no reminders without an email address, got %d", len(mailer.reminders))
	}
}

func TestComputeOutboxRetryDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Minute},
		{1, time.Minute},
		{2, 2 * time.Minute},
		{3, 4 * time.Minute},
		{6, 32 * time.Minute},
		{7, 60 * time.Minute},
		{20, 60 * time.Minute},
	}

	for _, tt := range tests {
		if got := computeOutboxRetryDelay(tt.attempt); got != tt.want {
			t.Errorf("computeOutboxRetryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
