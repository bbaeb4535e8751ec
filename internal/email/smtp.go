package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"

	"nurture_backend/platform/config"
)

// SMTPSender delivers nurture mail over the configured SMTP server via
// go-mail. A nil sender is valid and reports itself unconfigured, so the
// engine degrades instead of crashing when email is disabled.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates an SMTPSender, or nil when email sending is
// disabled or the SMTP host is missing.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	if !cfg.GetEmailEnabled() || cfg.GetSMTPHost() == "" {
		return nil
	}
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	if s == nil {
		return fmt.Errorf("email sender not configured")
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

// SendNurtureMessage wraps composed plain text in the branded layout and
// delivers it. Returns an internal delivery id on success.
func (s *SMTPSender) SendNurtureMessage(ctx context.Context, toEmail, subject, bodyText string) (string, error) {
	content, err := renderEmailTemplate("nurture.html", nurtureEmailData{
		Title:     subject,
		BodyLines: splitParagraphs(bodyText),
	})
	if err != nil {
		return "", err
	}
	if err := s.send(ctx, toEmail, subject, content); err != nil {
		return "", err
	}
	return uuid.New().String(), nil
}

// SendAppointmentConfirmation delivers the viewing confirmation. slotText
// is the already-formatted Dutch slot description.
func (s *SMTPSender) SendAppointmentConfirmation(ctx context.Context, toEmail, consumerName, slotText string) error {
	content, err := renderEmailTemplate("appointment_confirmed.html", appointmentConfirmedEmailData{
		Title:        subjectAppointmentConfirmed,
		Heading:      subjectAppointmentConfirmed,
		ConsumerName: consumerName,
		SlotText:     slotText,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectAppointmentConfirmed, content)
}

// SendAppointmentReminder delivers the day-before viewing reminder.
func (s *SMTPSender) SendAppointmentReminder(ctx context.Context, toEmail, consumerName, slotText string) error {
	content, err := renderEmailTemplate("appointment_reminder.html", appointmentReminderEmailData{
		Title:        subjectAppointmentReminder,
		Heading:      subjectAppointmentReminder,
		ConsumerName: consumerName,
		SlotText:     slotText,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectAppointmentReminder, content)
}

// SendOpsAlert notifies the operations mailbox that a lead needs a human.
func (s *SMTPSender) SendOpsAlert(ctx context.Context, toEmail, leadName string, bodyLines []string, leadURL string) error {
	subject := fmt.Sprintf(subjectOpsAlertFmt, leadName)
	content, err := renderEmailTemplate("ops_alert.html", opsAlertEmailData{
		Title:     subject,
		Heading:   subject,
		BodyLines: bodyLines,
		CTALabel:  "Open lead",
		CTAURL:    leadURL,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subject, content)
}
