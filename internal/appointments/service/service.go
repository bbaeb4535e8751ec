package service

import (
	"context"
	"errors"
	"time"

	"nurture_backend/internal/appointments/repository"
	"nurture_backend/internal/events"
	"nurture_backend/internal/nurture/playbook"
	"nurture_backend/internal/scheduler"
	"nurture_backend/platform/apperr"
	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"

	"github.com/google/uuid"
)

const reminderLeadTime = 24 * time.Hour

// LeadContact is the contact surface needed for confirmation mail.
type LeadContact struct {
	Name  string
	Email string
}

// LeadScheduler moves a lead into the confirmed-appointment stage and
// returns its contact details. Injected after construction to break the
// dependency cycle with the nurture module.
type LeadScheduler interface {
	ConfirmAppointment(ctx context.Context, leadID uuid.UUID, scheduledAt time.Time) (LeadContact, error)
}

// ConfirmationMailer sends the appointment confirmation email.
type ConfirmationMailer interface {
	SendAppointmentConfirmation(ctx context.Context, toEmail, consumerName, slotText string) error
}

// Service provides business logic for viewing appointments.
type Service struct {
	repo          *repository.Repository
	leadScheduler LeadScheduler
	mailer        ConfirmationMailer
	reminders     scheduler.ReminderScheduler
	eventBus      events.Bus
	loc           *time.Location
	log           *logger.Logger
}

// New creates a new appointments service.
func New(repo *repository.Repository, mailer ConfirmationMailer, eventBus events.Bus, reminders scheduler.ReminderScheduler, cfg config.NurtureConfig, log *logger.Logger) *Service {
	loc := time.Local
	if cfg != nil {
		loc = cfg.GetLocation()
	}
	return &Service{
		repo:      repo,
		mailer:    mailer,
		eventBus:  eventBus,
		reminders: reminders,
		loc:       loc,
		log:       log,
	}
}

// SetLeadScheduler injects the lead-side stage transition.
func (s *Service) SetLeadScheduler(ls LeadScheduler) { s.leadScheduler = ls }

// ProposeSlots records a slot proposal for a lead that asked for a
// viewing. Called by the inbound router.
func (s *Service) ProposeSlots(ctx context.Context, leadID uuid.UUID, leadName string, slots []time.Time) error {
	appt, err := s.repo.Create(ctx, leadID, slots)
	if err != nil {
		return err
	}

	s.log.Info("appointment slots proposed",
		"appointmentId", appt.ID,
		"leadId", leadID,
		"lead", leadName,
		"slots", len(slots),
	)

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.AppointmentProposed{
			BaseEvent:     events.NewBaseEvent(),
			AppointmentID: appt.ID,
			LeadID:        leadID,
			Slots:         slots,
		})
	}
	return nil
}

// Get returns one appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (repository.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return repository.Appointment{}, s.mapRepoError(err)
	}
	return appt, nil
}

// ListForLead returns a lead's appointments, newest first.
func (s *Service) ListForLead(ctx context.Context, leadID uuid.UUID, limit int) ([]repository.Appointment, error) {
	return s.repo.ListForLead(ctx, leadID, limit)
}

// Confirm settles an open proposal on one of its proposed slots. The
// lead moves along with it: stage transition, a reminder the day before
// and a confirmation email are all driven from here.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID, scheduledAt time.Time) (repository.Appointment, error) {
	appt, err := s.repo.Get(ctx, id)
	if err != nil {
		return repository.Appointment{}, s.mapRepoError(err)
	}
	if appt.Status != repository.StatusProposed {
		return repository.Appointment{}, apperr.Conflict("appointment is not open for confirmation")
	}
	if !isProposedSlot(appt.ProposedSlots, scheduledAt) {
		return repository.Appointment{}, apperr.Validation("scheduledAt must be one of the proposed slots")
	}

	confirmed, err := s.repo.Confirm(ctx, id, scheduledAt)
	if err != nil {
		return repository.Appointment{}, s.mapRepoError(err)
	}

	contact := s.transitionLead(ctx, confirmed.LeadID, scheduledAt)
	s.scheduleReminder(ctx, confirmed, scheduledAt)
	s.sendConfirmationMail(ctx, confirmed, contact, scheduledAt)

	if s.eventBus != nil {
		s.eventBus.Publish(ctx, events.AppointmentConfirmed{
			BaseEvent:     events.NewBaseEvent(),
			AppointmentID: confirmed.ID,
			LeadID:        confirmed.LeadID,
			ScheduledAt:   scheduledAt,
		})
	}
	return confirmed, nil
}

// Cancel closes an open proposal. The lead keeps nurturing on its own
// cadence.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (repository.Appointment, error) {
	appt, err := s.repo.Cancel(ctx, id)
	if err != nil {
		return repository.Appointment{}, s.mapRepoError(err)
	}
	s.log.Info("appointment cancelled", "appointmentId", appt.ID, "leadId", appt.LeadID)
	return appt, nil
}

// transitionLead moves the lead to the confirmed stage. Failure here is
// logged but does not undo the confirmation: the next nurture pass
// corrects the stage.
func (s *Service) transitionLead(ctx context.Context, leadID uuid.UUID, scheduledAt time.Time) LeadContact {
	if s.leadScheduler == nil {
		return LeadContact{}
	}
	contact, err := s.leadScheduler.ConfirmAppointment(ctx, leadID, scheduledAt)
	if err != nil {
		s.log.Error("lead stage transition after confirmation failed", "leadId", leadID, "error", err)
		return LeadContact{}
	}
	return contact
}

func (s *Service) scheduleReminder(ctx context.Context, appt repository.Appointment, scheduledAt time.Time) {
	if s.reminders == nil {
		return
	}
	runAt := scheduledAt.Add(-reminderLeadTime)
	if !runAt.After(time.Now()) {
		return
	}
	err := s.reminders.ScheduleAppointmentReminder(ctx, scheduler.AppointmentReminderPayload{
		AppointmentID: appt.ID.String(),
		LeadID:        appt.LeadID.String(),
	}, runAt)
	if err != nil {
		s.log.Error("failed to schedule appointment reminder", "appointmentId", appt.ID, "error", err)
	}
}

func (s *Service) sendConfirmationMail(ctx context.Context, appt repository.Appointment, contact LeadContact, scheduledAt time.Time) {
	if s.mailer == nil || contact.Email == "" {
		return
	}
	slotText := playbook.FormatSlot(scheduledAt, s.loc)
	if err := s.mailer.SendAppointmentConfirmation(ctx, contact.Email, contact.Name, slotText); err != nil {
		s.log.Error("failed to send confirmation email", "appointmentId", appt.ID, "error", err)
	}
}

func (s *Service) mapRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperr.NotFound("appointment not found")
	case errors.Is(err, repository.ErrNoOpenProposal):
		return apperr.Conflict("appointment is not open for confirmation")
	default:
		s.log.DatabaseError("appointment query", err)
		return apperr.Internal("request failed")
	}
}

func isProposedSlot(slots []time.Time, candidate time.Time) bool {
	for _, slot := range slots {
		if slot.Equal(candidate) {
			return true
		}
	}
	return false
}
