// Package adapters wires modules together without direct dependencies
// between them.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentsvc "nurture_backend/internal/appointments/service"
	"nurture_backend/internal/events"
	"nurture_backend/internal/nurture/domain"
	"nurture_backend/internal/nurture/playbook"
	"nurture_backend/internal/nurture/repository"
	"nurture_backend/platform/logger"

	"github.com/google/uuid"
)

// NurtureLeadScheduler lets the appointments module move a lead into the
// confirmed stage when a viewing slot is picked.
type NurtureLeadScheduler struct {
	repo *repository.Repository
	bus  events.Bus
	loc  *time.Location
	log  *logger.Logger
}

func NewNurtureLeadScheduler(repo *repository.Repository, bus events.Bus, loc *time.Location, log *logger.Logger) *NurtureLeadScheduler {
	return &NurtureLeadScheduler{repo: repo, bus: bus, loc: loc, log: log}
}

// ConfirmAppointment transitions the lead to appointment_confirmed and
// returns the contact details for the confirmation email. Terminal leads
// keep their stage; only the contact details come back.
func (a *NurtureLeadScheduler) ConfirmAppointment(ctx context.Context, leadID uuid.UUID, scheduledAt time.Time) (appointmentsvc.LeadContact, error) {
	lead, err := a.repo.Get(ctx, leadID)
	if err != nil {
		return appointmentsvc.LeadContact{}, err
	}
	contact := appointmentsvc.LeadContact{Name: lead.Name}
	if lead.Email != nil {
		contact.Email = *lead.Email
	}

	if domain.IsTerminalStage(lead.Stage) {
		return contact, nil
	}

	oldStage := lead.Stage
	updated, err := a.commitConfirmed(ctx, lead)
	if err != nil {
		return contact, err
	}

	activity := fmt.Sprintf("Afspraak bevestigd voor %s", playbook.FormatSlot(scheduledAt, a.loc))
	if err := a.repo.AppendActivity(ctx, leadID, "info", activity); err != nil {
		a.log.Warn("failed to append activity", "leadId", leadID, "error", err)
	}

	if a.bus != nil && updated.Stage != oldStage {
		a.bus.Publish(ctx, events.LeadStageChanged{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    leadID,
			OldStage:  oldStage,
			NewStage:  updated.Stage,
			Source:    "appointment",
		})
	}
	return contact, nil
}

// commitConfirmed writes the stage transition, retrying once when the
// executor raced us between read and write.
func (a *NurtureLeadScheduler) commitConfirmed(ctx context.Context, lead repository.Lead) (repository.Lead, error) {
	for attempt := 0; ; attempt++ {
		next := domain.NextDue(domain.StageAppointmentConfirmed, lead.ContactCount, time.Now().UTC())
		updated, err := a.repo.CommitNurture(ctx, lead.ID, lead.UpdatedAt, repository.NurtureUpdate{
			Stage:         domain.StageAppointmentConfirmed,
			ContactCount:  lead.ContactCount,
			LastContactAt: lead.LastContactAt,
			LastChannel:   lead.LastChannel,
			NextActionAt:  next,
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, repository.ErrConflict) || attempt > 0 {
			return repository.Lead{}, err
		}
		lead, err = a.repo.Get(ctx, lead.ID)
		if err != nil {
			return repository.Lead{}, err
		}
		if domain.IsTerminalStage(lead.Stage) {
			return lead, nil
		}
	}
}
