package transport

import (
	"time"

	"github.com/google/uuid"

	"nurture_backend/internal/appointments/repository"
)

// ConfirmAppointmentRequest picks one of the proposed slots.
type ConfirmAppointmentRequest struct {
	ScheduledAt time.Time `json:"scheduledAt" validate:"required"`
}

// AppointmentResponse is the API representation of an appointment.
type AppointmentResponse struct {
	ID            uuid.UUID   `json:"id"`
	LeadID        uuid.UUID   `json:"leadId"`
	Status        string      `json:"status"`
	ProposedSlots []time.Time `json:"proposedSlots"`
	ScheduledAt   *time.Time  `json:"scheduledAt,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// ListAppointmentsResponse wraps a lead's appointment history.
type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

// FromAppointment maps a repository appointment to its API shape.
func FromAppointment(a repository.Appointment) AppointmentResponse {
	slots := a.ProposedSlots
	if slots == nil {
		slots = []time.Time{}
	}
	return AppointmentResponse{
		ID:            a.ID,
		LeadID:        a.LeadID,
		Status:        a.Status,
		ProposedSlots: slots,
		ScheduledAt:   a.ScheduledAt,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

// FromAppointments maps a slice of repository appointments.
func FromAppointments(list []repository.Appointment) ListAppointmentsResponse {
	out := make([]AppointmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, FromAppointment(a))
	}
	return ListAppointmentsResponse{Appointments: out}
}
