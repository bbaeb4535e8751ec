// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"nurture_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Nurture Domain Events
// =============================================================================

// LeadContacted is published after an outreach message was successfully sent.
type LeadContacted struct {
	BaseEvent
	LeadID       uuid.UUID `json:"leadId"`
	Channel      string    `json:"channel"`
	Stage        string    `json:"stage"`
	ContactCount int       `json:"contactCount"`
	DeliveryID   string    `json:"deliveryId,omitempty"`
}

func (e LeadContacted) EventName() string { return "nurture.lead.contacted" }

// LeadStageChanged is published when a lead moves to a different stage.
type LeadStageChanged struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	OldStage string    `json:"oldStage"`
	NewStage string    `json:"newStage"`
	Source   string    `json:"source"` // "sweep", "inbound", "manual"
}

func (e LeadStageChanged) EventName() string { return "nurture.lead.stage_changed" }

// LeadNurtureCompleted is published when a lead reaches a terminal stage and
// leaves the scheduling loop.
type LeadNurtureCompleted struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
	Stage  string    `json:"stage"`
}

func (e LeadNurtureCompleted) EventName() string { return "nurture.lead.completed" }

// LeadContactUpdated is published when the CRM layer changes a lead's
// contact surface (new email/phone, consent revoked). The nurture module
// re-primes scheduling for leads parked without a next action.
type LeadContactUpdated struct {
	BaseEvent
	LeadID uuid.UUID `json:"leadId"`
}

func (e LeadContactUpdated) EventName() string { return "nurture.lead.contact_updated" }

// =============================================================================
// Inbound Domain Events
// =============================================================================

// InboundReceived is published for every routed inbound message.
type InboundReceived struct {
	BaseEvent
	LeadID    uuid.UUID `json:"leadId"`
	Channel   string    `json:"channel"`
	Intent    string    `json:"intent"`
	NewStage  string    `json:"newStage"`
	Escalated bool      `json:"escalated"`
}

func (e InboundReceived) EventName() string { return "nurture.inbound.received" }

// InboundEscalated is published when an inbound message could not be
// auto-answered and a human must respond.
type InboundEscalated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	LeadName string    `json:"leadName"`
	Channel  string    `json:"channel"`
	Intent   string    `json:"intent"`
	Reason   string    `json:"reason"`
	Excerpt  string    `json:"excerpt"`
}

func (e InboundEscalated) EventName() string { return "nurture.inbound.escalated" }

// =============================================================================
// Appointments Domain Events
// =============================================================================

// AppointmentProposed is published when slot proposals are sent to a lead.
type AppointmentProposed struct {
	BaseEvent
	AppointmentID uuid.UUID   `json:"appointmentId"`
	LeadID        uuid.UUID   `json:"leadId"`
	Slots         []time.Time `json:"slots"`
}

func (e AppointmentProposed) EventName() string { return "appointments.proposed" }

// AppointmentConfirmed is published when a proposed slot is confirmed.
type AppointmentConfirmed struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID `json:"leadId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
}

func (e AppointmentConfirmed) EventName() string { return "appointments.confirmed" }

// AppointmentReminderDue fires the day before a confirmed viewing. It is
// published by the scheduler worker when the delayed reminder task runs,
// with the lead contact already resolved.
type AppointmentReminderDue struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	LeadID        uuid.UUID `json:"leadId"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	ConsumerName  string    `json:"consumerName"`
	ConsumerEmail string    `json:"consumerEmail"`
}

func (e AppointmentReminderDue) EventName() string { return "appointments.reminder_due" }

// =============================================================================
// Notification Domain Events
// =============================================================================

// NotificationOutboxDue is published when an outbox record's run_at has
// passed and the record should be delivered.
type NotificationOutboxDue struct {
	BaseEvent
	OutboxID uuid.UUID `json:"outboxId"`
}

func (e NotificationOutboxDue) EventName() string { return "notification.outbox.due" }
