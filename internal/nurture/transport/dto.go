// Package transport defines the request/response DTOs for the nurture API.
package transport

import "time"

// Run statuses returned by the manual-run endpoint.
const (
	RunStatusStarted = "started"
	RunStatusSkipped = "skipped"
)

// RunNowResponse reports whether a manual nurture run was started.
type RunNowResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// InboundRequest carries one message a lead sent us.
type InboundRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email sms whatsapp"`
	Message string `json:"message" validate:"required,min=1,max=10000"`
}

// InboundResponse reports how the message was routed.
type InboundResponse struct {
	Intent        string `json:"intent"`
	NewStage      string `json:"newStage"`
	AutoReplySent bool   `json:"autoReplySent"`
	Escalated     bool   `json:"escalated"`
}

// StatusResponse is the nurture snapshot for one lead.
type StatusResponse struct {
	LeadID              string          `json:"leadId"`
	Stage               string          `json:"stage"`
	NextActionAt        *time.Time      `json:"nextActionAt"`
	ContactCount        int             `json:"contactCount"`
	LastChannel         *string         `json:"lastChannel"`
	LastContactAt       *time.Time      `json:"lastContactAt"`
	HasInboundResponses bool            `json:"hasInboundResponses"`
	RecentActivity      []ActivityEntry `json:"recentActivity,omitempty"`
}

// ActivityEntry is one line from the lead's nurture timeline.
type ActivityEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// TickResponse acknowledges a manually triggered sweep.
type TickResponse struct {
	Status string `json:"status"`
}
