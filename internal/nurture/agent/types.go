package agent

import (
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// TOOL INPUT/OUTPUT TYPES
// ============================================================================

// SaveMessageInput is the structured input for the SaveMessage tool.
type SaveMessageInput struct {
	Message string `json:"message"` // Complete customer-facing message text, in Dutch
}

type SaveMessageOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SaveIntentInput is the structured input for the SaveIntent tool.
type SaveIntentInput struct {
	Intent string `json:"intent"` // book, reschedule, not_interested, questions, objection_budget, objection_area, later, spam
	Reason string `json:"reason,omitempty"`
}

type SaveIntentOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// SaveStageAdviceInput is the structured input for the SaveStageAdvice tool.
type SaveStageAdviceInput struct {
	Stage  string `json:"stage"` // Member of the nurture stage set
	Reason string `json:"reason,omitempty"`
}

type SaveStageAdviceOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ============================================================================
// REQUEST/RESULT TYPES
// ============================================================================

// ComposeRequest carries the lead context the composer writes from.
type ComposeRequest struct {
	LeadID        uuid.UUID
	Name          string
	Stage         string
	Purpose       string
	Channel       string
	ContactCount  int
	LastContactAt *time.Time
	PipelineNotes string
	// InboundText is set when the message answers an inbound question
	// instead of opening a new touchpoint.
	InboundText string
}

// IntentResult is the classified purpose of an inbound message plus the
// model's free-text motivation (log-only).
type IntentResult struct {
	Intent string
	Reason string
}

// AdviseRequest carries the engagement snapshot the stage advisor reviews.
type AdviseRequest struct {
	LeadID        uuid.UUID
	Stage         string
	PipelineNotes string
	ContactCount  int
	LastContactAt *time.Time
	HasResponded  bool
	CreatedAt     time.Time
}
