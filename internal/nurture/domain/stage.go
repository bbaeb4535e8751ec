// Package domain provides core business rules for the nurture bounded context.
package domain

import "strings"

const (
	StageNew                  = "new"
	StageContacted            = "contacted"
	StageEngaged              = "engaged"
	StageAppointmentProposed  = "appointment_proposed"
	StageAppointmentConfirmed = "appointment_confirmed"
	StageNoResponse           = "no_response"
	StageDormant              = "dormant"
	StageOnboarding           = "onboarding"
	StageNotInterested        = "not_interested"
)

var knownStages = map[string]struct{}{
	StageNew:                  {},
	StageContacted:            {},
	StageEngaged:              {},
	StageAppointmentProposed:  {},
	StageAppointmentConfirmed: {},
	StageNoResponse:           {},
	StageDormant:              {},
	StageOnboarding:           {},
	StageNotInterested:        {},
}

// terminalStages are stages where nurturing is complete. A terminal lead
// must have no next action scheduled, and nothing reschedules it.
var terminalStages = map[string]bool{
	StageOnboarding:    true,
	StageNotInterested: true,
}

// IsKnownStage reports whether the value is a member of the stage set.
func IsKnownStage(stage string) bool {
	_, ok := knownStages[stage]
	return ok
}

// IsTerminalStage reports whether the stage ends the nurture lifecycle.
func IsTerminalStage(stage string) bool {
	return terminalStages[stage]
}

// stageRule maps pipeline-text markers to a stage. Rules are evaluated in
// order; the first rule with a matching marker wins.
type stageRule struct {
	markers []string
	stage   string
}

// pipelineRules derive a stage from agent-written pipeline annotations.
// Terminal markers come first so "signed" always wins over weaker signals.
var pipelineRules = []stageRule{
	{markers: []string{"signed", "sold", "agreement"}, stage: StageOnboarding},
	{markers: []string{"nurtur", "warm"}, stage: StageEngaged},
	{markers: []string{"cold", "not ready"}, stage: StageNoResponse},
	{markers: []string{"meeting", "appointment"}, stage: StageAppointmentProposed},
}

// ClassifyStage derives a lead's stage from its persisted stage value and
// pipeline annotations. Deterministic and total: the same inputs always
// produce the same stage, and the result is always a member of the stage
// set.
//
// Pipeline annotations take precedence because agents record outcomes
// there before anything updates the stage field. When the annotations are
// silent, a canonical stage stands as-is; only legacy CRM text (imported
// leads carry values like "New Lead" or "Contacted by phone") gets
// normalized.
func ClassifyStage(stageValue, pipelineNotes string) string {
	pipeline := strings.ToLower(strings.TrimSpace(pipelineNotes))
	stage := strings.ToLower(strings.TrimSpace(stageValue))

	if pipeline != "" {
		for _, rule := range pipelineRules {
			for _, marker := range rule.markers {
				if strings.Contains(pipeline, marker) {
					return rule.stage
				}
			}
		}
	}

	if IsKnownStage(stage) {
		return stage
	}

	combined := strings.TrimSpace(stage + " " + pipeline)
	switch {
	case combined == "",
		strings.Contains(combined, "new lead"),
		strings.Contains(combined, "not set"):
		return StageNew
	case strings.Contains(combined, "contact"):
		return StageContacted
	default:
		return StageContacted
	}
}

// AcceptAdvisedStage returns the advised stage when it is a usable member
// of the stage set, otherwise the deterministic fallback. The advisory
// classifier is best-effort; its output never widens the state machine.
func AcceptAdvisedStage(advised, fallback string) string {
	advised = strings.ToLower(strings.TrimSpace(advised))
	if IsKnownStage(advised) {
		return advised
	}
	return fallback
}

// StageAfterSend returns the stage a lead holds once an outbound message
// actually went out. A new lead has, by definition, now been contacted;
// every other stage is unaffected by outreach alone.
func StageAfterSend(stage string) string {
	if stage == StageNew {
		return StageContacted
	}
	return stage
}
