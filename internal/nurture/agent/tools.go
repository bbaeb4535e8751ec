package agent

import (
	"fmt"
	"strings"
	"sync"

	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/functiontool"

	"nurture_backend/internal/nurture/domain"
)

// ToolState collects what an agent run produced through its tools. Each
// agent owns one instance and resets it before every run; runs are
// serialized per agent, so one result slot per tool is enough.
type ToolState struct {
	mu          sync.Mutex
	message     *SaveMessageInput
	intent      *SaveIntentInput
	stageAdvice *SaveStageAdviceInput
}

func (s *ToolState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = nil
	s.intent = nil
	s.stageAdvice = nil
}

func (s *ToolState) setMessage(in SaveMessageInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = &in
}

// Message returns the saved message text and whether the tool was called.
func (s *ToolState) Message() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.message == nil {
		return "", false
	}
	return s.message.Message, true
}

func (s *ToolState) setIntent(in SaveIntentInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intent = &in
}

// Intent returns the saved intent and whether the tool was called.
func (s *ToolState) Intent() (SaveIntentInput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.intent == nil {
		return SaveIntentInput{}, false
	}
	return *s.intent, true
}

func (s *ToolState) setStageAdvice(in SaveStageAdviceInput) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stageAdvice = &in
}

// StageAdvice returns the advised stage and whether the tool was called.
func (s *ToolState) StageAdvice() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stageAdvice == nil {
		return "", false
	}
	return s.stageAdvice.Stage, true
}

// createSaveMessageTool creates the SaveMessage tool for the composer.
func createSaveMessageTool(state *ToolState) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        "SaveMessage",
		Description: "Saves the final customer-facing message. Call this exactly ONCE with the complete Dutch message text, nothing else.",
	}, func(ctx tool.Context, input SaveMessageInput) (SaveMessageOutput, error) {
		text := strings.TrimSpace(input.Message)
		if text == "" {
			return SaveMessageOutput{Success: false, Message: "Message text is empty"}, fmt.Errorf("message text is empty")
		}
		state.setMessage(SaveMessageInput{Message: text})
		return SaveMessageOutput{Success: true}, nil
	})
}

// createSaveIntentTool creates the SaveIntent tool for the classifier.
// Labels outside the known intent set are rejected so the model corrects
// itself instead of inventing categories.
func createSaveIntentTool(state *ToolState) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        "SaveIntent",
		Description: "Saves the classified intent of the inbound message. Call this exactly ONCE. Valid intents: book, reschedule, not_interested, questions, objection_budget, objection_area, later, spam.",
	}, func(ctx tool.Context, input SaveIntentInput) (SaveIntentOutput, error) {
		intent := strings.ToLower(strings.TrimSpace(input.Intent))
		if !domain.IsKnownIntent(intent) {
			return SaveIntentOutput{Success: false, Message: "Unknown intent " + intent}, fmt.Errorf("unknown intent %q", intent)
		}
		state.setIntent(SaveIntentInput{Intent: intent, Reason: strings.TrimSpace(input.Reason)})
		return SaveIntentOutput{Success: true}, nil
	})
}

// createSaveStageAdviceTool creates the SaveStageAdvice tool for the
// stage advisor.
func createSaveStageAdviceTool(state *ToolState) (tool.Tool, error) {
	return functiontool.New(functiontool.Config{
		Name:        "SaveStageAdvice",
		Description: "Saves the advised nurturing stage. Call this exactly ONCE. Valid stages: new, contacted, engaged, appointment_proposed, appointment_confirmed, no_response, dormant, onboarding, not_interested.",
	}, func(ctx tool.Context, input SaveStageAdviceInput) (SaveStageAdviceOutput, error) {
		stage := strings.ToLower(strings.TrimSpace(input.Stage))
		if !domain.IsKnownStage(stage) {
			return SaveStageAdviceOutput{Success: false, Message: "Unknown stage " + stage}, fmt.Errorf("unknown stage %q", stage)
		}
		state.setStageAdvice(SaveStageAdviceInput{Stage: stage, Reason: strings.TrimSpace(input.Reason)})
		return SaveStageAdviceOutput{Success: true}, nil
	})
}
