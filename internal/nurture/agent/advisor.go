package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"nurture_backend/platform/ai/moonshot"
)

// StageAdvisor gives a second opinion on a lead's nurturing stage. The
// advice is advisory only: the deterministic classifier always produces
// the fallback, and off-list advice is discarded by the caller.
type StageAdvisor struct {
	agent          agent.Agent
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	state          *ToolState
	timeout        time.Duration
	runMu          sync.Mutex
}

// NewStageAdvisor builds the stage advisor agent.
func NewStageAdvisor(apiKey string, timeout time.Duration) (*StageAdvisor, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey:          apiKey,
		Model:           kimiModelName,
		DisableThinking: true,
		Timeout:         timeout,
	})

	state := &ToolState{}
	saveAdviceTool, err := createSaveStageAdviceTool(state)
	if err != nil {
		return nil, fmt.Errorf("failed to build SaveStageAdvice tool: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "NurtureStageAdvisor",
		Model:       kimi,
		Description: "Advises the nurturing stage for a lead based on its engagement snapshot.",
		Instruction: stageAdvisorSystemPrompt(),
		Tools:       []tool.Tool{saveAdviceTool},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stage advisor agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "nurture_stage_advisor",
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create stage advisor runner: %w", err)
	}

	return &StageAdvisor{
		agent:          adkAgent,
		runner:         r,
		sessionService: sessionService,
		appName:        "nurture_stage_advisor",
		state:          state,
		timeout:        timeout,
	}, nil
}

// AdviseStage returns the advised stage for the snapshot, or an error
// when the model gave no usable advice.
func (sa *StageAdvisor) AdviseStage(ctx context.Context, req AdviseRequest) (string, error) {
	if sa == nil || sa.runner == nil {
		return "", errors.New("stage advisor not configured")
	}

	sa.runMu.Lock()
	defer sa.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, sa.timeout)
	defer cancel()

	sa.state.Reset()

	sessionID := uuid.New().String()
	userID := "advisor-" + req.LeadID.String()

	_, err := sa.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   sa.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create advisor session: %w", err)
	}
	defer func() {
		_ = sa.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   sa.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildAdvisePrompt(req)}},
	}

	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event, err := range sa.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return "", fmt.Errorf("advisor run failed: %w", err)
		}
		_ = event
	}

	if stage, ok := sa.state.StageAdvice(); ok {
		return stage, nil
	}

	return "", errors.New("stage advisor produced no advice")
}
