package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/adk/agent"
	"google.golang.org/adk/agent/llmagent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/adk/tool"
	"google.golang.org/genai"

	"nurture_backend/internal/nurture/domain"
	"nurture_backend/platform/ai/moonshot"
)

// IntentClassifier labels inbound messages with one of the routing
// intents. Callers fall back to the questions intent when classification
// fails, so routing keeps working without the model.
type IntentClassifier struct {
	agent          agent.Agent
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	state          *ToolState
	timeout        time.Duration
	runMu          sync.Mutex
}

// NewIntentClassifier builds the intent classifier agent.
func NewIntentClassifier(apiKey string, timeout time.Duration) (*IntentClassifier, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey:          apiKey,
		Model:           kimiModelName,
		DisableThinking: true,
		Timeout:         timeout,
	})

	state := &ToolState{}
	saveIntentTool, err := createSaveIntentTool(state)
	if err != nil {
		return nil, fmt.Errorf("failed to build SaveIntent tool: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "NurtureIntentClassifier",
		Model:       kimi,
		Description: "Classifies inbound lead replies into routing intents.",
		Instruction: intentSystemPrompt(),
		Tools:       []tool.Tool{saveIntentTool},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create intent classifier agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "nurture_intent",
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create intent classifier runner: %w", err)
	}

	return &IntentClassifier{
		agent:          adkAgent,
		runner:         r,
		sessionService: sessionService,
		appName:        "nurture_intent",
		state:          state,
		timeout:        timeout,
	}, nil
}

// Classify labels one inbound message. The error return distinguishes a
// failed classification (caller defaults to questions) from a successful
// one; a successful run with an off-list label comes back as-is so the
// router can escalate it.
func (ic *IntentClassifier) Classify(ctx context.Context, leadID uuid.UUID, channel, text string) (IntentResult, error) {
	if ic == nil || ic.runner == nil {
		return IntentResult{}, errors.New("intent classifier not configured")
	}

	ic.runMu.Lock()
	defer ic.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, ic.timeout)
	defer cancel()

	ic.state.Reset()

	sessionID := uuid.New().String()
	userID := "intent-" + leadID.String()

	_, err := ic.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   ic.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return IntentResult{}, fmt.Errorf("failed to create intent session: %w", err)
	}
	defer func() {
		_ = ic.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   ic.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildIntentPrompt(channel, text)}},
	}

	var output string
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event, err := range ic.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return IntentResult{}, fmt.Errorf("intent run failed: %w", err)
		}
		if event.Content != nil {
			for _, part := range event.Content.Parts {
				output += part.Text
			}
		}
	}

	if saved, ok := ic.state.Intent(); ok {
		return IntentResult{Intent: saved.Intent, Reason: saved.Reason}, nil
	}

	// Salvage a bare-label answer when the model skipped the tool.
	if label := strings.ToLower(strings.TrimSpace(output)); domain.IsKnownIntent(label) {
		log.Printf("intent: SaveIntent not called for lead=%s, salvaged label %q", leadID, label)
		return IntentResult{Intent: label}, nil
	}

	return IntentResult{}, errors.New("intent classifier produced no label")
}
