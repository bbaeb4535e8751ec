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

	"nurture_backend/platform/ai/moonshot"
)

const kimiModelName = "kimi-k2.5"

// Composer writes personalized outbound messages with the Kimi model.
// Callers treat every error as recoverable: the deterministic playbook
// text takes over whenever composition fails.
type Composer struct {
	agent          agent.Agent
	runner         *runner.Runner
	sessionService session.Service
	appName        string
	state          *ToolState
	timeout        time.Duration
	runMu          sync.Mutex
}

// NewComposer builds the composer agent.
func NewComposer(apiKey string, timeout time.Duration) (*Composer, error) {
	kimi := moonshot.NewModel(moonshot.Config{
		APIKey:          apiKey,
		Model:           kimiModelName,
		DisableThinking: true,
		Timeout:         timeout,
	})

	state := &ToolState{}
	saveMessageTool, err := createSaveMessageTool(state)
	if err != nil {
		return nil, fmt.Errorf("failed to build SaveMessage tool: %w", err)
	}

	adkAgent, err := llmagent.New(llmagent.Config{
		Name:        "NurtureComposer",
		Model:       kimi,
		Description: "Writes short Dutch outreach messages for real-estate leads.",
		Instruction: composerSystemPrompt(),
		Tools:       []tool.Tool{saveMessageTool},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create composer agent: %w", err)
	}

	sessionService := session.InMemoryService()
	r, err := runner.New(runner.Config{
		AppName:        "nurture_composer",
		Agent:          adkAgent,
		SessionService: sessionService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create composer runner: %w", err)
	}

	return &Composer{
		agent:          adkAgent,
		runner:         r,
		sessionService: sessionService,
		appName:        "nurture_composer",
		state:          state,
		timeout:        timeout,
	}, nil
}

// Compose writes one message for the request. Returns an error when the
// model produced nothing usable within the timeout.
func (c *Composer) Compose(ctx context.Context, req ComposeRequest) (string, error) {
	if c == nil || c.runner == nil {
		return "", errors.New("composer not configured")
	}

	c.runMu.Lock()
	defer c.runMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.state.Reset()

	sessionID := uuid.New().String()
	userID := "composer-" + req.LeadID.String()

	_, err := c.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   c.appName,
		UserID:    userID,
		SessionID: sessionID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create composer session: %w", err)
	}
	defer func() {
		_ = c.sessionService.Delete(ctx, &session.DeleteRequest{
			AppName:   c.appName,
			UserID:    userID,
			SessionID: sessionID,
		})
	}()

	userMessage := &genai.Content{
		Role:  "user",
		Parts: []*genai.Part{{Text: buildComposePrompt(req)}},
	}

	var output string
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}
	for event, err := range c.runner.Run(ctx, userID, sessionID, userMessage, runConfig) {
		if err != nil {
			return "", fmt.Errorf("composer run failed: %w", err)
		}
		if event.Content != nil {
			for _, part := range event.Content.Parts {
				output += part.Text
			}
		}
	}

	if message, ok := c.state.Message(); ok {
		return message, nil
	}

	// Some runs answer in plain text instead of calling SaveMessage; the
	// text is still usable as long as it is non-empty.
	if output = strings.TrimSpace(output); output != "" {
		log.Printf("composer: SaveMessage not called for lead=%s, using raw output", req.LeadID)
		return output, nil
	}

	return "", errors.New("composer produced no message")
}
