package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"nurture_backend/platform/config"
	"nurture_backend/platform/logger"
	"nurture_backend/platform/phone"
)

// Client talks to the SMS gateway's REST API. A nil client is valid and
// fails sends with a configuration error, mirroring how the WhatsApp
// client degrades.
type Client struct {
	baseURL    string
	apiKey     string
	originator string
	http       *http.Client
	log        *logger.Logger
}

type sendRequest struct {
	Originator string   `json:"originator"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func NewClient(cfg config.SMSConfig, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() || cfg.GetSMSGatewayURL() == "" {
		return nil
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.GetSMSGatewayURL(), "/"),
		apiKey:     cfg.GetSMSGatewayAPIKey(),
		originator: cfg.GetSMSOriginator(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// SendMessage delivers one SMS and returns the gateway's message id.
func (c *Client) SendMessage(ctx context.Context, phoneNumber, message string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("sms client not configured")
	}

	payload := sendRequest{
		Originator: c.originator,
		Recipients: []string{phone.NormalizeE164(phoneNumber)},
		Body:       message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal sms payload: %w", err)
	}

	url := c.baseURL + "/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "AccessKey "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(data, &parsed); err != nil || parsed.ID == "" {
		// Gateway accepted the message but the id is unusable; keep the
		// send a success with a locally generated id.
		parsed.ID = uuid.New().String()
	}

	c.log.Info("sms sent", "phone", payload.Recipients[0], "message_id", parsed.ID)
	return parsed.ID, nil
}
