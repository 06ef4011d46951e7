// Package whatsapp delivers campaign messages through an HTTP messaging
// provider (Twilio-shaped API).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aimkt/marketing-api/internal/provider"
	"github.com/aimkt/marketing-api/pkg/circuitbreaker"
)

type Config struct {
	BaseURL     string
	APIKey      string
	From        string
	Timeout     time.Duration
	MaxFailures int
}

type Transport struct {
	client  *http.Client
	cb      *circuitbreaker.CircuitBreaker
	baseURL string
	apiKey  string
	from    string
}

func NewTransport(cfg Config) *Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxFailures := cfg.MaxFailures
	if maxFailures <= 0 {
		maxFailures = 5
	}
	return &Transport{
		client: &http.Client{Timeout: timeout},
		cb: circuitbreaker.NewCircuitBreaker(circuitbreaker.Settings{
			Name:        "whatsapp-provider",
			MaxFailures: maxFailures,
			Timeout:     30 * time.Second,
		}),
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		from:    cfg.From,
	}
}

type sendRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
	Body string `json:"body"`
}

type sendResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

func (t *Transport) Deliver(ctx context.Context, recipient, content string) (*provider.Receipt, error) {
	if recipient == "" {
		return nil, &provider.Error{
			Code:      "invalid_recipient",
			Message:   "customer has no WhatsApp-capable number",
			Temporary: false,
		}
	}

	var receipt *provider.Receipt
	err := t.cb.Execute(func() error {
		var execErr error
		receipt, execErr = t.deliver(ctx, recipient, content)
		return execErr
	})
	return receipt, err
}

func (t *Transport) deliver(ctx context.Context, recipient, content string) (*provider.Receipt, error) {
	payload, err := json.Marshal(sendRequest{
		From: t.from,
		To:   "whatsapp:" + recipient,
		Body: content,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		// Timeouts and connection resets may clear on retry.
		return nil, &provider.Error{Code: "network_error", Message: err.Error(), Temporary: true}
	}
	defer resp.Body.Close()

	var body sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && resp.StatusCode < 300 {
		return nil, &provider.Error{Code: "bad_response", Message: err.Error(), Temporary: true}
	}

	switch {
	case resp.StatusCode < 300:
		return &provider.Receipt{ProviderRef: body.SID}, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, &provider.Error{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   body.Message,
			Temporary: true,
		}
	default:
		return nil, &provider.Error{
			Code:      fmt.Sprintf("http_%d", resp.StatusCode),
			Message:   body.Message,
			Temporary: false,
		}
	}
}
