package provider

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// MockTransport simulates a provider for local development: configurable
// success rate with a little synthetic network latency.
type MockTransport struct {
	successRate float64
	minDelay    time.Duration
	maxDelay    time.Duration
}

func NewMockTransport(successRate float64) *MockTransport {
	if successRate <= 0 || successRate > 1.0 {
		successRate = 0.92
	}
	return &MockTransport{
		successRate: successRate,
		minDelay:    10 * time.Millisecond,
		maxDelay:    80 * time.Millisecond,
	}
}

func (t *MockTransport) Deliver(ctx context.Context, recipient, content string) (*Receipt, error) {
	delay := t.minDelay + time.Duration(rand.Int63n(int64(t.maxDelay-t.minDelay)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if recipient == "" {
		return nil, &Error{Code: "invalid_recipient", Message: "empty recipient", Temporary: false}
	}
	if rand.Float64() > t.successRate {
		return nil, &Error{
			Code:      "simulated_outage",
			Message:   fmt.Sprintf("simulated network error delivering to %s", recipient),
			Temporary: true,
		}
	}
	return &Receipt{ProviderRef: "mock-" + uuid.New().String()}, nil
}
