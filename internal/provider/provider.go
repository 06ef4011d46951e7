// Package provider holds the outbound channel transports. The dispatcher
// selects a transport from the Registry by channel and classifies provider
// errors as transient or permanent.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/aimkt/marketing-api/internal/model"
)

// Receipt is the provider acknowledgement for an accepted message.
type Receipt struct {
	ProviderRef string
}

// Transport delivers one message to one recipient address.
type Transport interface {
	Deliver(ctx context.Context, recipient, content string) (*Receipt, error)
}

// Error is a classified provider failure. Temporary errors are retryable
// (timeouts, 5xx, provider rate limiting); permanent ones are not (invalid
// recipient, malformed content).
type Error struct {
	Code      string
	Message   string
	Temporary bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider error %s: %s", e.Code, e.Message)
}

// IsTemporary reports whether err is a retryable provider failure.
// Unclassified errors (network layer, context timeouts) count as temporary.
func IsTemporary(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Temporary
	}
	return true
}

// Registry maps channels to their transports.
type Registry map[model.Channel]Transport

func (r Registry) For(ch model.Channel) (Transport, error) {
	t, ok := r[ch]
	if !ok {
		return nil, fmt.Errorf("no transport registered for channel %s", ch)
	}
	return t, nil
}
