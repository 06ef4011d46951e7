// Package dispatch delivers campaign messages through channel transports.
// The Dispatcher handles one message with retry classification; the
// BulkMessenger fans a recipient list out over a bounded worker pool.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/provider"
	"github.com/aimkt/marketing-api/internal/repository"
	"github.com/aimkt/marketing-api/pkg/logger"
	"github.com/aimkt/marketing-api/pkg/metrics"
)

const maxStoredErrorLen = 500

// Config tunes the retry policy. MaxRetries counts retries after the first
// attempt, so a message sees at most MaxRetries+1 delivery attempts.
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	return c
}

// MaxAttempts is the total delivery attempts allowed per message.
func (c Config) MaxAttempts() int {
	return c.withDefaults().MaxRetries + 1
}

// Result is the outcome of one Send call. Status is terminal (sent or
// failed) unless the context was cancelled mid-retry, in which case the
// message stays retrying with its next attempt scheduled.
type Result struct {
	Status      model.MessageStatus
	ProviderRef string
	Err         error
}

type Dispatcher struct {
	transports provider.Registry
	messages   repository.MessageRepository
	cfg        Config
	logger     *logger.Logger
	metrics    *metrics.Metrics

	// test seams
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewDispatcher(transports provider.Registry, messages repository.MessageRepository, cfg Config, log *logger.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		transports: transports,
		messages:   messages,
		cfg:        cfg.withDefaults(),
		logger:     log,
		metrics:    m,
		now:        time.Now,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Send delivers msg to recipient, retrying transient provider failures with
// exponential backoff until the attempt budget is spent. Each attempt is
// appended to the message's attempt history, and every intermediate retry
// state is persisted with its scheduled time so an interrupted run can be
// resumed by the retry sweeper.
func (d *Dispatcher) Send(ctx context.Context, msg *model.Message, recipient, content string) *Result {
	start := d.now()
	result := d.send(ctx, msg, recipient, content)
	if d.metrics != nil {
		d.metrics.DispatchLatency.WithLabelValues(string(msg.Channel)).Observe(d.now().Sub(start).Seconds())
		switch result.Status {
		case model.MessageStatusSent:
			d.metrics.MessagesSent.WithLabelValues(string(msg.Channel)).Inc()
		case model.MessageStatusFailed:
			d.metrics.MessagesFailed.WithLabelValues(string(msg.Channel)).Inc()
		}
	}
	return result
}

func (d *Dispatcher) send(ctx context.Context, msg *model.Message, recipient, content string) *Result {
	transport, err := d.transports.For(msg.Channel)
	if err != nil {
		return d.fail(ctx, msg, err)
	}

	for {
		receipt, deliverErr := transport.Deliver(ctx, recipient, content)
		msg.Attempts++

		if deliverErr == nil {
			return d.succeed(ctx, msg, receipt.ProviderRef)
		}
		d.countAttempt(msg.Channel, "failure")

		if !provider.IsTemporary(deliverErr) {
			return d.fail(ctx, msg, deliverErr)
		}
		if msg.Attempts >= msg.MaxAttempts {
			return d.fail(ctx, msg, deliverErr)
		}

		delay := d.backoff(msg.Attempts)
		if err := d.scheduleRetry(ctx, msg, deliverErr, delay); err != nil {
			return &Result{Status: msg.Status, Err: err}
		}
		if d.metrics != nil {
			d.metrics.RetriesScheduled.WithLabelValues(string(msg.Channel)).Inc()
		}

		if err := d.sleep(ctx, delay); err != nil {
			// Cancelled mid-backoff: the message keeps its retrying state
			// and scheduled time for the sweeper or a resumed run.
			return &Result{Status: model.MessageStatusRetrying, Err: err}
		}
	}
}

func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.BaseDelay << uint(attempt)
	if delay <= 0 || delay > d.cfg.MaxDelay {
		return d.cfg.MaxDelay
	}
	return delay
}

// succeed, fail and scheduleRetry each persist the message state together
// with the attempt record that produced it, in one transaction.

func (d *Dispatcher) succeed(ctx context.Context, msg *model.Message, providerRef string) *Result {
	now := d.now()
	msg.Status = model.MessageStatusSent
	msg.ProviderRef = providerRef
	msg.SentAt = &now
	msg.NextRetryAt = nil
	msg.LastError = ""
	attempt := d.newAttempt(msg, model.MessageStatusSent, "", providerRef)
	if err := d.messages.UpdateWithAttempt(ctx, msg, attempt); err != nil {
		return &Result{Status: msg.Status, ProviderRef: providerRef, Err: fmt.Errorf("failed to persist sent message: %w", err)}
	}
	d.countAttempt(msg.Channel, "success")
	return &Result{Status: model.MessageStatusSent, ProviderRef: providerRef}
}

func (d *Dispatcher) fail(ctx context.Context, msg *model.Message, cause error) *Result {
	msg.Status = model.MessageStatusFailed
	msg.LastError = truncate(cause.Error(), maxStoredErrorLen)
	msg.NextRetryAt = nil
	attempt := d.newAttempt(msg, model.MessageStatusFailed, msg.LastError, "")
	if err := d.messages.UpdateWithAttempt(ctx, msg, attempt); err != nil {
		d.logger.Error(err, "failed to persist failed message", "message_id", msg.ID.String())
	}
	return &Result{Status: model.MessageStatusFailed, Err: cause}
}

func (d *Dispatcher) scheduleRetry(ctx context.Context, msg *model.Message, cause error, delay time.Duration) error {
	retryAt := d.now().Add(delay)
	msg.Status = model.MessageStatusRetrying
	msg.LastError = truncate(cause.Error(), maxStoredErrorLen)
	msg.NextRetryAt = &retryAt
	attempt := d.newAttempt(msg, model.MessageStatusFailed, msg.LastError, "")
	if err := d.messages.UpdateWithAttempt(ctx, msg, attempt); err != nil {
		return fmt.Errorf("failed to persist retry state: %w", err)
	}
	return nil
}

// newAttempt snapshots the current delivery attempt. Attempt rows carry the
// delivery outcome (sent or failed), not the message's retry state.
func (d *Dispatcher) newAttempt(msg *model.Message, status model.MessageStatus, errText, providerRef string) *model.MessageAttempt {
	return &model.MessageAttempt{
		ID:          uuid.New(),
		MessageID:   msg.ID,
		Attempt:     msg.Attempts,
		Status:      status,
		Error:       truncate(errText, maxStoredErrorLen),
		ProviderRef: providerRef,
		CreatedAt:   d.now(),
	}
}

func (d *Dispatcher) countAttempt(ch model.Channel, outcome string) {
	if d.metrics != nil {
		d.metrics.DispatchAttempts.WithLabelValues(string(ch), outcome).Inc()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
