package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/ratelimit"
	"github.com/aimkt/marketing-api/internal/repository"
	"github.com/aimkt/marketing-api/internal/service/content"
	"github.com/aimkt/marketing-api/pkg/logger"
	"github.com/aimkt/marketing-api/pkg/metrics"
)

const defaultWorkers = 8

// BulkResult aggregates one DispatchBulk invocation. Counts include
// recipients resolved from earlier runs, so a resumed campaign reports the
// cumulative picture; per-message truth lives in the message rows.
type BulkResult struct {
	Sent     int
	Failed   int
	Skipped  int
	Retrying int
}

// Total is the number of recipients that reached a counted outcome.
func (r *BulkResult) Total() int {
	return r.Sent + r.Failed + r.Skipped + r.Retrying
}

type BulkMessenger struct {
	dispatcher *Dispatcher
	limiter    ratelimit.Limiter
	messages   repository.MessageRepository
	workers    int
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewBulkMessenger(dispatcher *Dispatcher, limiter ratelimit.Limiter, messages repository.MessageRepository, workers int, log *logger.Logger, m *metrics.Metrics) *BulkMessenger {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &BulkMessenger{
		dispatcher: dispatcher,
		limiter:    limiter,
		messages:   messages,
		workers:    workers,
		logger:     log,
		metrics:    m,
	}
}

// DispatchBulk delivers content to every recipient on one channel. Opted-out
// recipients get a durable skipped row; recipients already delivered in an
// earlier run are left alone; everyone else is (re)attempted. Recipients are
// independent: one failure never aborts the batch. Cancellation is
// cooperative — no new recipients start after ctx is done, in-flight
// attempts finish on their own terms.
func (b *BulkMessenger) DispatchBulk(ctx context.Context, campaign *model.Campaign, channel model.Channel, recipients []*model.Customer, body string) (*BulkResult, error) {
	result := &BulkResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, b.workers)

	for _, recipient := range recipients {
		if ctx.Err() != nil {
			break
		}
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(customer *model.Customer) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := b.dispatchOne(ctx, campaign, channel, customer, body)
			mu.Lock()
			switch outcome {
			case model.MessageStatusSent, model.MessageStatusOpened, model.MessageStatusClicked:
				result.Sent++
			case model.MessageStatusFailed:
				result.Failed++
			case model.MessageStatusSkipped:
				result.Skipped++
			case model.MessageStatusRetrying, model.MessageStatusQueued:
				result.Retrying++
			}
			mu.Unlock()
		}(recipient)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (b *BulkMessenger) dispatchOne(ctx context.Context, campaign *model.Campaign, channel model.Channel, customer *model.Customer, body string) model.MessageStatus {
	msg, err := b.messages.Find(ctx, campaign.ID, channel, customer.ID)
	if err != nil {
		b.logger.Error(err, "failed to look up message", "campaign_id", campaign.ID.String(), "customer_id", customer.ID.String())
		return model.MessageStatusFailed
	}

	if msg != nil && msg.Status.IsTerminal() {
		// Earlier run already settled this recipient.
		return msg.Status
	}

	if !customer.OptedIn(channel) {
		return b.skip(ctx, campaign, channel, customer, msg)
	}

	if msg == nil {
		msg = b.newMessage(campaign, channel, customer)
		if err := b.messages.Create(ctx, msg); err != nil {
			b.logger.Error(err, "failed to create message", "campaign_id", campaign.ID.String(), "customer_id", customer.ID.String())
			return model.MessageStatusFailed
		}
	}

	wait, err := b.limiter.Acquire(ctx, channel)
	if b.metrics != nil {
		b.metrics.RateLimiterWait.WithLabelValues(string(channel)).Observe(wait.Seconds())
	}
	if err != nil {
		// Cancelled while queued for a token; the message stays pending.
		return msg.Status
	}

	personalized := content.Personalize(body, customer, campaign.ProductName)
	result := b.dispatcher.Send(ctx, msg, customer.Address(channel), personalized)
	return result.Status
}

// skip records a durable skipped row so the opt-out decision is inspectable
// alongside delivery outcomes.
func (b *BulkMessenger) skip(ctx context.Context, campaign *model.Campaign, channel model.Channel, customer *model.Customer, msg *model.Message) model.MessageStatus {
	if b.metrics != nil {
		b.metrics.MessagesSkipped.WithLabelValues(string(channel)).Inc()
	}
	if msg == nil {
		msg = b.newMessage(campaign, channel, customer)
		msg.Status = model.MessageStatusSkipped
		if err := b.messages.Create(ctx, msg); err != nil {
			b.logger.Error(err, "failed to record skipped message", "campaign_id", campaign.ID.String(), "customer_id", customer.ID.String())
		}
		return model.MessageStatusSkipped
	}
	msg.Status = model.MessageStatusSkipped
	if err := b.messages.Update(ctx, msg); err != nil {
		b.logger.Error(err, "failed to record skipped message", "message_id", msg.ID.String())
	}
	return model.MessageStatusSkipped
}

func (b *BulkMessenger) newMessage(campaign *model.Campaign, channel model.Channel, customer *model.Customer) *model.Message {
	now := time.Now()
	return &model.Message{
		ID:          uuid.New(),
		CampaignID:  campaign.ID,
		CustomerID:  customer.ID,
		Channel:     channel,
		Status:      model.MessageStatusQueued,
		MaxAttempts: b.dispatcher.cfg.MaxAttempts(),
		QueuedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Redeliver continues a message previously left in retrying state, used by
// the worker's retry sweeper. The recipient address and content are reloaded
// by the caller; the remaining attempt budget is whatever the message has
// left.
func (b *BulkMessenger) Redeliver(ctx context.Context, msg *model.Message, recipient, body string) (*Result, error) {
	if msg.Status.IsTerminal() {
		return nil, fmt.Errorf("message %s is already terminal (%s)", msg.ID, msg.Status)
	}
	wait, err := b.limiter.Acquire(ctx, msg.Channel)
	if b.metrics != nil {
		b.metrics.RateLimiterWait.WithLabelValues(string(msg.Channel)).Observe(wait.Seconds())
	}
	if err != nil {
		return nil, err
	}
	return b.dispatcher.Send(ctx, msg, recipient, body), nil
}
