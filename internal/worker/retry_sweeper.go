// Package worker holds the background loops run by the worker binary: the
// campaign scheduler tick and the retry sweeper.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	"github.com/aimkt/marketing-api/internal/service/content"
	"github.com/aimkt/marketing-api/internal/service/dispatch"
	"github.com/aimkt/marketing-api/pkg/logger"
)

// RetrySweeper picks up messages whose scheduled retry time has passed and
// re-dispatches them. It is the recovery path for runs that died mid-retry;
// a healthy run drains its own retries before finishing.
type RetrySweeper struct {
	messages  repository.MessageRepository
	campaigns repository.CampaignRepository
	customers repository.CustomerRepository
	content   *content.Service
	bulk      *dispatch.BulkMessenger
	interval  time.Duration
	batchSize int
	logger    *logger.Logger
}

func NewRetrySweeper(
	messages repository.MessageRepository,
	campaigns repository.CampaignRepository,
	customers repository.CustomerRepository,
	contentSvc *content.Service,
	bulk *dispatch.BulkMessenger,
	interval time.Duration,
	batchSize int,
	log *logger.Logger,
) *RetrySweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RetrySweeper{
		messages:  messages,
		campaigns: campaigns,
		customers: customers,
		content:   contentSvc,
		bulk:      bulk,
		interval:  interval,
		batchSize: batchSize,
		logger:    log,
	}
}

func (w *RetrySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := w.Sweep(ctx); err != nil {
				w.logger.Error(err, "retry sweep failed")
			} else if n > 0 {
				w.logger.Info("retry sweep finished", "redelivered", n)
			}
		}
	}
}

// Sweep redelivers one batch of due retries and returns how many messages
// it touched.
func (w *RetrySweeper) Sweep(ctx context.Context) (int, error) {
	due, err := w.messages.ListDueRetries(ctx, time.Now(), w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list due retries: %w", err)
	}

	swept := 0
	for _, msg := range due {
		if ctx.Err() != nil {
			break
		}
		if err := w.redeliver(ctx, msg); err != nil {
			w.logger.Error(err, "failed to redeliver message", "message_id", msg.ID.String())
			continue
		}
		swept++
	}
	return swept, nil
}

func (w *RetrySweeper) redeliver(ctx context.Context, msg *model.Message) error {
	campaign, err := w.campaigns.Get(ctx, msg.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}
	// Only orphans of a live run are swept. Messages of a cancelled or
	// failed campaign wait for an explicit resume.
	if campaign.Status != model.CampaignStatusSending {
		return nil
	}

	customer, err := w.customers.Get(ctx, msg.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to load customer: %w", err)
	}

	lang := customer.Language
	if lang == "" {
		lang = campaign.Language
	}
	body, err := w.content.GetOrGenerate(ctx, campaign, msg.Channel, lang)
	if err != nil {
		return fmt.Errorf("failed to load content: %w", err)
	}

	personalized := content.Personalize(body, customer, campaign.ProductName)
	if _, err := w.bulk.Redeliver(ctx, msg, customer.Address(msg.Channel), personalized); err != nil {
		return err
	}
	return nil
}
