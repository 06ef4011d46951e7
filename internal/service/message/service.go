// Package message exposes the per-message read surface and engagement
// event ingestion (open and click tracking).
package message

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/repository"
	apperrors "github.com/aimkt/marketing-api/pkg/errors"
)

type Service struct {
	messages repository.MessageRepository
}

func NewService(messages repository.MessageRepository) *Service {
	return &Service{messages: messages}
}

// RecordEvent applies an opened or clicked transition. Events only land on
// delivered messages; anything else is a conflict, since the tracking pixel
// or link cannot predate delivery.
func (s *Service) RecordEvent(ctx context.Context, id uuid.UUID, event model.MessageEvent) error {
	switch event {
	case model.MessageEventOpened, model.MessageEventClicked:
	default:
		return apperrors.Validation(fmt.Sprintf("unknown message event %q", event), nil)
	}

	msg, err := s.messages.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load message: %w", err)
	}
	if msg == nil {
		return apperrors.NotFound("message", nil)
	}
	if !msg.Status.IsDelivered() {
		return apperrors.Conflict(
			fmt.Sprintf("message in status %s cannot receive %s events", msg.Status, event), nil)
	}

	if err := s.messages.RecordEvent(ctx, id, event, time.Now()); err != nil {
		return fmt.Errorf("failed to record %s event: %w", event, err)
	}
	return nil
}

// ListByCampaign returns a campaign's message rows, optionally restricted
// to one channel.
func (s *Service) ListByCampaign(ctx context.Context, campaignID uuid.UUID, channel model.Channel) ([]*model.Message, error) {
	messages, err := s.messages.ListByCampaign(ctx, campaignID)
	if err != nil || channel == "" {
		return messages, err
	}

	filtered := messages[:0]
	for _, msg := range messages {
		if msg.Channel == channel {
			filtered = append(filtered, msg)
		}
	}
	return filtered, nil
}

// ListAttempts returns one message's delivery attempt history.
func (s *Service) ListAttempts(ctx context.Context, messageID uuid.UUID) ([]*model.MessageAttempt, error) {
	return s.messages.ListAttempts(ctx, messageID)
}
