// Package notification surfaces campaign outcomes to account owners: a
// dashboard notification row always, an email alert when the account has an
// alert address configured. Alert delivery is best effort and never blocks
// or fails the campaign run that triggered it.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
	"github.com/aimkt/marketing-api/internal/provider"
	"github.com/aimkt/marketing-api/internal/repository"
	"github.com/aimkt/marketing-api/pkg/logger"
)

type Service struct {
	repo         repository.NotificationRepository
	mailer       provider.Transport
	alertAddress string
	logger       *logger.Logger
}

// NewService builds the notification service. mailer may be nil or
// alertAddress empty, in which case only dashboard rows are written.
func NewService(repo repository.NotificationRepository, mailer provider.Transport, alertAddress string, log *logger.Logger) *Service {
	return &Service{
		repo:         repo,
		mailer:       mailer,
		alertAddress: alertAddress,
		logger:       log,
	}
}

// CampaignCompleted records a success notification for the account.
func (s *Service) CampaignCompleted(ctx context.Context, campaign *model.Campaign, sent, failed, skipped int) {
	body := fmt.Sprintf("Campaign %q finished: %d sent, %d failed, %d skipped.", campaign.Name, sent, failed, skipped)
	s.notify(ctx, campaign.AccountID, "Campaign completed", body, model.NotificationLevelSuccess)
}

// CampaignFailed records a failure notification for the account.
func (s *Service) CampaignFailed(ctx context.Context, campaign *model.Campaign, detail string) {
	body := fmt.Sprintf("Campaign %q failed: %s", campaign.Name, detail)
	s.notify(ctx, campaign.AccountID, "Campaign failed", body, model.NotificationLevelError)
}

// CampaignCancelled records a cancellation notice for the account.
func (s *Service) CampaignCancelled(ctx context.Context, campaign *model.Campaign) {
	body := fmt.Sprintf("Campaign %q was cancelled; undelivered messages are kept for resume.", campaign.Name)
	s.notify(ctx, campaign.AccountID, "Campaign cancelled", body, model.NotificationLevelWarning)
}

func (s *Service) notify(ctx context.Context, accountID uuid.UUID, title, body string, level model.NotificationLevel) {
	n := &model.Notification{
		ID:        uuid.New(),
		AccountID: accountID,
		Title:     title,
		Body:      body,
		Level:     level,
		Status:    model.NotificationStatusUnread,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error(err, "failed to store notification", "account_id", accountID.String(), "title", title)
	}

	if s.mailer == nil || s.alertAddress == "" {
		return
	}
	if _, err := s.mailer.Deliver(ctx, s.alertAddress, title+"\n\n"+body); err != nil {
		s.logger.Error(err, "failed to send alert email", "account_id", accountID.String())
	}
}

// MarkRead marks a dashboard notification as read.
func (s *Service) MarkRead(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.MarkRead(ctx, id, time.Now()); err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

// ListForAccount returns the account's notifications, newest first.
func (s *Service) ListForAccount(ctx context.Context, accountID uuid.UUID) ([]*model.Notification, error) {
	notifications, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
