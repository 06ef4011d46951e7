package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aimkt/marketing-api/internal/model"
)

// All repository interfaces in one file
type (
	CampaignRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Campaign, error)
		List(ctx context.Context, accountID uuid.UUID) ([]*model.Campaign, error)
		// ListDue returns scheduled campaigns whose scheduled time has
		// passed, for the worker's scheduler tick.
		ListDue(ctx context.Context, now time.Time, limit int) ([]*model.Campaign, error)
		// UpdateStatus performs a guarded transition: the row is only
		// touched when its current status equals from. A zero-row update
		// surfaces as a conflict so lost updates never go unnoticed.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CampaignStatus) error
		SetSchedule(ctx context.Context, id uuid.UUID, when time.Time) error
		SetLastRun(ctx context.Context, id uuid.UUID, at time.Time) error
		CountByStatus(ctx context.Context, accountID uuid.UUID) (map[model.CampaignStatus]int, error)
	}

	CampaignLogRepository interface {
		Append(ctx context.Context, log *model.CampaignLog) error
		ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.CampaignLog, error)
	}

	CustomerRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Customer, error)
		ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.Customer, error)
	}

	SegmentRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Segment, error)
	}

	MessageRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Message, error)
		// Find returns nil, nil when no row exists for the triple.
		Find(ctx context.Context, campaignID uuid.UUID, channel model.Channel, customerID uuid.UUID) (*model.Message, error)
		Create(ctx context.Context, msg *model.Message) error
		Update(ctx context.Context, msg *model.Message) error
		// UpdateWithAttempt persists the message state and its attempt
		// record in one transaction, so the history never disagrees
		// with the row.
		UpdateWithAttempt(ctx context.Context, msg *model.Message, attempt *model.MessageAttempt) error
		ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.Message, error)
		ListAttempts(ctx context.Context, messageID uuid.UUID) ([]*model.MessageAttempt, error)
		// ListDueRetries returns retrying messages whose next_retry_at has
		// passed, for the worker's retry sweeper.
		ListDueRetries(ctx context.Context, now time.Time, limit int) ([]*model.Message, error)
		CountByStatus(ctx context.Context, campaignID uuid.UUID) (map[model.MessageStatus]int, error)
		CountByStatusForAccount(ctx context.Context, accountID uuid.UUID) (map[model.MessageStatus]int, error)
		// RecordEvent applies an opened/clicked transition with its
		// timestamp. Only delivered messages accept events.
		RecordEvent(ctx context.Context, id uuid.UUID, event model.MessageEvent, at time.Time) error
	}

	ContentRepository interface {
		Find(ctx context.Context, campaignID uuid.UUID, channel model.Channel, language string) (*model.CampaignContent, error)
		Upsert(ctx context.Context, content *model.CampaignContent) error
		ListByCampaign(ctx context.Context, campaignID uuid.UUID) ([]*model.CampaignContent, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		MarkRead(ctx context.Context, id uuid.UUID, at time.Time) error
		ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*model.Notification, error)
	}

	// PaymentRepository is the read-only payment ledger.
	PaymentRepository interface {
		SumByCampaign(ctx context.Context, campaignID uuid.UUID) (float64, error)
		SumByAccount(ctx context.Context, accountID uuid.UUID) (float64, error)
	}
)
