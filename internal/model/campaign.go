package model

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
	CampaignStatusCancelled CampaignStatus = "cancelled"
)

// Campaign is the unit of orchestration. It owns its Messages and
// CampaignLogs; it is soft-archived, never deleted.
type Campaign struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	AccountID   uuid.UUID      `db:"account_id" json:"account_id"`
	SegmentID   uuid.UUID      `db:"segment_id" json:"segment_id"`
	ProductName string         `db:"product_name" json:"product_name"`
	Name        string         `db:"name" json:"name"`
	Status      CampaignStatus `db:"status" json:"status"`
	Channels    ChannelList    `db:"channels" json:"channels"`
	Language    string         `db:"language" json:"language"`
	Timezone    string         `db:"timezone" json:"timezone"`
	ScheduledAt *time.Time     `db:"scheduled_at" json:"scheduled_at,omitempty"`
	LastRunAt   *time.Time     `db:"last_run_at" json:"last_run_at,omitempty"`
	ArchivedAt  *time.Time     `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// CanTransition reports whether moving to next is a legal status change.
// Terminal statuses never regress to sending except for an explicit resume
// out of failed or cancelled, which re-enters the sending state.
func (c *Campaign) CanTransition(next CampaignStatus) bool {
	allowed, ok := campaignTransitions[c.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == next {
			return true
		}
	}
	return false
}

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignStatusDraft:     {CampaignStatusScheduled, CampaignStatusSending},
	CampaignStatusScheduled: {CampaignStatusSending, CampaignStatusCancelled},
	CampaignStatusSending:   {CampaignStatusCompleted, CampaignStatusFailed, CampaignStatusCancelled},
	// failed and cancelled campaigns may be resumed; their undelivered
	// messages are still non-terminal
	CampaignStatusFailed:    {CampaignStatusSending},
	CampaignStatusCancelled: {CampaignStatusSending},
	CampaignStatusCompleted: {},
}

// IsTerminal reports whether no further automatic transition occurs.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusFailed || s == CampaignStatusCancelled
}

// CampaignLog is an append-only lifecycle event record. Rows are immutable
// once written.
type CampaignLog struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	CampaignID uuid.UUID  `db:"campaign_id" json:"campaign_id"`
	MessageID  *uuid.UUID `db:"message_id" json:"message_id,omitempty"`
	Event      string     `db:"event" json:"event"`
	Detail     string     `db:"detail" json:"detail"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}
