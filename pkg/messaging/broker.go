package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Topics published by the campaign orchestrator for dashboard consumers.
const (
	TopicCampaignCompleted = "campaign.completed"
	TopicCampaignFailed    = "campaign.failed"
	TopicCampaignCancelled = "campaign.cancelled"
)

// CampaignEvent is the payload published on campaign lifecycle topics.
type CampaignEvent struct {
	CampaignID string `json:"campaign_id"`
	AccountID  string `json:"account_id"`
	Status     string `json:"status"`
	Sent       int    `json:"sent"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
}
