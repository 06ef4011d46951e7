package model

import (
	"time"

	"github.com/google/uuid"
)

// CampaignContent is generated copy for one (campaign, channel, language)
// triple. Generation is cached on this key so duplicate provider calls are
// never made for the same campaign.
type CampaignContent struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CampaignID uuid.UUID `db:"campaign_id" json:"campaign_id"`
	Channel    Channel   `db:"channel" json:"channel"`
	Language   string    `db:"language" json:"language"`
	Body       string    `db:"body" json:"body"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
