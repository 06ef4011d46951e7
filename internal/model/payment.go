package model

import (
	"time"

	"github.com/google/uuid"
)

// Payment is a settled payment attributed to a campaign. The core only
// reads these rows; creation belongs to the external payment service.
type Payment struct {
	ID         uuid.UUID `db:"id" json:"id"`
	CampaignID uuid.UUID `db:"campaign_id" json:"campaign_id"`
	Amount     float64   `db:"amount" json:"amount"`
	Currency   string    `db:"currency" json:"currency"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
