package model

import "github.com/google/uuid"

// CampaignMetrics is the read-side summary of one campaign's message rows
// plus attributed revenue. Zero-row campaigns summarize to the zero value.
type CampaignMetrics struct {
	CampaignID uuid.UUID `json:"campaign_id"`
	Sent       int       `json:"sent"`
	Opened     int       `json:"opened"`
	Clicked    int       `json:"clicked"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Revenue    float64   `json:"revenue"`
}

// DashboardMetrics aggregates across every campaign of an account.
type DashboardMetrics struct {
	AccountID         uuid.UUID              `json:"account_id"`
	CampaignsByStatus map[CampaignStatus]int `json:"campaigns_by_status"`
	MessagesSent      int                    `json:"messages_sent"`
	MessagesOpened    int                    `json:"messages_opened"`
	MessagesClicked   int                    `json:"messages_clicked"`
	MessagesFailed    int                    `json:"messages_failed"`
	Revenue           float64                `json:"revenue"`
}
