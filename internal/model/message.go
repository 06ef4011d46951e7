package model

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageStatusQueued   MessageStatus = "queued"
	MessageStatusRetrying MessageStatus = "retrying"
	MessageStatusSent     MessageStatus = "sent"
	MessageStatusFailed   MessageStatus = "failed"
	MessageStatusSkipped  MessageStatus = "skipped"
	MessageStatusOpened   MessageStatus = "opened"
	MessageStatusClicked  MessageStatus = "clicked"
)

// IsDelivered reports whether the message reached the recipient. Sent may
// still progress to opened/clicked; none of these are ever re-dispatched.
func (s MessageStatus) IsDelivered() bool {
	return s == MessageStatusSent || s == MessageStatusOpened || s == MessageStatusClicked
}

// IsTerminal reports whether the dispatch pipeline is done with the message.
func (s MessageStatus) IsTerminal() bool {
	return s.IsDelivered() || s == MessageStatusFailed || s == MessageStatusSkipped
}

// Message is the per-recipient, per-channel delivery record. It is the
// durable source of truth for resume and metrics; the orchestrator holds no
// state of its own between runs.
type Message struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	CampaignID  uuid.UUID     `db:"campaign_id" json:"campaign_id"`
	CustomerID  uuid.UUID     `db:"customer_id" json:"customer_id"`
	Channel     Channel       `db:"channel" json:"channel"`
	Status      MessageStatus `db:"status" json:"status"`
	Attempts    int           `db:"attempts" json:"attempts"`
	MaxAttempts int           `db:"max_attempts" json:"max_attempts"`
	LastError   string        `db:"last_error" json:"last_error,omitempty"`
	ProviderRef string        `db:"provider_ref" json:"provider_ref,omitempty"`
	NextRetryAt *time.Time    `db:"next_retry_at" json:"next_retry_at,omitempty"`
	QueuedAt    time.Time     `db:"queued_at" json:"queued_at"`
	SentAt      *time.Time    `db:"sent_at" json:"sent_at,omitempty"`
	OpenedAt    *time.Time    `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt   *time.Time    `db:"clicked_at" json:"clicked_at,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// MessageAttempt records one delivery try, success or failure. Appended
// before the dispatcher returns.
type MessageAttempt struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	MessageID   uuid.UUID     `db:"message_id" json:"message_id"`
	Attempt     int           `db:"attempt" json:"attempt"`
	Status      MessageStatus `db:"status" json:"status"`
	Error       string        `db:"error" json:"error,omitempty"`
	ProviderRef string        `db:"provider_ref" json:"provider_ref,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

type MessageEvent string

const (
	MessageEventOpened  MessageEvent = "opened"
	MessageEventClicked MessageEvent = "clicked"
)
