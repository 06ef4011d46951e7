package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationLevel string

const (
	NotificationLevelInfo    NotificationLevel = "info"
	NotificationLevelSuccess NotificationLevel = "success"
	NotificationLevelWarning NotificationLevel = "warning"
	NotificationLevelError   NotificationLevel = "error"
)

type NotificationStatus string

const (
	NotificationStatusUnread NotificationStatus = "unread"
	NotificationStatusRead   NotificationStatus = "read"
)

// Notification is a dashboard notification for an account. Created by the
// orchestrator on campaign completion or failure; mutated only by MarkRead.
type Notification struct {
	ID        uuid.UUID          `db:"id" json:"id"`
	AccountID uuid.UUID          `db:"account_id" json:"account_id"`
	Title     string             `db:"title" json:"title"`
	Body      string             `db:"body" json:"body"`
	Level     NotificationLevel  `db:"level" json:"level"`
	Status    NotificationStatus `db:"status" json:"status"`
	CreatedAt time.Time          `db:"created_at" json:"created_at"`
	ReadAt    *time.Time         `db:"read_at" json:"read_at,omitempty"`
}
