package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Segment is a named, dynamically resolved set of customers. Membership is
// a pure function of current customer data at resolution time and is never
// stored.
type Segment struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	AccountID   uuid.UUID      `db:"account_id" json:"account_id"`
	Name        string         `db:"name" json:"name"`
	Description string         `db:"description" json:"description"`
	Tags        pq.StringArray `db:"tags" json:"tags"`
	// Field conditions; nil means the condition is not applied.
	MinOrderValue       *float64  `db:"min_order_value" json:"min_order_value,omitempty"`
	PurchasedWithinDays *int      `db:"purchased_within_days" json:"purchased_within_days,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Matches applies the segment predicate to a single customer.
func (s *Segment) Matches(c *Customer, now time.Time) bool {
	for _, tag := range s.Tags {
		if !c.HasTag(tag) {
			return false
		}
	}
	if s.MinOrderValue != nil && c.AvgOrderValue < *s.MinOrderValue {
		return false
	}
	if s.PurchasedWithinDays != nil {
		if c.LastPurchaseAt == nil {
			return false
		}
		cutoff := now.AddDate(0, 0, -*s.PurchasedWithinDays)
		if c.LastPurchaseAt.Before(cutoff) {
			return false
		}
	}
	return true
}
