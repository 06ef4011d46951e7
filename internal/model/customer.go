package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Customer is an end recipient of marketing campaigns. Opt-in flags are
// per channel; a customer opted out of a channel is never messaged on it
// regardless of segment membership.
type Customer struct {
	ID             uuid.UUID      `db:"id" json:"id"`
	AccountID      uuid.UUID      `db:"account_id" json:"account_id"`
	Email          string         `db:"email" json:"email"`
	Phone          string         `db:"phone" json:"phone"`
	FirstName      string         `db:"first_name" json:"first_name"`
	LastName       string         `db:"last_name" json:"last_name"`
	Language       string         `db:"language" json:"language"`
	Timezone       string         `db:"timezone" json:"timezone"`
	Tags           pq.StringArray `db:"tags" json:"tags"`
	EmailOptIn     bool           `db:"email_opt_in" json:"email_opt_in"`
	WhatsAppOptIn  bool           `db:"whatsapp_opt_in" json:"whatsapp_opt_in"`
	AvgOrderValue  float64        `db:"avg_order_value" json:"avg_order_value"`
	LastPurchaseAt *time.Time     `db:"last_purchase_at" json:"last_purchase_at,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// OptedIn reports whether the customer accepts messages on the channel.
func (c *Customer) OptedIn(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.EmailOptIn
	case ChannelWhatsApp:
		return c.WhatsAppOptIn
	}
	return false
}

// Address returns the delivery address for the channel, empty if the
// customer has none.
func (c *Customer) Address(ch Channel) string {
	switch ch {
	case ChannelEmail:
		return c.Email
	case ChannelWhatsApp:
		return c.Phone
	}
	return ""
}

func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
