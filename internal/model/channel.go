package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Channel is a delivery medium with its own transport and rate limit.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every supported delivery channel.
var Channels = []Channel{ChannelEmail, ChannelWhatsApp}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelWhatsApp:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unsupported channel: %q", s)
}

// ChannelList is a set of enabled channels stored as a comma separated
// text column.
type ChannelList []Channel

func (l ChannelList) Contains(ch Channel) bool {
	for _, c := range l {
		if c == ch {
			return true
		}
	}
	return false
}

func (l ChannelList) Value() (driver.Value, error) {
	parts := make([]string, len(l))
	for i, c := range l {
		parts[i] = string(c)
	}
	return strings.Join(parts, ","), nil
}

func (l *ChannelList) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("cannot scan %T into ChannelList", src)
	}
	*l = nil
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ch, err := ParseChannel(part)
		if err != nil {
			return err
		}
		*l = append(*l, ch)
	}
	return nil
}

