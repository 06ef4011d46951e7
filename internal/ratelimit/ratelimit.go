// Package ratelimit bounds outbound message throughput per channel. One
// token bucket per channel, shared by every campaign running in the
// process; buckets never borrow from each other.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aimkt/marketing-api/internal/model"
)

// Limiter gates outbound sends. Acquire blocks until a token is available
// and returns the delay actually incurred.
type Limiter interface {
	Acquire(ctx context.Context, channel model.Channel) (time.Duration, error)
}

// Config maps each channel to its maximum messages per minute.
type Config map[model.Channel]int

type channelLimiter struct {
	mu       sync.Mutex
	limiters map[model.Channel]*rate.Limiter
	config   Config
}

// New builds a Limiter from per-minute rates. The bucket refills
// continuously at rate/60 tokens per second with capacity equal to one
// minute's budget.
func New(config Config) Limiter {
	return &channelLimiter{
		limiters: make(map[model.Channel]*rate.Limiter),
		config:   config,
	}
}

func (l *channelLimiter) Acquire(ctx context.Context, channel model.Channel) (time.Duration, error) {
	limiter, err := l.limiterFor(channel)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return time.Since(start), err
	}
	return time.Since(start), nil
}

func (l *channelLimiter) limiterFor(channel model.Channel) (*rate.Limiter, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[channel]; ok {
		return limiter, nil
	}

	perMinute, ok := l.config[channel]
	if !ok || perMinute <= 0 {
		return nil, fmt.Errorf("no rate limit configured for channel %s", channel)
	}

	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), perMinute)
	l.limiters[channel] = limiter
	return limiter, nil
}
