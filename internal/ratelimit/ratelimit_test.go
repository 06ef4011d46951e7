package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimkt/marketing-api/internal/model"
)

func TestAcquireUnknownChannel(t *testing.T) {
	limiter := New(Config{model.ChannelEmail: 60})

	_, err := limiter.Acquire(context.Background(), model.ChannelWhatsApp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no rate limit configured")
}

func TestAcquireFastPathWithinBurst(t *testing.T) {
	limiter := New(Config{model.ChannelEmail: 60})

	for i := 0; i < 60; i++ {
		wait, err := limiter.Acquire(context.Background(), model.ChannelEmail)
		require.NoError(t, err)
		assert.Less(t, wait, 50*time.Millisecond)
	}
}

func TestAcquirePacesBeyondBurst(t *testing.T) {
	// 60/min with the full minute budget as burst: acquire 61 tokens and
	// the last one must wait roughly one second.
	limiter := New(Config{model.ChannelEmail: 60})

	start := time.Now()
	for i := 0; i < 61; i++ {
		_, err := limiter.Acquire(context.Background(), model.ChannelEmail)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestChannelsDoNotBlockEachOther(t *testing.T) {
	limiter := New(Config{
		model.ChannelEmail:    60,
		model.ChannelWhatsApp: 60,
	})

	// Drain the email bucket completely.
	for i := 0; i < 60; i++ {
		_, err := limiter.Acquire(context.Background(), model.ChannelEmail)
		require.NoError(t, err)
	}

	// WhatsApp still grants immediately.
	wait, err := limiter.Acquire(context.Background(), model.ChannelWhatsApp)
	require.NoError(t, err)
	assert.Less(t, wait, 50*time.Millisecond)
}

func TestAcquireHonoursContextCancellation(t *testing.T) {
	limiter := New(Config{model.ChannelEmail: 1})

	_, err := limiter.Acquire(context.Background(), model.ChannelEmail)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = limiter.Acquire(ctx, model.ChannelEmail)
	require.Error(t, err)
}
