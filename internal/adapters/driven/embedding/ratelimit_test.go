package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Unlimited(t *testing.T) {
	r := NewRateLimiter(0)

	for range 100 {
		assert.True(t, r.Allow())
	}
	require.NoError(t, r.Wait(context.Background()))
}

func TestRateLimiter_Burst(t *testing.T) {
	r := NewRateLimiter(2)

	assert.True(t, r.Allow())
	assert.True(t, r.Allow())
	assert.False(t, r.Allow())
}

func TestRateLimiter_Backoff(t *testing.T) {
	r := NewRateLimiter(0)
	r.Backoff(time.Hour)

	assert.False(t, r.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestRateLimiter_BackoffDefault(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRateLimiter(0)
	r.now = func() time.Time { return now }

	r.Backoff(0)
	assert.Equal(t, now.Add(DefaultBackoff), r.retryAt)
}

func TestRateLimiter_Nil(t *testing.T) {
	var r *RateLimiter

	assert.True(t, r.Allow())
	assert.NoError(t, r.Wait(context.Background()))
	r.Backoff(time.Second)
}
