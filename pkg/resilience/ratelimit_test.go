package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_DelaysSecondAcquire(t *testing.T) {
	l := NewLimiter(10, 1) // 1 token, refill every 100ms
	ctx := context.Background()

	require.NoError(t, l.Acquire(ctx))

	start := time.Now()
	require.NoError(t, l.Acquire(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond)
}

func TestLimiter_HighRateIsFast(t *testing.T) {
	l := NewLimiter(10000, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Acquire(ctx))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestLimiter_AcquireHonorsCancellation(t *testing.T) {
	l := NewLimiter(0.1, 1) // one token per 10s
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	require.NoError(t, l.Acquire(ctx))
	err := l.Acquire(ctx)
	assert.Error(t, err)
}

func TestAdaptiveLimiter_ThrottleHalvesRate(t *testing.T) {
	l := NewAdaptiveLimiter(8, 1, 16, 1)

	l.OnThrottle()
	assert.InDelta(t, 4.0, l.Rate(), 0.001)

	l.OnThrottle()
	l.OnThrottle()
	l.OnThrottle()
	// Clamped at the floor.
	assert.InDelta(t, 1.0, l.Rate(), 0.001)
}

func TestAdaptiveLimiter_SuccessGrowsRateUpToCeiling(t *testing.T) {
	l := NewAdaptiveLimiter(15, 1, 16, 1)

	l.OnSuccess()
	assert.InDelta(t, 16.0, l.Rate(), 0.001)

	l.OnSuccess()
	assert.InDelta(t, 16.0, l.Rate(), 0.001)
}
