package resilience

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Limiter is a blocking token-bucket rate limiter for one external host.
// Acquire blocks until a token is available; it only fails on context
// cancellation.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter creates a limiter refilling at ratePerSecond with the given burst.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Acquire blocks until a token is available or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// Rate returns the current refill rate in tokens per second.
func (l *Limiter) Rate() float64 {
	return float64(l.limiter.Limit())
}

// AdaptiveLimiter adjusts its rate based on upstream feedback: a rate-limit
// response halves the rate, a success multiplies it by 1.1, clamped to
// [minRate, maxRate].
type AdaptiveLimiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	minRate float64
	maxRate float64
}

// NewAdaptiveLimiter creates an adaptive limiter starting at startRate.
func NewAdaptiveLimiter(startRate, minRate, maxRate float64, burst int) *AdaptiveLimiter {
	if burst < 1 {
		burst = 1
	}
	start := clampRate(startRate, minRate, maxRate)
	return &AdaptiveLimiter{
		limiter: rate.NewLimiter(rate.Limit(start), burst),
		minRate: minRate,
		maxRate: maxRate,
	}
}

// Acquire blocks until a token is available or the context is cancelled.
func (l *AdaptiveLimiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// OnSuccess nudges the rate up by 10%.
func (l *AdaptiveLimiter) OnSuccess() {
	l.adjust(1.1)
}

// OnThrottle halves the rate after an upstream rate-limit response.
func (l *AdaptiveLimiter) OnThrottle() {
	l.adjust(0.5)
}

// Rate returns the current refill rate in tokens per second.
func (l *AdaptiveLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(l.limiter.Limit())
}

func (l *AdaptiveLimiter) adjust(factor float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := clampRate(float64(l.limiter.Limit())*factor, l.minRate, l.maxRate)
	l.limiter.SetLimit(rate.Limit(next))
}

func clampRate(r, minRate, maxRate float64) float64 {
	if r < minRate {
		return minRate
	}
	if maxRate > 0 && r > maxRate {
		return maxRate
	}
	return r
}
