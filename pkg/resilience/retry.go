// Package resilience provides the shared fault-tolerance primitives: retry
// with configurable backoff, a global retry budget with dead-lettering,
// circuit breakers, and token-bucket rate limiters.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Strategy selects how the retry delay grows per attempt.
type Strategy string

// Retry strategies.
const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFibonacci   Strategy = "fibonacci"
	StrategyFixed       Strategy = "fixed"
)

// Jitter selects how the computed delay is randomized.
type Jitter string

// Jitter modes.
const (
	JitterNone         Jitter = "none"
	JitterFull         Jitter = "full"
	JitterEqual        Jitter = "equal"
	JitterDecorrelated Jitter = "decorrelated"
)

// ErrBudgetExhausted indicates the global retry budget had no tokens left;
// the task was dead-lettered instead of retried.
var ErrBudgetExhausted = errors.New("retry budget exhausted")

// RetryConfig configures a Retryer.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Strategy    Strategy
	Jitter      Jitter

	// Classify reports whether an error is worth retrying.
	// Nil means DefaultRetryable.
	Classify func(error) bool

	// OnRetryableError, when set, observes every retryable failure before
	// the backoff sleep (e.g. to raise upstream rate-limit alerts).
	OnRetryableError func(taskID string, err error)
}

// Retryer wraps external calls with bounded, budgeted retries. A single
// Retryer (and its budget and dead-letter queue) is shared across the
// process so that a misbehaving upstream cannot starve everything else.
type Retryer struct {
	cfg    RetryConfig
	budget *rate.Limiter
	dlq    *DeadLetterQueue
}

// NewRetryer creates a Retryer. budget may be nil (unlimited retries up to
// MaxAttempts); dlq may be nil (exhausted tasks are dropped).
func NewRetryer(cfg RetryConfig, budget *rate.Limiter, dlq *DeadLetterQueue) *Retryer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyExponential
	}
	if cfg.Jitter == "" {
		cfg.Jitter = JitterNone
	}
	if cfg.Classify == nil {
		cfg.Classify = DefaultRetryable
	}
	return &Retryer{cfg: cfg, budget: budget, dlq: dlq}
}

// Do invokes fn up to MaxAttempts times. Non-retryable errors and context
// cancellation abort immediately. When the budget or the attempt count is
// exhausted, the task id is dead-lettered and the last error returned.
func (r *Retryer) Do(ctx context.Context, taskID string, fn func(context.Context) error) error {
	var lastErr error
	prevDelay := r.cfg.BaseDelay

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.cfg.Classify(lastErr) {
			return lastErr
		}
		if r.cfg.OnRetryableError != nil {
			r.cfg.OnRetryableError(taskID, lastErr)
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}

		// Each retry (not the first attempt) consumes a budget token.
		if r.budget != nil && !r.budget.Allow() {
			r.deadLetter(taskID, attempt, lastErr)
			return fmt.Errorf("%w: %s: %w", ErrBudgetExhausted, taskID, lastErr)
		}

		delay := r.delay(attempt, prevDelay)
		prevDelay = delay

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	r.deadLetter(taskID, r.cfg.MaxAttempts, lastErr)
	return lastErr
}

func (r *Retryer) deadLetter(taskID string, attempts int, err error) {
	if r.dlq == nil {
		return
	}
	r.dlq.Add(DeadLetter{
		TaskID:   taskID,
		Attempts: attempts,
		Err:      err,
		At:       time.Now(),
	})
}

// delay computes the wait before the next attempt (attempt counts from 1).
func (r *Retryer) delay(attempt int, prevDelay time.Duration) time.Duration {
	base := r.cfg.BaseDelay
	var d time.Duration

	switch r.cfg.Strategy {
	case StrategyLinear:
		d = base * time.Duration(attempt)
	case StrategyFibonacci:
		d = base * time.Duration(fib(attempt))
	case StrategyFixed:
		d = base
	default: // exponential, base 2
		d = base << (attempt - 1)
	}
	if d > r.cfg.MaxDelay {
		d = r.cfg.MaxDelay
	}

	switch r.cfg.Jitter {
	case JitterFull:
		d = time.Duration(rand.Int64N(int64(d) + 1))
	case JitterEqual:
		half := d / 2
		d = half + time.Duration(rand.Int64N(int64(half)+1))
	case JitterDecorrelated:
		// AWS-style: sleep = min(cap, random_between(base, prev*3)).
		lo, hi := int64(base), int64(prevDelay)*3
		if hi <= lo {
			hi = lo + 1
		}
		d = time.Duration(lo + rand.Int64N(hi-lo))
		if d > r.cfg.MaxDelay {
			d = r.cfg.MaxDelay
		}
	}
	return d
}

// fib returns the n-th Fibonacci number (1, 1, 2, 3, 5, ...).
func fib(n int) int64 {
	a, b := int64(1), int64(1)
	for i := 2; i <= n; i++ {
		a, b = b, a+b
	}
	return a
}

// NewRetryBudget builds the global retry token bucket.
func NewRetryBudget(ratePerSecond float64, burst int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}
