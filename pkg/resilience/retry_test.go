package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Strategy:    StrategyFixed,
	}
}

func TestRetryer_AlwaysFailingCallsExactlyMaxAttempts(t *testing.T) {
	r := NewRetryer(fastConfig(), nil, nil)

	calls := 0
	boom := errors.New("boom")
	err := r.Do(context.Background(), "task-1", func(context.Context) error {
		calls++
		return boom
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, boom)
}

func TestRetryer_SucceedsOnSecondAttempt(t *testing.T) {
	r := NewRetryer(fastConfig(), nil, nil)

	calls := 0
	err := r.Do(context.Background(), "task-1", func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryer_NonRetryableAbortsImmediately(t *testing.T) {
	r := NewRetryer(fastConfig(), nil, nil)

	calls := 0
	err := r.Do(context.Background(), "task-1", func(context.Context) error {
		calls++
		return NewHTTPError(http.StatusNotFound, "https://api.example.com")
	})

	assert.Equal(t, 1, calls)
	var httpErr *HTTPError
	assert.ErrorAs(t, err, &httpErr)
}

func TestRetryer_429IsRetryable(t *testing.T) {
	r := NewRetryer(fastConfig(), nil, nil)

	calls := 0
	_ = r.Do(context.Background(), "task-1", func(context.Context) error {
		calls++
		return NewHTTPError(http.StatusTooManyRequests, "https://api.example.com")
	})
	assert.Equal(t, 3, calls)
}

func TestRetryer_ExhaustionDeadLetters(t *testing.T) {
	dlq := NewDeadLetterQueue(8)
	r := NewRetryer(fastConfig(), nil, dlq)

	_ = r.Do(context.Background(), "task-42", func(context.Context) error {
		return errors.New("always")
	})

	letter, ok := dlq.Get("task-42")
	require.True(t, ok)
	assert.Equal(t, 3, letter.Attempts)
}

func TestRetryer_BudgetExhaustionDeadLetters(t *testing.T) {
	dlq := NewDeadLetterQueue(8)
	budget := NewRetryBudget(0.0001, 0) // no tokens, ever
	r := NewRetryer(fastConfig(), budget, dlq)

	calls := 0
	err := r.Do(context.Background(), "task-7", func(context.Context) error {
		calls++
		return errors.New("transient")
	})

	assert.Equal(t, 1, calls) // no budget means no retry
	assert.ErrorIs(t, err, ErrBudgetExhausted)
	assert.Equal(t, 1, dlq.Len())
}

func TestRetryer_ContextCancellationAborts(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		MaxDelay:    time.Second,
		Strategy:    StrategyFixed,
	}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, "task-1", func(context.Context) error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryer_DelayStrategies(t *testing.T) {
	base := 100 * time.Millisecond
	tests := []struct {
		strategy Strategy
		attempt  int
		want     time.Duration
	}{
		{StrategyExponential, 1, 100 * time.Millisecond},
		{StrategyExponential, 2, 200 * time.Millisecond},
		{StrategyExponential, 3, 400 * time.Millisecond},
		{StrategyLinear, 3, 300 * time.Millisecond},
		{StrategyFibonacci, 1, 100 * time.Millisecond},
		{StrategyFibonacci, 4, 300 * time.Millisecond},
		{StrategyFibonacci, 5, 500 * time.Millisecond},
		{StrategyFixed, 4, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		r := NewRetryer(RetryConfig{
			MaxAttempts: 10,
			BaseDelay:   base,
			MaxDelay:    time.Minute,
			Strategy:    tt.strategy,
		}, nil, nil)
		got := r.delay(tt.attempt, base)
		assert.Equal(t, tt.want, got, "strategy=%s attempt=%d", tt.strategy, tt.attempt)
	}
}

func TestRetryer_DelayBoundedByMax(t *testing.T) {
	r := NewRetryer(RetryConfig{
		MaxAttempts: 10,
		BaseDelay:   time.Second,
		MaxDelay:    3 * time.Second,
		Strategy:    StrategyExponential,
	}, nil, nil)

	assert.Equal(t, 3*time.Second, r.delay(8, time.Second))
}

func TestRetryer_JitterStaysInRange(t *testing.T) {
	for _, jitter := range []Jitter{JitterFull, JitterEqual, JitterDecorrelated} {
		r := NewRetryer(RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    100 * time.Millisecond,
			Strategy:    StrategyExponential,
			Jitter:      jitter,
		}, nil, nil)
		for i := 0; i < 50; i++ {
			d := r.delay(2, 10*time.Millisecond)
			assert.GreaterOrEqual(t, d, time.Duration(0), "jitter=%s", jitter)
			assert.LessOrEqual(t, d, 100*time.Millisecond, "jitter=%s", jitter)
		}
	}
}

func TestDeadLetterQueue_BoundedEviction(t *testing.T) {
	q := NewDeadLetterQueue(2)
	q.Add(DeadLetter{TaskID: "a"})
	q.Add(DeadLetter{TaskID: "b"})
	q.Add(DeadLetter{TaskID: "c"})

	assert.Equal(t, 2, q.Len())
	_, ok := q.Get("a")
	assert.False(t, ok, "oldest entry should be evicted")
	_, ok = q.Get("c")
	assert.True(t, ok)
}

func TestDeadLetterQueue_DrainReturnsInOrder(t *testing.T) {
	q := NewDeadLetterQueue(4)
	q.Add(DeadLetter{TaskID: "a"})
	q.Add(DeadLetter{TaskID: "b"})

	letters := q.Drain()
	require.Len(t, letters, 2)
	assert.Equal(t, "a", letters[0].TaskID)
	assert.Equal(t, "b", letters[1].TaskID)
	assert.Equal(t, 0, q.Len())
}

func TestDefaultRetryable_Classification(t *testing.T) {
	assert.False(t, DefaultRetryable(nil))
	assert.False(t, DefaultRetryable(context.Canceled))
	assert.False(t, DefaultRetryable(NewHTTPError(400, "u")))
	assert.False(t, DefaultRetryable(NewHTTPError(404, "u")))
	assert.True(t, DefaultRetryable(NewHTTPError(429, "u")))
	assert.True(t, DefaultRetryable(NewHTTPError(500, "u")))
	assert.True(t, DefaultRetryable(NewHTTPError(503, "u")))
	assert.True(t, DefaultRetryable(errors.New("connection reset")))
}
