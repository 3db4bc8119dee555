package connection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retries []int
	cfg := fastConfig(5)
	cfg.OnRetry = func(attempt int, _ time.Duration, _ error) { retries = append(retries, attempt) }

	err := WithRetry(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestWithRetry_GivesUp(t *testing.T) {
	cause := errors.New("connection refused")
	calls := 0

	err := WithRetry(context.Background(), fastConfig(3), func(ctx context.Context) error {
		calls++
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestWithRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := WithRetry(ctx, fastConfig(3), func(ctx context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, calls)
}

func TestCalculateDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2}

	assert.Equal(t, 100*time.Millisecond, calculateDelay(1, cfg))
	assert.Equal(t, 400*time.Millisecond, calculateDelay(3, cfg))
	assert.Equal(t, time.Second, calculateDelay(10, cfg))

	cfg.Jitter = true
	for i := 0; i < 50; i++ {
		d := calculateDelay(1, cfg)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}
