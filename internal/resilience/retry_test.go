package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		JitterFraction: 0,
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesTransient(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("flaky"))
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	t.Parallel()

	calls := 0
	permanent := eris.New("constraint violation")
	err := Do(context.Background(), fastRetry(5), func(context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := Do(context.Background(), fastRetry(3), func(context.Context) error {
		calls++
		return NewTransientError(eris.New("still flaky"))
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, fastRetry(10), func(context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("flaky"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoCustomShouldRetry(t *testing.T) {
	t.Parallel()

	cfg := fastRetry(3)
	cfg.ShouldRetry = func(error) bool { return true }

	calls := 0
	retries := 0
	cfg.OnRetry = func(int, error) { retries++ }
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return eris.New("not normally transient")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)
}

func TestComputeBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	})

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, computeBackoff(2, cfg), "capped at max")
	assert.Equal(t, 300*time.Millisecond, computeBackoff(8, cfg))
}
