package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTemporary = errors.New("temporary")

func TestDo(t *testing.T) {
	noWait := LinearBackoff(time.Millisecond)

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		var calls int
		err := Do(t.Context(), RetryConfig{MaxAttempts: 3, Backoff: noWait},
			func() error {
				calls++
				if calls < 3 {
					return errTemporary
				}
				return nil
			},
		)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("ReturnsLastError", func(t *testing.T) {
		var calls int
		err := Do(t.Context(), RetryConfig{MaxAttempts: 2, Backoff: noWait},
			func() error {
				calls++
				return errTemporary
			},
		)
		require.ErrorIs(t, err, errTemporary)
		assert.Equal(t, 2, calls)
	})

	t.Run("ZeroAttemptsRunsOnce", func(t *testing.T) {
		var calls int
		err := Do(t.Context(), RetryConfig{}, func() error {
			calls++
			return errTemporary
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("ShouldRetryStops", func(t *testing.T) {
		var calls int
		cfg := RetryConfig{
			MaxAttempts: 5,
			Backoff:     noWait,
			ShouldRetry: func(err error) bool { return false },
		}
		err := Do(t.Context(), cfg, func() error {
			calls++
			return errTemporary
		})
		require.ErrorIs(t, err, errTemporary)
		assert.Equal(t, 1, calls)
	})

	t.Run("CanceledBeforeStart", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := Do(ctx, RetryConfig{MaxAttempts: 3}, func() error {
			t.Fatal("must not be called")
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("CanceledWhileWaiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		cfg := RetryConfig{MaxAttempts: 3, Backoff: LinearBackoff(time.Hour)}

		err := Do(ctx, cfg, func() error {
			cancel()
			return errTemporary
		})
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, errTemporary)
	})
}

func TestDoWithResult(t *testing.T) {
	n, err := DoWithResult(t.Context(), RetryConfig{MaxAttempts: 1},
		func() (int, error) { return 42, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestExponentialBackoff(t *testing.T) {
	b := ExponentialBackoff(10 * time.Millisecond)

	for attempt := 1; attempt <= 4; attempt++ {
		base := time.Duration(1<<attempt) * 10 * time.Millisecond
		d := b(attempt)
		assert.Greater(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}

	assert.Zero(t, ExponentialBackoff(0)(1))
}
