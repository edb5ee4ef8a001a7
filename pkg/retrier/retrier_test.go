package retrier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDo(t *testing.T) {
	t.Run("first attempt succeeds without waiting", func(t *testing.T) {
		attempts := 0
		err := New().Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, attempts)
	})

	t.Run("transient failure recovers within budget", func(t *testing.T) {
		r := New(WithMaxRetries(3), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 3, attempts)
	})

	t.Run("last error surfaces when budget is spent", func(t *testing.T) {
		r := New(WithMaxRetries(2), WithInitialInterval(time.Millisecond))
		attempts := 0
		err := r.Do(context.Background(), func(ctx context.Context) error {
			attempts++
			return errors.New("permanent")
		})
		require.EqualError(t, err, "permanent")
		require.Equal(t, 3, attempts, "one initial attempt plus two retries")
	})

	t.Run("cancelled context stops the backoff wait", func(t *testing.T) {
		r := New(WithMaxRetries(5), WithInitialInterval(100*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())

		attempts := 0
		err := r.Do(ctx, func(ctx context.Context) error {
			attempts++
			if attempts == 2 {
				cancel()
			}
			return errors.New("fail")
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 2, attempts)
	})

	t.Run("delay never exceeds the cap", func(t *testing.T) {
		r := New(
			WithMaxRetries(3),
			WithInitialInterval(time.Millisecond),
			WithMaxInterval(2*time.Millisecond),
		)

		start := time.Now()
		err := r.Do(context.Background(), func(ctx context.Context) error {
			return errors.New("fail")
		})
		require.Error(t, err)
		// 1ms + 2ms + 2ms of capped waits, generous bound for jitter and CI
		require.Less(t, time.Since(start), time.Second)
	})
}

func TestDoWithData(t *testing.T) {
	t.Run("value comes through on success", func(t *testing.T) {
		val, err := DoWithData(New(), context.Background(), func(ctx context.Context) (string, error) {
			return "balances", nil
		})
		require.NoError(t, err)
		require.Equal(t, "balances", val)
	})

	t.Run("zero value on failure", func(t *testing.T) {
		r := New(WithMaxRetries(1), WithInitialInterval(time.Millisecond))
		val, err := DoWithData(r, context.Background(), func(ctx context.Context) (string, error) {
			return "", errors.New("fail")
		})
		require.Error(t, err)
		require.Empty(t, val)
	})
}
