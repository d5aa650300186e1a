package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestRetry(t *testing.T) {
	t.Run("succeeds after failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), 3, time.Millisecond, func(attempt int) error {
			calls++
			if attempt < 3 {
				return errors.New("conexão recusada")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up with the last error", func(t *testing.T) {
		boom := errors.New("timeout")
		calls := 0
		err := Retry(context.Background(), 2, time.Millisecond, func(int) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 2, calls)
	})

	t.Run("delay grows linearly", func(t *testing.T) {
		start := time.Now()
		_ = Retry(context.Background(), 3, 20*time.Millisecond, func(int) error { return errors.New("x") })
		// 1*20ms + 2*20ms
		assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := Retry(ctx, 5, time.Second, func(int) error {
			calls++
			return errors.New("x")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})

	t.Run("permanent errors stop at once", func(t *testing.T) {
		boom := errors.New("senha inválida")
		calls := 0
		err := Retry(context.Background(), 5, time.Millisecond, func(int) error {
			calls++
			return backoff.Permanent(boom)
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("at least one attempt", func(t *testing.T) {
		calls := 0
		_ = Retry(context.Background(), 0, 0, func(int) error { calls++; return nil })
		assert.Equal(t, 1, calls)
	})
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{step: 10 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 20*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 30*time.Millisecond, b.NextBackOff())

	b.Reset()
	assert.Equal(t, 10*time.Millisecond, b.NextBackOff())
}

func TestFatalConnectError(t *testing.T) {
	wrapped := func(code string) error {
		return fmt.Errorf("failed to connect: %w", &pgconn.PgError{Code: code})
	}
	assert.True(t, fatalConnectError(wrapped("28P01")))
	assert.True(t, fatalConnectError(wrapped("3D000")))
	assert.False(t, fatalConnectError(wrapped("57P03")), "cannot_connect_now is retried")
	assert.False(t, fatalConnectError(errors.New("dial tcp: connection refused")))
	assert.False(t, fatalConnectError(nil))
}
