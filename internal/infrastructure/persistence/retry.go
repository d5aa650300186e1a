package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// linearBackOff waits n*step before attempt n+1, without jitter
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() { b.n = 0 }

// Retry calls fn up to attempts times with a linearly growing delay.
// It stops early when ctx is cancelled or fn returns a backoff.Permanent error.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, fn(attempt)
	},
		backoff.WithBackOff(&linearBackOff{step: delay}),
		backoff.WithMaxTries(uint(attempts)),
		backoff.WithMaxElapsedTime(0),
	)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return fmt.Errorf("retry aborted after %d attempts: %w", attempt, err)
	default:
		return fmt.Errorf("gave up after %d attempts: %w", attempt, err)
	}
}
