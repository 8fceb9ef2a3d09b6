package reconcile

import (
	"context"
	"time"
)

// Retry runs fn up to attempts times, doubling the wait from base between
// tries. Only transient errors are retried; anything else returns
// immediately. A cancelled context wins over the remaining attempts.
func Retry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	wait := base
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}
