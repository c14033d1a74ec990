package transport

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds the retry loop. With Backoff the sleep before
// attempt n+1 is BaseDelay * 2^(n-1); without it every sleep is
// BaseDelay.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Backoff     bool

	// sleep is swapped out by tests.
	sleep func(context.Context, time.Duration) error
}

func DefaultRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Second, Backoff: true}
}

// Retry invokes op up to MaxAttempts times, sleeping between attempts,
// and surfaces the final failure only once attempts are exhausted.
func Retry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.sleep == nil {
		cfg.sleep = Delay
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}

		if attempt < cfg.MaxAttempts {
			wait := cfg.BaseDelay
			if cfg.Backoff {
				wait = cfg.BaseDelay << (attempt - 1)
			}
			if err := cfg.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// Delay sleeps for d, or returns early with the context's error.
func Delay(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
