// Package fetch wraps flaky network operations with bounded exponential
// backoff. Only errors marked transient via domain.Transient are retried;
// structural mismatches and other permanent failures surface immediately.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// Config bounds the retry loop: delay = BaseDelay × 2^attempt, capped at
// MaxDelay, for at most Attempts tries.
type Config struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultConfig matches the upstream endpoints' observed flakiness: short
// first delay, capped well under a scheduler interval.
func DefaultConfig() Config {
	return Config{
		Attempts:  5,
		BaseDelay: 200 * time.Millisecond,
		MaxDelay:  5 * time.Second,
	}
}

// Do runs op, retrying transient failures per cfg. The last error is
// returned once attempts are exhausted, still marked transient so callers
// can distinguish it from structural failure.
func Do(ctx context.Context, cfg Config, logger *slog.Logger, op func(context.Context) error) error {
	_, err := DoValue(ctx, cfg, logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, logger *slog.Logger, op func(context.Context) (T, error)) (T, error) {
	var zero T
	backoff := cfg.BaseDelay

	var err error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		var v T
		v, err = op(ctx)
		if err == nil {
			return v, nil
		}
		if !domain.IsTransient(err) || ctx.Err() != nil {
			return zero, err
		}
		if attempt == cfg.Attempts {
			break
		}

		logger.Warn("transient failure, backing off",
			"attempt", attempt,
			"max_attempts", cfg.Attempts,
			"backoff", backoff,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return zero, ctx.Err()
		}
		backoff = nextBackoff(backoff, cfg.MaxDelay)
	}
	return zero, domain.Transient(fmt.Errorf("after %d attempts: %w", cfg.Attempts, err))
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
