package service

import (
	"context"
	"time"

	"github.com/spec-kit/movie-rating-service/internal/config"
)

// RetryPolicy bounds the optimistic-lock retry loop: MaxAttempts total
// attempts with exponential backoff between them. Only version conflicts are
// retryable; precondition and validation failures never re-enter the loop.
type RetryPolicy struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	BackoffMultiplier float64
}

// DefaultRetryPolicy mirrors the shipped configuration: 3 attempts, 100ms
// initial delay, doubling each time.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		InitialDelay:      100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// RetryPolicyFromConfig builds a policy from env configuration, falling back
// to defaults for non-positive values.
func RetryPolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelayMs > 0 {
		policy.InitialDelay = cfg.InitialDelay()
	}
	if cfg.BackoffMultiplier > 0 {
		policy.BackoffMultiplier = cfg.BackoffMultiplier
	}
	return policy
}

// DelayFor returns the backoff delay to sleep after the given failed attempt
// (1-based): InitialDelay, InitialDelay*multiplier, and so on.
func (p RetryPolicy) DelayFor(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.BackoffMultiplier)
	}
	return delay
}

// sleepFn suspends the calling goroutine only; it returns early with the
// context error when the caller is cancelled mid-backoff.
type sleepFn func(ctx context.Context, d time.Duration) error

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
