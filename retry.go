package openpix

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"

	"github.com/sethvargo/go-retry"
)

// RetryPolicy configures the bounded exponential backoff applied to
// search-index calls.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries uint64
	// BaseWait is the first backoff interval.
	BaseWait time.Duration
	// MaxWait caps the backoff growth.
	MaxWait time.Duration
	// Factor multiplies the wait between attempts. Zero (or 2) selects the
	// doubling backoff.
	Factor float64
}

// DefaultRetryPolicy mirrors the transport defaults used across the stores.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 4,
		BaseWait:   250 * time.Millisecond,
		MaxWait:    5 * time.Second,
		Factor:     2,
	}
}

// backoff builds the geometric ladder for policy. The library's exponential
// backoff is fixed at 2x, so any other factor gets a hand-built one.
func backoff(policy RetryPolicy) retry.Backoff {
	if policy.Factor <= 0 || policy.Factor == 2 {
		return retry.NewExponential(policy.BaseWait)
	}
	wait := float64(policy.BaseWait)
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d := time.Duration(wait)
		wait *= policy.Factor
		return d, false
	})
}

// Retry executes task with exponential backoff per policy. Each failed attempt
// is logged with the remaining retry count. When retries are exhausted the
// original error is returned unmodified and gaveUpTask, when not nil, is
// invoked.
func Retry(ctx context.Context, policy RetryPolicy, name string, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	remaining := policy.MaxRetries
	b := retry.WithCappedDuration(policy.MaxWait, backoff(policy))
	err := retry.Do(ctx, retry.WithMaxRetries(policy.MaxRetries, b), func(ctx context.Context) error {
		err := task(ctx)
		if err == nil {
			return nil
		}
		if !ShouldRetry(err) {
			return err
		}
		log.Warn(fmt.Sprintf("%s failed: %v, retries remaining: %d", name, err, remaining))
		if remaining > 0 {
			remaining--
		}
		return retry.RetryableError(err)
	})
	if err != nil {
		log.Warn(err.Error() + ", gave up")
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error is retryable (non-nil and not a known
// permanent failure).
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	// Context cancellations/timeouts are permanent from the caller's POV.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Store clients mark request-shaped failures (4xx and kin) permanent.
	var pe interface{ Permanent() bool }
	if errors.As(err, &pe) && pe.Permanent() {
		return false
	}
	return true
}
