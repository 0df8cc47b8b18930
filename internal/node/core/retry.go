package core

import (
	"context"
	"time"
)

// Retry runs fn up to d.MaxAttempts times, sleeping base*factor^k
// milliseconds (scaled by Jitter when UseJitter) between attempts, and
// returns the first success or the last error. It is the one
// implementation of the exponential-backoff retry strategy the design
// notes call for: view calls, transaction calls, commit-partial-signature
// delivery and DKG phase polling all share it.
func (d ExponentialBackoffRetryDescriptor) Retry(ctx context.Context, fn func() error) error {
	return d.RetryIf(ctx, fn, func(error) bool { return true })
}

// RetryIf behaves like Retry but only retries when shouldRetry(err) is
// true; a non-retryable error is returned immediately. This is how the
// chain client distinguishes a committed on-chain failure
// (retry_on_transaction_fail=false) from a transient RPC error.
func (d ExponentialBackoffRetryDescriptor) RetryIf(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(d.Base) * time.Duration(pow(d.Factor, attempt)) * time.Millisecond
			if d.UseJitter {
				wait = Jitter(wait)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !shouldRetry(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func pow(base uint64, exp int) uint64 {
	result := uint64(1)
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
