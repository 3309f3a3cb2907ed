// Package policy defines the retry policy shared by every retried mailbox
// operation per CONTRACT_MAILBOX.md.
//
// One policy shape covers request submission, response reads and file
// permission retries:
//   - MaxAttempts bounds the total number of attempts (first try included)
//   - BaseDelay is the wait before the second attempt
//   - Multiplier grows the wait between consecutive attempts
package policy

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pithecene-io/courier/types"
)

// Defaults used by the requester for submission and response reads.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultMultiplier  = 2.0
)

// Retry is an exponential-backoff retry policy.
// The zero value performs a single attempt with no delay.
type Retry struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// Default returns the policy used for submission and response reads:
// 3 attempts, 100ms base delay, doubling.
func Default() Retry {
	return Retry{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
	}
}

// Validate checks that the policy is usable.
func (r Retry) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be >= 1, got %d", r.MaxAttempts)
	}
	if r.BaseDelay < 0 {
		return fmt.Errorf("base delay must be >= 0, got %s", r.BaseDelay)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("multiplier must be >= 1, got %g", r.Multiplier)
	}
	return nil
}

// attempts returns the effective attempt budget.
func (r Retry) attempts() int {
	if r.MaxAttempts < 1 {
		return 1
	}
	return r.MaxAttempts
}

// Delay returns the wait before the given retry.
// retry is 1 for the wait between the first and second attempt.
func (r Retry) Delay(retry int) time.Duration {
	if retry < 1 || r.BaseDelay <= 0 {
		return 0
	}
	mult := r.Multiplier
	if mult < 1 {
		mult = 1
	}
	return time.Duration(float64(r.BaseDelay) * math.Pow(mult, float64(retry-1)))
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that Do returns it immediately without retrying.
// Returns nil if err is nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a Permanent error, or the attempt
// budget runs out. attempt is 1-based. Waits between attempts (never before
// the first) follow Delay and are interrupted by ctx.
//
// Errors:
//   - the unwrapped error of a Permanent failure, as returned by fn
//   - ctx.Err() wrapped, if ctx ends before or between attempts
//   - *types.ExhaustedError wrapping the last error when attempts run out
func (r Retry) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := r.attempts()

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry canceled: %w", err)
		}

		// Backoff before retries (not before first attempt)
		if i > 0 {
			if err := Sleep(ctx, r.Delay(i)); err != nil {
				return fmt.Errorf("retry canceled during backoff: %w", err)
			}
		}

		lastErr = fn(i + 1)
		if lastErr == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}
	}

	return &types.ExhaustedError{Attempts: attempts, Err: lastErr}
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
