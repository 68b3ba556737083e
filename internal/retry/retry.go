package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Outcome tags how an attempt sequence ended, replacing the per-script
// printed-string handling of the legacy tools.
type Outcome int

const (
	// Succeeded means fn returned nil.
	Succeeded Outcome = iota
	// Exhausted means every attempt failed with a retryable error.
	Exhausted
	// Fatal means fn returned a non-retryable error.
	Fatal
	// Canceled means the context ended before an attempt could succeed.
	Canceled
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case Fatal:
		return "fatal"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Permanent wraps an error to mark it non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Policy controls attempt count and backoff shape.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultPolicy matches the delays the legacy scripts converged on.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   5 * time.Second,
		MaxDelay:    2 * time.Minute,
		Jitter:      true,
	}
}

// Result carries the final outcome, the last error, and how many attempts ran.
type Result struct {
	Outcome  Outcome
	Err      error
	Attempts int
}

// Do runs fn until it succeeds, returns a permanent error, exhausts the
// policy, or the context ends. Backoff doubles per attempt from BaseDelay,
// capped at MaxDelay, with up to 50% jitter when enabled.
func Do(ctx context.Context, policy Policy, fn func(ctx context.Context) error) Result {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Outcome: Canceled, Err: err, Attempts: attempt - 1}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return Result{Outcome: Succeeded, Attempts: attempt}
		}
		if IsPermanent(lastErr) {
			return Result{Outcome: Fatal, Err: lastErr, Attempts: attempt}
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return Result{Outcome: Canceled, Err: lastErr, Attempts: attempt}
		}

		if attempt == policy.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return Result{Outcome: Canceled, Err: ctx.Err(), Attempts: attempt}
		case <-time.After(backoff(policy, attempt)):
		}
	}

	return Result{
		Outcome:  Exhausted,
		Err:      fmt.Errorf("all %d attempts failed: %w", policy.MaxAttempts, lastErr),
		Attempts: policy.MaxAttempts,
	}
}

func backoff(policy Policy, attempt int) time.Duration {
	delay := policy.BaseDelay << (attempt - 1)
	if policy.MaxDelay > 0 && delay > policy.MaxDelay {
		delay = policy.MaxDelay
	}
	if policy.Jitter {
		// Int63n panics on 0, which a sub-2ns delay would produce.
		if half := int64(delay) / 2; half > 0 {
			delay += time.Duration(rand.Int63n(half))
		}
	}
	return delay
}
