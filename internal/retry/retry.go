// Package retry provides a bounded retry-with-delay runner for remote calls.
package retry

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultAttempts is the retry budget applied when none is configured.
	DefaultAttempts = 3
	// DefaultDelay is the pause between failed attempts when none is configured.
	DefaultDelay = 500 * time.Millisecond
)

// Runner executes fallible operations with a bounded retry budget.
//
// Retried operations must tolerate repeated execution: a failed attempt that
// partially mutated remote state is not rolled back before the next attempt.
type Runner struct {
	attempts int
	delay    time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

// Option configures a Runner.
type Option func(*Runner)

// WithSleep replaces the inter-attempt sleep. Tests use it to observe delays
// without waiting in real time.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(r *Runner) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// New creates a Runner with the provided budget. Attempts below one and
// non-positive delays fall back to the defaults.
func New(attempts int, delay time.Duration, opts ...Option) *Runner {
	if attempts < 1 {
		attempts = DefaultAttempts
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	runner := &Runner{
		attempts: attempts,
		delay:    delay,
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(runner)
		}
	}
	return runner
}

// Attempts returns the configured retry budget.
func (r *Runner) Attempts() int {
	if r == nil {
		return DefaultAttempts
	}
	return r.attempts
}

// Delay returns the configured inter-attempt delay.
func (r *Runner) Delay() time.Duration {
	if r == nil {
		return DefaultDelay
	}
	return r.delay
}

// Do runs op until it succeeds or the attempt budget is exhausted, pausing
// between failed attempts. The label names the operation in wrapped errors.
// Context cancellation during the pause aborts the run immediately.
func (r *Runner) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	if op == nil {
		return fmt.Errorf("%s: operation is required", label)
	}
	attempts := DefaultAttempts
	delay := DefaultDelay
	sleep := sleepContext
	if r != nil {
		attempts = r.attempts
		delay = r.delay
		sleep = r.sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < attempts {
			if err := sleep(ctx, delay); err != nil {
				return fmt.Errorf("%s: %w", label, err)
			}
		}
	}
	return fmt.Errorf("%s after %d attempts: %w", label, attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
