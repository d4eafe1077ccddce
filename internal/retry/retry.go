// Package retry wraps remote calls with jittered exponential backoff.
// Rate limits (429) and server errors (5xx) are retried; everything
// else is rethrown immediately.
package retry

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/theakshaypant/calbridge/internal/core"
)

const (
	defaultMaxRetries  = 4
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 16 * time.Second
	defaultMultiplier  = 2.0
	// Jitter adds up to this fraction of the current backoff.
	jitterFraction = 0.3
)

// Policy controls the backoff schedule. The zero value is not usable;
// start from DefaultPolicy.
type Policy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Multiplier  float64
	// sleep and jitter are injection points for tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
	logger *slog.Logger
}

// DefaultPolicy returns the schedule used for all provider calls.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  defaultMaxRetries,
		BaseBackoff: defaultBaseBackoff,
		MaxBackoff:  defaultMaxBackoff,
		Multiplier:  defaultMultiplier,
	}
}

// WithSleep replaces the sleep function. Tests use this to run the
// schedule without waiting.
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// WithJitter replaces the jitter source.
func (p Policy) WithJitter(jitter func(max time.Duration) time.Duration) Policy {
	p.jitter = jitter
	return p
}

// WithLogger attaches a logger for retry diagnostics.
func (p Policy) WithLogger(logger *slog.Logger) Policy {
	p.logger = logger
	return p
}

// Do runs fn, retrying on retryable failures per the policy. The label
// only feeds logging. The last error is returned once attempts are
// exhausted; non-retryable errors return on the first occurrence with
// no delay.
func Do(ctx context.Context, p Policy, label string, fn func(ctx context.Context) error) error {
	logger := p.logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	jitter := p.jitter
	if jitter == nil {
		jitter = randomJitter
	}

	backoff := p.BaseBackoff
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !core.Retryable(lastErr) {
			return lastErr
		}
		if attempt >= p.MaxRetries {
			logger.Warn("retries exhausted", "op", label, "attempts", attempt+1, "error", lastErr)
			return lastErr
		}

		delay := backoff + jitter(time.Duration(float64(backoff)*jitterFraction))
		if delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
		logger.Debug("retrying after backoff", "op", label, "attempt", attempt+1, "delay", delay, "error", lastErr)
		if err := sleep(ctx, delay); err != nil {
			return errors.CombineErrors(err, lastErr)
		}

		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

// DoValue is Do for calls that produce a result.
func DoValue[T any](ctx context.Context, p Policy, label string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := Do(ctx, p, label, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
