package retry

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theakshaypant/calbridge/internal/core"
)

// testPolicy records sleeps instead of performing them and zeroes the
// jitter so delays are deterministic.
func testPolicy(delays *[]time.Duration) Policy {
	return DefaultPolicy().
		WithSleep(func(_ context.Context, d time.Duration) error {
			*delays = append(*delays, d)
			return nil
		}).
		WithJitter(func(time.Duration) time.Duration { return 0 })
}

func TestRetriesUntilSuccess(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), testPolicy(&delays), "fetch", func(context.Context) error {
		calls++
		if calls < 4 {
			return errors.Mark(errors.New("throttled"), core.ErrRateLimited)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 4, calls, "3 retryable failures + 1 success = 4 calls")
	require.Len(t, delays, 3)
	for i := 1; i < len(delays); i++ {
		assert.GreaterOrEqual(t, delays[i], delays[i-1], "delays must be monotonically non-decreasing")
	}
}

func TestTerminalErrorDoesNotRetry(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), testPolicy(&delays), "update", func(context.Context) error {
		calls++
		return errors.Mark(errors.New("bad request"), core.ErrValidation)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls, "a 400-class error must not be retried")
	assert.Empty(t, delays, "no delay before a terminal failure propagates")
}

func TestExhaustionReturnsLastError(t *testing.T) {
	var delays []time.Duration
	calls := 0

	err := Do(context.Background(), testPolicy(&delays), "fetch", func(context.Context) error {
		calls++
		return errors.Mark(errors.Newf("attempt %d", calls), core.ErrUnavailable)
	})

	require.Error(t, err)
	assert.Equal(t, defaultMaxRetries+1, calls)
	assert.Len(t, delays, defaultMaxRetries)
	assert.Contains(t, err.Error(), "attempt 5", "the last error is the one returned")
}

func TestBackoffIsCapped(t *testing.T) {
	var delays []time.Duration
	p := testPolicy(&delays)
	p.MaxRetries = 10

	_ = Do(context.Background(), p, "fetch", func(context.Context) error {
		return errors.Mark(errors.New("down"), core.ErrUnavailable)
	})

	require.NotEmpty(t, delays)
	for _, d := range delays {
		assert.LessOrEqual(t, d, p.MaxBackoff)
	}
	assert.Equal(t, p.MaxBackoff, delays[len(delays)-1])
}

func TestJitterStaysWithinFraction(t *testing.T) {
	// The real jitter source must stay within 30% of the backoff.
	for i := 0; i < 100; i++ {
		j := randomJitter(300 * time.Millisecond)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 300*time.Millisecond)
	}
	assert.Equal(t, time.Duration(0), randomJitter(0))
}

func TestCancelledContextStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	p := DefaultPolicy().
		WithJitter(func(time.Duration) time.Duration { return 0 }).
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		})

	err := Do(ctx, p, "fetch", func(context.Context) error {
		calls++
		return errors.Mark(errors.New("down"), core.ErrNetwork)
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, calls)
}

func TestDoValue(t *testing.T) {
	var delays []time.Duration
	calls := 0

	got, err := DoValue(context.Background(), testPolicy(&delays), "list", func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.Mark(errors.New("throttled"), core.ErrRateLimited)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 2, calls)
}
