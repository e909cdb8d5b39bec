package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"sevadesk/internal/syncerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryPolicy(attempts int) *RetryPolicy {
	cfg := testConfig("unused")
	cfg.RetryMaxAttempts = attempts
	return NewRetryPolicy(cfg)
}

func transientErr() error {
	return &syncerr.TransportError{Kind: syncerr.TransportTimeout, Err: errors.New("timed out")}
}

func TestRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := testRetryPolicy(3).Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryAbsorbsTransientFailures(t *testing.T) {
	calls := 0
	err := testRetryPolicy(5).Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transientErr()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnFatalError(t *testing.T) {
	fatal := &syncerr.ValidationError{Field: "name", Reason: "required"}

	calls := 0
	err := testRetryPolicy(5).Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return fatal
	})

	assert.Equal(t, 1, calls)
	var ve *syncerr.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestRetryExhaustsBudgetIntoFinalError(t *testing.T) {
	calls := 0
	err := testRetryPolicy(3).Run(context.Background(), "op", func(ctx context.Context) error {
		calls++
		return transientErr()
	})

	assert.Equal(t, 3, calls)

	var fe *syncerr.FinalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 3, fe.Attempts)

	var te *syncerr.TransportError
	assert.ErrorAs(t, fe.Cause, &te)
}

func TestRetryAbandonsBackoffOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := testRetryPolicy(5).Run(ctx, "op", func(ctx context.Context) error {
		calls++
		return transientErr()
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestNextDelayGrowsExponentiallyWithinJitterBounds(t *testing.T) {
	cfg := testConfig("unused")
	cfg.RetryBaseDelayMS = 500
	cfg.RetryMaxDelayMS = 30_000
	policy := NewRetryPolicy(cfg)

	base := 500 * time.Millisecond
	maxDelay := 30 * time.Second

	for attempt := 0; attempt < 10; attempt++ {
		expected := base << uint(attempt)
		if expected <= 0 || expected > maxDelay {
			expected = maxDelay
		}
		for i := 0; i < 20; i++ {
			delay := policy.NextDelay(attempt)
			assert.GreaterOrEqual(t, delay, expected, "attempt %d", attempt)
			assert.Less(t, delay, expected+base, "attempt %d", attempt)
		}
	}
}

func TestNextDelayCapsAtMax(t *testing.T) {
	cfg := testConfig("unused")
	cfg.RetryBaseDelayMS = 500
	cfg.RetryMaxDelayMS = 30_000
	policy := NewRetryPolicy(cfg)

	// Well past any representable shift; must not overflow below the cap.
	delay := policy.NextDelay(80)
	assert.GreaterOrEqual(t, delay, 30*time.Second)
	assert.Less(t, delay, 30*time.Second+500*time.Millisecond)
}
