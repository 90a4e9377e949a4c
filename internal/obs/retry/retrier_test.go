package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, Policy{Name: "test", Attempts: 5, Backoff: ExpoJitter{Base: time.Millisecond}})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	var exhausted error
	err := Do(context.Background(), func() error {
		calls++
		return fatal
	}, Policy{
		Attempts:  5,
		Retryable: func(err error) bool { return !errors.Is(err, fatal) },
		OnExhaust: func(err error) { exhausted = err },
	})

	assert.ErrorIs(t, err, fatal)
	assert.ErrorIs(t, exhausted, fatal)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, Policy{Attempts: 3, Backoff: ExpoJitter{Base: time.Hour}})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestExpoJitter_Caps(t *testing.T) {
	b := ExpoJitter{Base: 100 * time.Millisecond, Max: time.Second}
	assert.Equal(t, 100*time.Millisecond, b.Next(0))
	assert.Equal(t, 400*time.Millisecond, b.Next(2))
	assert.Equal(t, time.Second, b.Next(10))
}

func TestReasonerPolicy_NeverRetriesCancellation(t *testing.T) {
	p := ReasonerPolicy(nil, 3, nil)
	assert.False(t, p.Retryable(context.DeadlineExceeded))
	assert.True(t, p.Retryable(errors.New("overloaded")))
}

func TestDo_ZeroBackoffStillHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, func() error {
		calls++
		cancel()
		return errors.New("transient")
	}, Policy{Attempts: 3, Backoff: Constant(0)})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
