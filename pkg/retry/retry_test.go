package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errConflict = errors.New("conflict")

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
}

func TestDo_RetriesRetryableErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errConflict)
		}
		return nil
	}, fast()...)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPlainError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errConflict
	}, fast()...)

	assert.ErrorIs(t, err, errConflict)
	assert.Equal(t, 1, calls)
}

func TestDo_PermanentBeatsPredicate(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Permanent(errConflict)
	}, append(fast(), WithRetryIf(func(error) bool { return true }))...)

	assert.Equal(t, errConflict, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttemptsAndStripsMarker(t *testing.T) {
	calls := 0
	var delays []time.Duration
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Retryable(errConflict)
	}, append(fast(), WithMaxAttempts(2), WithOnRetry(func(_ int, _ error, d time.Duration) {
		delays = append(delays, d)
	}))...)

	assert.Equal(t, errConflict, err)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 2, calls)
	assert.Equal(t, []time.Duration{time.Millisecond}, delays)
}

func TestConflictRetrier_UsesPredicate(t *testing.T) {
	calls := 0
	r := ConflictRetrier(func(err error) bool { return errors.Is(err, errConflict) })

	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls == 1 {
			return errConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	r := New(WithInitialDelay(10*time.Millisecond), WithMaxDelay(35*time.Millisecond), WithJitter(0))

	assert.Equal(t, 10*time.Millisecond, r.backoff(1))
	assert.Equal(t, 20*time.Millisecond, r.backoff(2))
	assert.Equal(t, 35*time.Millisecond, r.backoff(3))
	assert.Equal(t, 35*time.Millisecond, r.backoff(10))
}

func TestBackoff_JitterStaysInBand(t *testing.T) {
	r := New(WithInitialDelay(100*time.Millisecond), WithJitter(0.5))
	for i := 0; i < 50; i++ {
		d := r.backoff(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
