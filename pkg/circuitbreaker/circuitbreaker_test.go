package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errProvider = errors.New("provider down")

func fail(context.Context) error { return errProvider }
func ok(context.Context) error   { return nil }

func TestCircuitBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	var transitions []State
	cb := New("email",
		WithFailureThreshold(2),
		WithTimeout(time.Minute),
		WithClock(func() time.Time { return now }),
		WithOnStateChange(func(_ string, _, to State) { transitions = append(transitions, to) }),
	)

	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errProvider)
	assert.Equal(t, StateClosed, cb.State())
	assert.ErrorIs(t, cb.Execute(context.Background(), fail), errProvider)
	assert.Equal(t, StateOpen, cb.State())

	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrCircuitOpen)
	assert.EqualValues(t, 1, cb.Snapshot().Rejected)

	now = now.Add(2 * time.Minute)
	assert.NoError(t, cb.Execute(context.Background(), ok))
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, []State{StateOpen, StateHalfOpen, StateClosed}, transitions)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	cb := New("whatsapp", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(func() time.Time { return now }))

	_ = cb.Execute(context.Background(), fail)
	now = now.Add(2 * time.Second)
	_ = cb.Execute(context.Background(), fail)

	snap := cb.Snapshot()
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, now, snap.OpenedAt)
}

func TestCircuitBreaker_SingleTrialInHalfOpen(t *testing.T) {
	now := time.Date(2024, 3, 6, 9, 0, 0, 0, time.UTC)
	cb := New("whatsapp", WithFailureThreshold(1), WithTimeout(time.Second), WithClock(func() time.Time { return now }))
	_ = cb.Execute(context.Background(), fail)
	now = now.Add(2 * time.Second)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	assert.Eventually(t, func() bool { return cb.State() == StateHalfOpen }, time.Second, time.Millisecond)
	assert.ErrorIs(t, cb.Execute(context.Background(), ok), ErrTooManyRequests)

	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CanceledCallsDoNotCount(t *testing.T) {
	cb := New("email", WithFailureThreshold(1))

	err := cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, "email", cb.Name())
}

func TestCircuitBreaker_IsFailureFilter(t *testing.T) {
	cb := New("email", WithFailureThreshold(1), WithIsFailure(func(err error) bool { return !errors.Is(err, errProvider) }))

	_ = cb.Execute(context.Background(), fail)
	assert.Equal(t, StateClosed, cb.State())
	assert.EqualValues(t, 1, cb.Snapshot().Successes)
}
