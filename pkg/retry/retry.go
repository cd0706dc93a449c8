// Package retry re-runs an operation with capped exponential backoff.
//
// Two callers use it: the notification dispatcher, where a channel marks
// transient provider failures with Retryable, and the write path, where a
// command that lost an optimistic-concurrency race reloads and tries again.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

type verdict int

const (
	again verdict = iota + 1
	stop
)

// marked carries a retry verdict on top of the original error.
type marked struct {
	err     error
	verdict verdict
}

func (m *marked) Error() string { return m.err.Error() }
func (m *marked) Unwrap() error { return m.err }

// Retryable marks err as transient.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, verdict: again}
}

// Permanent marks err as final even under a RetryIf predicate that would
// otherwise accept it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &marked{err: err, verdict: stop}
}

func verdictOf(err error) (verdict, error) {
	var m *marked
	if errors.As(err, &m) {
		return m.verdict, m.err
	}
	return 0, err
}

// IsRetryable reports whether err was marked with Retryable.
func IsRetryable(err error) bool {
	v, _ := verdictOf(err)
	return v == again
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier holds one backoff policy. It is immutable and safe to share.
type Retrier struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	jitter   float64
	retryIf  func(error) bool
	onRetry  func(attempt int, err error, delay time.Duration)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxAttempts sets the total number of calls, the first one included.
func WithMaxAttempts(n int) Option {
	return func(r *Retrier) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithInitialDelay sets the pause after the first failure. Each further
// pause doubles up to the max delay.
func WithInitialDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.initial = d
		}
	}
}

// WithMaxDelay caps a single pause.
func WithMaxDelay(d time.Duration) Option {
	return func(r *Retrier) {
		if d > 0 {
			r.max = d
		}
	}
}

// WithJitter spreads each pause by ±j of its length, 0 ≤ j ≤ 1.
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		if j >= 0 && j <= 1 {
			r.jitter = j
		}
	}
}

// WithRetryIf replaces the default "only Retryable errors" rule.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) { r.retryIf = fn }
}

// WithOnRetry is called before every pause.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(r *Retrier) { r.onRetry = fn }
}

// New creates a Retrier: 3 attempts, 100ms doubling to 5s, 10% jitter.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		attempts: 3,
		initial:  100 * time.Millisecond,
		max:      5 * time.Second,
		jitter:   0.1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConflictRetrier re-runs read-modify-write cycles that lost a revision
// check. isConflict recognizes the storage conflict error.
func ConflictRetrier(isConflict func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(4),
		WithInitialDelay(15*time.Millisecond),
		WithMaxDelay(150*time.Millisecond),
		WithJitter(0.3),
		WithRetryIf(isConflict),
	)
}

// Do calls op until it succeeds, returns an error that is not retried, or
// the attempts run out. Markers are stripped from the returned error.
// A cancelled context ends the loop with the last operation error, or with
// ctx.Err() when op never ran.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}

		v, err := verdictOf(op(ctx))
		if err == nil {
			return nil
		}
		last = err

		if v == stop || !r.shouldRetry(v, err) || attempt >= r.attempts {
			return err
		}

		delay := r.backoff(attempt)
		if r.onRetry != nil {
			r.onRetry(attempt, err, delay)
		}

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return last
		case <-t.C:
		}
	}
}

func (r *Retrier) shouldRetry(v verdict, err error) bool {
	if r.retryIf != nil {
		return r.retryIf(err)
	}
	return v == again
}

// backoff returns initial·2^(attempt-1), capped and jittered.
func (r *Retrier) backoff(attempt int) time.Duration {
	d := r.initial
	for i := 1; i < attempt && d < r.max; i++ {
		d *= 2
	}
	if d > r.max {
		d = r.max
	}
	if r.jitter > 0 {
		spread := float64(d) * r.jitter
		d += time.Duration(spread * (2*rand.Float64() - 1))
	}
	if d < 0 {
		return 0
	}
	return d
}

// Do runs op with a Retrier built from opts.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}
