// Package poll repeats a status check with capped exponential backoff until
// the observed state is terminal.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is wrapped by every *TimeoutError
var ErrTimeout = errors.New("poll timed out")

// TimeoutError reports that polling gave up before a terminal state
type TimeoutError struct {
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

func (e *TimeoutError) Error() string {
	if e.LastErr != nil {
		return fmt.Sprintf("poll timed out after %d attempts (%s): last error: %v", e.Attempts, e.Elapsed.Round(time.Millisecond), e.LastErr)
	}
	return fmt.Sprintf("poll timed out after %d attempts (%s)", e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Unwrap() []error {
	if e.LastErr == nil {
		return []error{ErrTimeout}
	}
	return []error{ErrTimeout, e.LastErr}
}

// Policy controls the delay between checks
type Policy struct {
	Base        time.Duration
	Factor      float64
	Max         time.Duration
	MaxAttempts int
	// Deadline bounds the total polling time when non-zero
	Deadline time.Duration
}

// DefaultPolicy waits 500ms, growing by 1.5x up to 3s, for 60 attempts
func DefaultPolicy() Policy {
	return Policy{
		Base:        500 * time.Millisecond,
		Factor:      1.5,
		Max:         3 * time.Second,
		MaxAttempts: 60,
	}
}

// Delay returns the wait after the given attempt (1-based)
func (p Policy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * p.Factor)
		if p.Max > 0 && d >= p.Max {
			return p.Max
		}
	}
	if p.Max > 0 && d > p.Max {
		return p.Max
	}
	return d
}

func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Base <= 0 {
		p.Base = def.Base
	}
	if p.Factor < 1 {
		p.Factor = 1
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	return p
}

// Result is what a check observed
type Result[T any] struct {
	Value T
	Done  bool
}

// Done wraps a terminal value
func Done[T any](v T) Result[T] {
	return Result[T]{Value: v, Done: true}
}

// Pending signals that another check is needed
func Pending[T any]() Result[T] {
	return Result[T]{}
}

// permanentError stops polling immediately
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as terminal. Until returns it unwrapped without retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Until calls check until it reports Done, returns a Permanent error, the
// context ends or the policy budget is spent. Other check errors are
// remembered and polling continues.
func Until[T any](ctx context.Context, check func(ctx context.Context) (Result[T], error), policy Policy) (T, error) {
	var zero T
	policy = policy.normalized()
	start := time.Now()

	if policy.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, policy.Deadline)
		defer cancel()
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		res, err := check(ctx)
		if err != nil {
			var perm *permanentError
			if errors.As(err, &perm) {
				return zero, perm.err
			}
			lastErr = err
		} else if res.Done {
			return res.Value, nil
		}

		if attempt >= policy.MaxAttempts {
			return zero, &TimeoutError{Attempts: attempt, Elapsed: time.Since(start), LastErr: lastErr}
		}

		if ctx.Err() != nil {
			return zero, stopped(ctx, attempt, start, lastErr)
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, stopped(ctx, attempt, start, lastErr)
		case <-timer.C:
		}
	}
}

func stopped(ctx context.Context, attempts int, start time.Time, lastErr error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Attempts: attempts, Elapsed: time.Since(start), LastErr: lastErr}
	}
	return ctx.Err()
}
