package utils

import (
    "context"
    "errors"
    "time"
)

// RaceOutcome tells which side of a Race settled first.
type RaceOutcome int

const (
    // RaceResolved means fn returned before the timer fired.
    RaceResolved RaceOutcome = iota
    // RaceTimedOut means the timer fired first; fn's result is discarded.
    RaceTimedOut
    // RaceCancelled means ctx was done before either side settled.
    RaceCancelled
)

// ErrTimeout is the error returned alongside RaceTimedOut.
var ErrTimeout = errors.New("operation timed out")

// Race runs fn concurrently with a timer and returns whichever settles
// first.  The loser is never awaited: fn keeps running in its goroutine and
// its result lands in a buffered channel nobody reads.  fn receives ctx
// unchanged, so cancelling ctx is the only way to stop it early.
func Race[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, RaceOutcome, error) {
    type result struct {
        v   T
        err error
    }
    done := make(chan result, 1)
    go func() {
        v, err := fn(ctx)
        done <- result{v: v, err: err}
    }()

    timer := time.NewTimer(timeout)
    defer timer.Stop()

    var zero T
    select {
    case r := <-done:
        return r.v, RaceResolved, r.err
    case <-timer.C:
        return zero, RaceTimedOut, ErrTimeout
    case <-ctx.Done():
        return zero, RaceCancelled, ctx.Err()
    }
}
