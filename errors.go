package tether

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Contract violations and defects surfaced by the package.
var (
	// ErrAlreadyMonitored is returned by SetCallback when a push
	// subscription is already installed on the backend.
	ErrAlreadyMonitored = errors.New("backend already has a callback installed")

	// ErrNotMonitored is returned when CacheRequire is used on a signal
	// that has no live cache.
	ErrNotMonitored = errors.New("signal is not being monitored")

	// ErrMonitorBroken reports an internal invariant failure: the cache
	// signalled readiness without a stored reading. This is a defect in
	// the backend or the cache, never a user error.
	ErrMonitorBroken = errors.New("monitor delivered readiness without data")

	// ErrObservationStopped is returned by Observation.Next after Stop.
	ErrObservationStopped = errors.New("observation stopped")
)

// ConnectionError reports a backend that could not be reached within its
// connect window.
type ConnectionError struct {
	Source string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Source, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError reports a bounded wait that expired. For value waits it
// embeds the match criterion and the last observed value so the failure is
// actionable without re-running.
//
// TimeoutError unwraps to context.DeadlineExceeded.
type TimeoutError struct {
	// Signal is the name or source of the signal being waited on.
	Signal string

	// Criterion describes what the wait was matching, empty for plain
	// operation timeouts.
	Criterion string

	// Last is the last observed value; meaningful only when HasLast is
	// true (no value may have arrived at all).
	Last    any
	HasLast bool

	// Wait is the configured bound that elapsed.
	Wait time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Criterion != "" {
		last := "none"
		if e.HasLast {
			last = fmt.Sprintf("%v", e.Last)
		}
		return fmt.Sprintf("%s didn't match %s in %v, last value %s",
			e.Signal, e.Criterion, e.Wait, last)
	}
	return fmt.Sprintf("%s: timed out after %v", e.Signal, e.Wait)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }
