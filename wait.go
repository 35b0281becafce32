package tether

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/capitan"
)

// WaitForValue blocks until the signal's value equals match or timeout
// elapses. Zero timeout waits forever. On expiry the returned
// TimeoutError embeds the last observed value and the match criterion.
func WaitForValue[T comparable](ctx context.Context, sig *SignalR[T], match T, timeout time.Duration) error {
	return WaitForMatch(ctx, sig,
		func(v T) bool { return v == match },
		fmt.Sprintf("%v", match),
		timeout)
}

// WaitForMatch blocks until the signal's value satisfies match or timeout
// elapses. criterion describes the predicate in the timeout diagnostic.
// Zero timeout waits forever. The feeding subscription is released on
// every exit path, including timeout and cancellation.
func WaitForMatch[T any](ctx context.Context, sig *SignalR[T], match func(T) bool, criterion string, timeout time.Duration) error {
	obs, err := ObserveValue(sig, 0)
	if err != nil {
		return err
	}
	defer obs.Stop()

	waitCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		waitCtx, cancel = sig.clock.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var last T
	var hasLast bool
	for {
		v, err := obs.Next(waitCtx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				capitan.Emit(ctx, WaitTimedOut,
					KeySignal.Field(sig.Name()),
					KeyCriterion.Field(criterion),
					KeyTimeout.Field(timeout),
				)
				return &TimeoutError{
					Signal:    sig.Name(),
					Criterion: criterion,
					Last:      last,
					HasLast:   hasLast,
					Wait:      timeout,
				}
			}
			return err
		}
		last, hasLast = v, true
		if match(v) {
			return nil
		}
	}
}

// SetAndWaitForValue issues a set without awaiting it, waits for the
// signal's own readback to report the value, and returns the set's
// handle. "Write accepted" (readback matches, bounded by confirmTimeout)
// and "write settled" (the handle resolves, bounded by statusTimeout) are
// distinct events; callers must check both. The confirm wait's timeout
// surfaces here; the write's own failure surfaces only from the handle.
func SetAndWaitForValue[T comparable](ctx context.Context, sig *SignalRW[T], value T, confirmTimeout, statusTimeout time.Duration) (*Status, error) {
	status := sig.put(ctx, &value, statusTimeout)
	if err := WaitForValue(ctx, &sig.SignalR, value, confirmTimeout); err != nil {
		return status, err
	}
	return status, nil
}
