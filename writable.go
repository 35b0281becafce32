package tether

import (
	"context"
	"time"

	"github.com/zoobzio/clockz"
)

// SignalW is a signal that can be set.
type SignalW[T any] struct {
	Signal[T]
}

// NewSignalW creates a write-only signal on the given backend.
func NewSignalW[T any](backend Backend[T], name string) *SignalW[T] {
	return &SignalW[T]{Signal: newSignal(backend, name)}
}

// Timeout sets the bound applied to every operation on this signal.
// Zero disables the bound.
func (s *SignalW[T]) Timeout(d time.Duration) *SignalW[T] {
	s.timeout = d
	return s
}

// Clock sets a custom clock for timeouts and timestamps.
func (s *SignalW[T]) Clock(clock clockz.Clock) *SignalW[T] {
	s.clock = clock
	return s
}

// Set issues a write and returns a handle to the in-flight operation,
// bounded by the signal's timeout. Await the handle to learn the write's
// outcome.
func (s *SignalW[T]) Set(ctx context.Context, value T) *Status {
	return s.put(ctx, &value, s.timeout)
}

// Location pairs the last commanded value with the last observed one.
// The two differ while a write is in flight.
type Location[T any] struct {
	Setpoint T
	Readback T
}

// SignalRW is a signal that can be both read and set.
type SignalRW[T any] struct {
	SignalR[T]
}

// NewSignalRW creates a read-write signal on the given backend.
func NewSignalRW[T any](backend Backend[T], name string) *SignalRW[T] {
	return &SignalRW[T]{SignalR: SignalR[T]{Signal: newSignal(backend, name)}}
}

// Timeout sets the bound applied to every operation on this signal.
// Zero disables the bound.
func (s *SignalRW[T]) Timeout(d time.Duration) *SignalRW[T] {
	s.timeout = d
	return s
}

// Clock sets a custom clock for timeouts and timestamps.
func (s *SignalRW[T]) Clock(clock clockz.Clock) *SignalRW[T] {
	s.clock = clock
	return s
}

// Set issues a write and returns a handle to the in-flight operation,
// bounded by the signal's timeout.
func (s *SignalRW[T]) Set(ctx context.Context, value T) *Status {
	return s.put(ctx, &value, s.timeout)
}

// Locate returns the setpoint and readback. The setpoint is read
// directly from the backend, never from the cache: the cache holds the
// last observed value, which lags the last commanded one during an
// in-flight write.
func (s *SignalRW[T]) Locate(ctx context.Context) (Location[T], error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()

	setpoint, err := s.backendRef().Setpoint(opCtx)
	if err != nil {
		var zero Location[T]
		return zero, s.opErr(err)
	}
	readback, err := s.Value(ctx, CacheInfer)
	if err != nil {
		var zero Location[T]
		return zero, err
	}
	return Location[T]{Setpoint: setpoint, Readback: readback}, nil
}

// SignalX is a signal that fires the backend's default action.
type SignalX[T any] struct {
	Signal[T]
}

// NewSignalX creates an action-only signal on the given backend.
func NewSignalX[T any](backend Backend[T], name string) *SignalX[T] {
	return &SignalX[T]{Signal: newSignal(backend, name)}
}

// Timeout sets the bound applied to every operation on this signal.
// Zero disables the bound.
func (s *SignalX[T]) Timeout(d time.Duration) *SignalX[T] {
	s.timeout = d
	return s
}

// Clock sets a custom clock for timeouts and timestamps.
func (s *SignalX[T]) Clock(clock clockz.Clock) *SignalX[T] {
	s.clock = clock
	return s
}

// Trigger fires the default action and returns a handle to the in-flight
// operation, bounded by the signal's timeout.
func (s *SignalX[T]) Trigger(ctx context.Context) *Status {
	return s.put(ctx, nil, s.timeout)
}
