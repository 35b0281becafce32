package tether

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// CacheUsage selects where a read is served from.
type CacheUsage int

const (
	// CacheInfer uses the cache if one currently exists, the backend
	// otherwise. This is the zero value.
	CacheInfer CacheUsage = iota

	// CacheRequire fails with ErrNotMonitored if no cache exists.
	CacheRequire

	// CacheBypass always queries the backend directly.
	CacheBypass
)

// Subscription identifies one listener on a monitored signal. Listeners
// are identified by handle, not by function value, so the same function
// can be subscribed more than once and removed individually.
type Subscription[T any] struct {
	valueFn   func(T)
	readingFn func(map[string]Reading[T])
}

// deliver pushes one sample to the listener in the form it asked for.
func (s *Subscription[T]) deliver(name string, reading Reading[T], value T) {
	if s.valueFn != nil {
		s.valueFn(value)
		return
	}
	s.readingFn(map[string]Reading[T]{name: reading})
}

// valueSource is either the live cache or the backend itself, chosen per
// read by CacheUsage.
type valueSource[T any] interface {
	Reading(ctx context.Context) (Reading[T], error)
	Value(ctx context.Context) (T, error)
}

// SignalR is a signal that can be read and monitored.
type SignalR[T any] struct {
	Signal[T]

	cacheMu sync.Mutex
	cache   *valueCache[T]
}

// NewSignalR creates a read-only signal on the given backend.
func NewSignalR[T any](backend Backend[T], name string) *SignalR[T] {
	return &SignalR[T]{Signal: newSignal(backend, name)}
}

// Timeout sets the bound applied to every operation on this signal.
// Zero disables the bound.
func (s *SignalR[T]) Timeout(d time.Duration) *SignalR[T] {
	s.timeout = d
	return s
}

// Clock sets a custom clock for timeouts and timestamps.
// Use this with clockz.FakeClock for deterministic tests.
func (s *SignalR[T]) Clock(clock clockz.Clock) *SignalR[T] {
	s.clock = clock
	return s
}

// Read returns a single-item map with the signal's reading in it, served
// per usage, bounded by the signal's timeout.
func (s *SignalR[T]) Read(ctx context.Context, usage CacheUsage) (map[string]Reading[T], error) {
	src, err := s.readSource(usage)
	if err != nil {
		return nil, err
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	reading, err := src.Reading(opCtx)
	if err != nil {
		return nil, s.opErr(err)
	}
	return map[string]Reading[T]{s.Name(): reading}, nil
}

// Value returns the signal's current value, served per usage, bounded by
// the signal's timeout.
func (s *SignalR[T]) Value(ctx context.Context, usage CacheUsage) (T, error) {
	src, err := s.readSource(usage)
	if err != nil {
		var zero T
		return zero, err
	}
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	value, err := src.Value(opCtx)
	if err != nil {
		var zero T
		return zero, s.opErr(err)
	}
	return value, nil
}

// Describe returns a single-item map with the signal's schema descriptor.
func (s *SignalR[T]) Describe(ctx context.Context) (map[string]DataKey, error) {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	key, err := s.backendRef().DataKey(opCtx, s.Name())
	if err != nil {
		return nil, s.opErr(err)
	}
	return map[string]DataKey{s.Name(): key}, nil
}

// Subscribe registers a listener for reading updates, delivered as the
// same single-item map shape Read returns. If a ready value exists it is
// delivered immediately.
func (s *SignalR[T]) Subscribe(fn func(map[string]Reading[T])) (*Subscription[T], error) {
	return s.addSubscription(&Subscription[T]{readingFn: fn})
}

// SubscribeValue registers a listener for bare value updates. If a ready
// value exists it is delivered immediately.
func (s *SignalR[T]) SubscribeValue(fn func(T)) (*Subscription[T], error) {
	return s.addSubscription(&Subscription[T]{valueFn: fn})
}

func (s *SignalR[T]) addSubscription(sub *Subscription[T]) (*Subscription[T], error) {
	// The listener must be registered while cacheMu is held: a concurrent
	// Unsubscribe or Unstage otherwise sees a listenerless cache in the
	// window after creation and tears it down underneath the new listener.
	// Only the replay delivery runs outside the lock.
	s.cacheMu.Lock()
	cache, err := s.getCacheLocked()
	if err != nil {
		s.cacheMu.Unlock()
		return nil, err
	}
	reading, value, replay := cache.subscribe(sub)
	s.cacheMu.Unlock()
	if replay {
		sub.deliver(cache.name, reading, value)
	}
	return sub, nil
}

// Unsubscribe removes a listener, tearing the cache down if it is no
// longer needed. It is a strict no-op when the listener or the cache is
// absent; it never allocates a cache merely to check.
func (s *SignalR[T]) Unsubscribe(sub *Subscription[T]) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cache == nil {
		return
	}
	if !s.cache.unsubscribe(sub) {
		s.cache.close()
		s.cache = nil
	}
}

// Stage starts caching this signal independent of listeners, typically
// for the span of a collection run.
func (s *SignalR[T]) Stage() error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	cache, err := s.getCacheLocked()
	if err != nil {
		return err
	}
	cache.setStaged(true)
	capitan.Emit(context.Background(), SignalStaged,
		KeySignal.Field(s.Name()),
		KeyStaged.Field(1),
	)
	return nil
}

// Unstage stops caching this signal, tearing the cache down unless
// listeners remain. Unstaging a signal that is not cached is a no-op.
func (s *SignalR[T]) Unstage() error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cache == nil {
		return nil
	}
	if !s.cache.setStaged(false) {
		s.cache.close()
		s.cache = nil
	}
	capitan.Emit(context.Background(), SignalStaged,
		KeySignal.Field(s.Name()),
		KeyStaged.Field(0),
	)
	return nil
}

// getCacheLocked returns the live cache, creating it and installing the
// upstream subscription on first use. Callers hold cacheMu.
func (s *SignalR[T]) getCacheLocked() (*valueCache[T], error) {
	if s.cache == nil {
		cache, err := newValueCache(s.Name(), s.backendRef())
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}
	return s.cache, nil
}

// readSource resolves the CacheUsage selector to the cache or the
// backend.
func (s *SignalR[T]) readSource(usage CacheUsage) (valueSource[T], error) {
	switch usage {
	case CacheBypass:
		return s.backendRef(), nil
	case CacheRequire:
		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()
		if s.cache == nil {
			return nil, fmt.Errorf("%s: %w", s.Source(), ErrNotMonitored)
		}
		return s.cache, nil
	default:
		s.cacheMu.Lock()
		defer s.cacheMu.Unlock()
		if s.cache != nil {
			return s.cache, nil
		}
		return s.backendRef(), nil
	}
}
