package tether

import (
	"context"
	"fmt"
	"sync"

	"github.com/zoobzio/capitan"
)

// valueCache holds the one upstream subscription for a monitored signal
// and fans updates out to any number of listeners. A cache exists exactly
// while it is needed: while the signal is staged or at least one listener
// remains. SignalR owns the lifecycle; the cache itself only answers
// whether it is still needed.
//
// The original asyncio design mutated cache state on a single cooperative
// thread; here the backend callback and subscriber calls run on arbitrary
// goroutines, so state is guarded by mu. Readiness is a close-once
// channel: the readiness transition happens-before every listener
// notification of the first update.
type valueCache[T any] struct {
	name    string
	backend Backend[T]

	mu        sync.Mutex
	staged    bool
	listeners map[*Subscription[T]]struct{}
	hasData   bool
	reading   Reading[T]
	value     T

	ready chan struct{}
}

// newValueCache creates a cache and installs its upstream subscription.
// Fails with ErrAlreadyMonitored if the backend already has a callback.
func newValueCache[T any](name string, backend Backend[T]) (*valueCache[T], error) {
	c := &valueCache[T]{
		name:      name,
		backend:   backend,
		listeners: make(map[*Subscription[T]]struct{}),
		ready:     make(chan struct{}),
	}
	if err := backend.SetCallback(c.onUpdate); err != nil {
		return nil, err
	}
	capitan.Emit(context.Background(), CacheOpened,
		KeySignal.Field(name),
		KeySource.Field(backend.Source(name)),
	)
	return c, nil
}

// close releases the upstream subscription. The cache must not be used
// afterwards; SignalR creates a fresh one on demand.
func (c *valueCache[T]) close() {
	// Clearing an absent callback is a no-op by contract, so close is
	// idempotent.
	_ = c.backend.SetCallback(nil)
	capitan.Emit(context.Background(), CacheClosed,
		KeySignal.Field(c.name),
	)
}

// onUpdate is the backend callback: store the sample, mark readiness,
// then notify every listener. Listeners in one burst all observe the same
// (reading, value) pair because the pair is snapshotted under mu before
// any notification runs.
func (c *valueCache[T]) onUpdate(reading Reading[T], value T) {
	c.mu.Lock()
	c.reading = reading
	c.value = value
	if !c.hasData {
		c.hasData = true
		close(c.ready)
	}
	subs := make([]*Subscription[T], 0, len(c.listeners))
	for sub := range c.listeners {
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	capitan.Emit(context.Background(), CacheUpdated,
		KeySignal.Field(c.name),
		KeyListeners.Field(len(subs)),
	)
	for _, sub := range subs {
		sub.deliver(c.name, reading, value)
	}
}

// subscribe registers a listener and returns the ready sample to replay,
// if one exists. The caller delivers the replay outside the signal's
// cache lock; registration itself must happen under it so a concurrent
// teardown check never observes the cache listenerless mid-subscribe.
func (c *valueCache[T]) subscribe(sub *Subscription[T]) (Reading[T], T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners[sub] = struct{}{}
	return c.reading, c.value, c.hasData
}

// unsubscribe removes a listener, reporting whether the cache is still
// needed. Removing an unknown listener is a no-op, not an error.
func (c *valueCache[T]) unsubscribe(sub *Subscription[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners, sub)
	return c.staged || len(c.listeners) > 0
}

// setStaged toggles the staged flag, reporting whether the cache is still
// needed.
func (c *valueCache[T]) setStaged(staged bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.staged = staged
	return c.staged || len(c.listeners) > 0
}

// Reading blocks until the first update, then returns the latest sample.
func (c *valueCache[T]) Reading(ctx context.Context) (Reading[T], error) {
	select {
	case <-ctx.Done():
		var zero Reading[T]
		return zero, ctx.Err()
	case <-c.ready:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasData {
		var zero Reading[T]
		return zero, fmt.Errorf("%s: %w", c.name, ErrMonitorBroken)
	}
	return c.reading, nil
}

// Value blocks until the first update, then returns the latest value.
func (c *valueCache[T]) Value(ctx context.Context) (T, error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-c.ready:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasData {
		var zero T
		return zero, fmt.Errorf("%s: %w", c.name, ErrMonitorBroken)
	}
	return c.value, nil
}
