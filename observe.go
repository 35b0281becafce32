package tether

import (
	"context"
	"sync"
	"time"
)

// Observation is a lazy, infinite stream of a signal's values, bridging
// the push-driven backend to a pull-driven consumer. The feeding listener
// pushes into an unbounded queue: a slow consumer cannot stall the
// backend, but nothing bounds queue growth if the backend outpaces the
// consumer. There is deliberately no backpressure.
//
// Delivery is lossless and in emission order. An Observation is not
// restartable: after Stop, Next always fails with ErrObservationStopped.
// Next is a single-consumer API.
type Observation[T any] struct {
	sig     *SignalR[T]
	sub     *Subscription[T]
	timeout time.Duration

	mu      sync.Mutex
	buf     []T
	stopped bool

	notify chan struct{}
}

// ObserveValue subscribes to a signal's values and returns the stream.
// Each individual Next is bounded by timeout; zero means no bound. Stop
// must be called on every termination path, or the feeding subscription
// keeps the signal's cache alive forever.
func ObserveValue[T any](sig *SignalR[T], timeout time.Duration) (*Observation[T], error) {
	o := &Observation[T]{
		sig:     sig,
		timeout: timeout,
		notify:  make(chan struct{}, 1),
	}
	sub, err := sig.SubscribeValue(o.push)
	if err != nil {
		return nil, err
	}
	o.sub = sub
	return o, nil
}

// push is the feeding listener: append and wake the consumer. It never
// blocks, so the backend's callback path is never stalled.
func (o *Observation[T]) push(v T) {
	o.mu.Lock()
	o.buf = append(o.buf, v)
	o.mu.Unlock()
	select {
	case o.notify <- struct{}{}:
	default:
	}
}

// Next returns the next value in emission order, blocking until one
// arrives, the per-pull timeout elapses, or ctx is done.
func (o *Observation[T]) Next(ctx context.Context) (T, error) {
	var zero T
	waitCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.timeout > 0 {
		waitCtx, cancel = o.sig.clock.WithTimeout(ctx, o.timeout)
	}
	defer cancel()

	for {
		o.mu.Lock()
		if o.stopped {
			o.mu.Unlock()
			return zero, ErrObservationStopped
		}
		if len(o.buf) > 0 {
			v := o.buf[0]
			o.buf = o.buf[1:]
			o.mu.Unlock()
			return v, nil
		}
		o.mu.Unlock()

		select {
		case <-o.notify:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, &TimeoutError{Signal: o.sig.Name(), Wait: o.timeout}
		}
	}
}

// Stop removes the feeding subscription and terminates the stream,
// tearing the signal's cache down if nothing else needs it. Stop is
// idempotent.
func (o *Observation[T]) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.mu.Unlock()

	o.sig.Unsubscribe(o.sub)
	select {
	case o.notify <- struct{}{}:
	default:
	}
}
