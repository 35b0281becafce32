package tether

import (
	"context"
	"sync"
	"time"
)

// fakeBackend is a scripted Backend for exercising the cache and wait
// paths. Unlike SimBackend it never emits on its own: tests drive every
// push through emit, and writes change only the setpoint so readback
// confirmation can be scripted separately.
type fakeBackend[T any] struct {
	mu         sync.Mutex
	connectErr error
	putErr     error
	putBlock   chan struct{}
	value      T
	setpoint   T
	cb         ReadingCallback[T]
	puts       []*T
}

func (f *fakeBackend[T]) Connect(_ context.Context) error {
	return f.connectErr
}

func (f *fakeBackend[T]) Source(name string) string {
	return "fake://" + name
}

func (f *fakeBackend[T]) DataKey(_ context.Context, name string) (DataKey, error) {
	dtype, err := dtypeOf[T]()
	if err != nil {
		return DataKey{}, err
	}
	return DataKey{Source: f.Source(name), Dtype: dtype, Shape: []int{}}, nil
}

func (f *fakeBackend[T]) Reading(_ context.Context) (Reading[T], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Reading[T]{Value: f.value, Timestamp: time.Now(), AlarmSeverity: SeverityNone}, nil
}

func (f *fakeBackend[T]) Value(_ context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, nil
}

func (f *fakeBackend[T]) Setpoint(_ context.Context) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.setpoint, nil
}

func (f *fakeBackend[T]) Put(ctx context.Context, value *T, _ bool) error {
	f.mu.Lock()
	f.puts = append(f.puts, value)
	if value != nil {
		f.setpoint = *value
	}
	err := f.putErr
	block := f.putBlock
	f.mu.Unlock()
	if err != nil {
		return err
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeBackend[T]) SetCallback(cb ReadingCallback[T]) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb == nil {
		f.cb = nil
		return nil
	}
	if f.cb != nil {
		return ErrAlreadyMonitored
	}
	f.cb = cb
	return nil
}

// emit pushes one update through the installed callback, as the remote
// end would.
func (f *fakeBackend[T]) emit(v T) {
	f.mu.Lock()
	f.value = v
	cb := f.cb
	f.mu.Unlock()
	if cb != nil {
		cb(Reading[T]{Value: v, Timestamp: time.Now(), AlarmSeverity: SeverityNone}, v)
	}
}

func (f *fakeBackend[T]) hasCallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb != nil
}

func (f *fakeBackend[T]) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}
