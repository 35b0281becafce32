package tether

import (
	"context"
	"reflect"
	"sync"

	"github.com/zoobzio/clockz"
)

// SimContext is the side-table mapping signal identity to its simulated
// substitute. It is owned by the test harness and passed explicitly to
// ConnectSim, so simulation state never lives in a package-level global.
type SimContext struct {
	mu       sync.Mutex
	backends map[any]any
}

// NewSimContext creates an empty simulation context.
func NewSimContext() *SimContext {
	return &SimContext{backends: make(map[any]any)}
}

func (sc *SimContext) store(key, backend any) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.backends[key] = backend
}

func (sc *SimContext) remove(key any) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	delete(sc.backends, key)
}

func (sc *SimContext) load(key any) (any, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	b, ok := sc.backends[key]
	return b, ok
}

// Ensure SimBackend implements Backend.
var _ Backend[int] = (*SimBackend[int])(nil)

// SimBackend is an in-memory Backend for tests and offline development.
// Its value store is independent of any production backend: writes under
// simulation never touch the hardware.
type SimBackend[T any] struct {
	mu        sync.Mutex
	connected bool
	initial   T
	value     T
	setpoint  T
	callback  ReadingCallback[T]
	proceed   chan struct{}
	choices   []string
	clock     clockz.Clock
}

// NewSimBackend creates a SimBackend holding the zero value of T.
func NewSimBackend[T any]() *SimBackend[T] {
	proceed := make(chan struct{})
	close(proceed)
	return &SimBackend[T]{
		proceed: proceed,
		clock:   clockz.RealClock,
	}
}

// Initial sets the value the backend starts with and the value a default
// action restores.
func (b *SimBackend[T]) Initial(v T) *SimBackend[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initial = v
	b.value = v
	b.setpoint = v
	return b
}

// Clock sets a custom clock for reading timestamps.
func (b *SimBackend[T]) Clock(clock clockz.Clock) *SimBackend[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clock = clock
	return b
}

// Choices sets the enumerated choices reported in the DataKey.
func (b *SimBackend[T]) Choices(choices ...string) *SimBackend[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.choices = choices
	return b
}

// Connect marks the backend connected. It never fails.
func (b *SimBackend[T]) Connect(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = true
	return nil
}

// Source returns a sim:// locator for the named signal.
func (b *SimBackend[T]) Source(name string) string {
	return "sim://" + name
}

// DataKey returns a descriptor inferred from T.
func (b *SimBackend[T]) DataKey(_ context.Context, name string) (DataKey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dtype, err := dtypeOf[T]()
	if err != nil {
		return DataKey{}, err
	}
	return DataKey{
		Source:  b.Source(name),
		Dtype:   dtype,
		Shape:   shapeOf(b.value),
		Choices: b.choices,
	}, nil
}

// Reading returns the current value stamped with the backend's clock.
func (b *SimBackend[T]) Reading(_ context.Context) (Reading[T], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readingLocked(), nil
}

// Value returns the current value.
func (b *SimBackend[T]) Value(_ context.Context) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.value, nil
}

// Setpoint returns the last commanded value.
func (b *SimBackend[T]) Setpoint(_ context.Context) (T, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.setpoint, nil
}

// Put writes a value, or restores the initial value when given nil. With
// wait true it blocks until puts are allowed to proceed (see
// SetPutProceeds) or ctx expires.
func (b *SimBackend[T]) Put(ctx context.Context, value *T, wait bool) error {
	b.mu.Lock()
	v := b.initial
	if value != nil {
		v = *value
	}
	b.setpoint = v
	b.value = v
	reading := b.readingLocked()
	cb := b.callback
	proceed := b.proceed
	b.mu.Unlock()

	if cb != nil {
		cb(reading, v)
	}
	if !wait {
		return nil
	}
	select {
	case <-proceed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetCallback installs or removes the one push subscription. On install
// the current reading is delivered immediately.
func (b *SimBackend[T]) SetCallback(cb ReadingCallback[T]) error {
	b.mu.Lock()
	if cb == nil {
		b.callback = nil
		b.mu.Unlock()
		return nil
	}
	if b.callback != nil {
		b.mu.Unlock()
		return ErrAlreadyMonitored
	}
	b.callback = cb
	reading := b.readingLocked()
	value := b.value
	b.mu.Unlock()

	cb(reading, value)
	return nil
}

// SetValue mutates the readback value from a test, pushing the update to
// any installed callback. The setpoint is untouched.
func (b *SimBackend[T]) SetValue(v T) {
	b.mu.Lock()
	b.value = v
	reading := b.readingLocked()
	cb := b.callback
	b.mu.Unlock()

	if cb != nil {
		cb(reading, v)
	}
}

// SetPutProceeds allows or blocks puts issued with wait true. Puts
// proceed by default.
func (b *SimBackend[T]) SetPutProceeds(proceeds bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blocked := !isClosed(b.proceed)
	if proceeds && blocked {
		close(b.proceed)
	}
	if !proceeds && !blocked {
		b.proceed = make(chan struct{})
	}
}

func (b *SimBackend[T]) readingLocked() Reading[T] {
	return Reading[T]{
		Value:         b.value,
		Timestamp:     b.clock.Now(),
		AlarmSeverity: SeverityNone,
	}
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// dtypeOf maps T onto the five-value dtype set understood by document
// consumers.
func dtypeOf[T any]() (Dtype, error) {
	var zero T
	t := reflect.TypeOf(&zero).Elem()
	switch t.Kind() {
	case reflect.String:
		return DtypeString, nil
	case reflect.Bool:
		return DtypeBool, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return DtypeInteger, nil
	case reflect.Float32, reflect.Float64:
		return DtypeNumber, nil
	case reflect.Slice, reflect.Array:
		return DtypeArray, nil
	default:
		return "", &unsupportedTypeError{t}
	}
}

type unsupportedTypeError struct {
	t reflect.Type
}

func (e *unsupportedTypeError) Error() string {
	return "tether: no dtype for " + e.t.String()
}

// shapeOf reports the value's shape: empty for scalars, the length for
// one-dimensional arrays.
func shapeOf(v any) []int {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return []int{}
	}
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return []int{rv.Len()}
	}
	return []int{}
}

// SoftSignalRW creates a read-write signal born on a SimBackend, for
// values that live in software rather than on hardware.
func SoftSignalRW[T any](name string, initial T) *SignalRW[T] {
	return NewSignalRW(NewSimBackend[T]().Initial(initial), name)
}

// SoftSignalR creates a read-only signal on a SimBackend and returns the
// backend too, so the owning device can mutate the value internally while
// keeping it externally read-only.
func SoftSignalR[T any](name string, initial T) (*SignalR[T], *SimBackend[T]) {
	backend := NewSimBackend[T]().Initial(initial)
	return NewSignalR(backend, name), backend
}
