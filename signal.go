package tether

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// DefaultTimeout bounds every signal operation unless overridden with
// Timeout.
const DefaultTimeout = 10 * time.Second

// Signal is the common core of every signal flavour: a name, a bounded
// per-operation timeout, and exactly one active backend reference, either
// the production backend or a simulated substitute.
//
// Signal and its flavours are handles. Identity is pointer identity;
// the type deliberately implements no equality or ordering, so comparing
// two handles never silently compares values. Compare values obtained
// from Value instead.
type Signal[T any] struct {
	mu          sync.Mutex
	name        string
	timeout     time.Duration
	backend     Backend[T]
	initBackend Backend[T]
	simCtx      *SimContext
	clock       clockz.Clock
}

func newSignal[T any](backend Backend[T], name string) Signal[T] {
	return Signal[T]{
		name:        name,
		timeout:     DefaultTimeout,
		backend:     backend,
		initBackend: backend,
		clock:       clockz.RealClock,
	}
}

// Name returns the signal's name, empty until bound.
func (s *Signal[T]) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// SetName binds the signal's name.
func (s *Signal[T]) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

// Source returns the active backend's locator for this signal, like
// "ca://PV_PREFIX:SIGNAL", or "" if not set.
func (s *Signal[T]) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Source(s.name)
}

// Connect attaches the production backend, dropping any simulated
// substitute and its SimContext entry, and connects it within the
// signal's timeout.
func (s *Signal[T]) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.backend = s.initBackend
	if s.simCtx != nil {
		s.simCtx.remove(s)
		s.simCtx = nil
	}
	backend := s.backend
	s.mu.Unlock()

	if err := s.connect(ctx, backend); err != nil {
		return err
	}
	capitan.Emit(ctx, SignalConnected,
		KeySignal.Field(s.Name()),
		KeySource.Field(s.Source()),
	)
	return nil
}

// ConnectSim attaches a fresh in-memory substitute typed from the
// production backend's declared value type, records it in sc for later
// test-driven mutation, and connects it. The production backend is
// untouched; a later Connect restores it.
func (s *Signal[T]) ConnectSim(ctx context.Context, sc *SimContext) error {
	if sc == nil {
		return errors.New("tether: ConnectSim requires a SimContext")
	}
	sim := NewSimBackend[T]()

	s.mu.Lock()
	s.backend = sim
	s.simCtx = sc
	s.mu.Unlock()
	sc.store(s, sim)

	if err := s.connect(ctx, sim); err != nil {
		return err
	}
	capitan.Emit(ctx, SignalSimulated,
		KeySignal.Field(s.Name()),
		KeySource.Field(s.Source()),
	)
	return nil
}

func (s *Signal[T]) connect(ctx context.Context, backend Backend[T]) error {
	opCtx, cancel := s.opCtx(ctx)
	defer cancel()
	if err := backend.Connect(opCtx); err != nil {
		capitan.Emit(ctx, SignalConnectFailed,
			KeySignal.Field(s.Name()),
			KeyError.Field(err.Error()),
		)
		var ce *ConnectionError
		if errors.As(err, &ce) {
			return err
		}
		return &ConnectionError{Source: s.Source(), Err: err}
	}
	return nil
}

// SimBackend returns the simulated substitute recorded for this signal in
// sc, or an error if the signal is not connected in simulation mode
// through that context.
func (s *Signal[T]) SimBackend(sc *SimContext) (*SimBackend[T], error) {
	if sc == nil {
		return nil, errors.New("tether: nil SimContext")
	}
	b, ok := sc.load(s)
	if !ok {
		return nil, errors.New("tether: signal is not in simulation mode")
	}
	sim, ok := b.(*SimBackend[T])
	if !ok {
		return nil, errors.New("tether: simulated backend has unexpected type")
	}
	return sim, nil
}

// backendRef returns the currently active backend.
func (s *Signal[T]) backendRef() Backend[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend
}

// opCtx bounds an operation context with the signal's timeout.
func (s *Signal[T]) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return s.clock.WithTimeout(ctx, s.timeout)
}

// opErr converts a deadline expiry into a TimeoutError carrying the
// signal's identity; other errors pass through.
func (s *Signal[T]) opErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Signal: s.Source(), Wait: s.timeout}
	}
	return err
}

// put issues a write to the active backend and returns a handle to the
// in-flight operation without awaiting it. A nil value applies the
// backend's default action. The operation is bounded by timeout, or
// unbounded if timeout is zero.
func (s *Signal[T]) put(ctx context.Context, value *T, timeout time.Duration) *Status {
	st := newStatus()
	backend := s.backendRef()

	capitan.Emit(ctx, PutStarted,
		KeySignal.Field(s.Name()),
		KeySource.Field(s.Source()),
		KeyTimeout.Field(timeout),
	)

	// The write must outlive the caller's frame: cancellation of the
	// issuing context does not abandon an issued write, only the
	// timeout bound does.
	putCtx := context.WithoutCancel(ctx)
	var cancel context.CancelFunc = func() {}
	if timeout > 0 {
		putCtx, cancel = s.clock.WithTimeout(putCtx, timeout)
	}

	go func() {
		defer cancel()
		err := backend.Put(putCtx, value, true)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			err = &TimeoutError{Signal: s.Source(), Wait: timeout}
		}
		st.complete(err)
		if err != nil {
			capitan.Emit(putCtx, PutCompleted,
				KeySignal.Field(s.Name()),
				KeySource.Field(s.Source()),
				KeyError.Field(err.Error()),
			)
			return
		}
		capitan.Emit(putCtx, PutCompleted,
			KeySignal.Field(s.Name()),
			KeySource.Field(s.Source()),
		)
	}()

	return st
}
