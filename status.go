package tether

import (
	"context"
	"sync"
)

// Status is a handle to an in-flight write. The write's own failure
// surfaces only when the handle is awaited; a confirmation wait that
// succeeds says nothing about whether the write itself settled cleanly.
type Status struct {
	done chan struct{}

	mu  sync.Mutex
	err error
}

func newStatus() *Status {
	return &Status{done: make(chan struct{})}
}

// complete records the outcome and releases waiters. Completing twice is
// a defect.
func (st *Status) complete(err error) {
	st.mu.Lock()
	st.err = err
	st.mu.Unlock()
	close(st.done)
}

// Done returns a channel closed when the write settles.
func (st *Status) Done() <-chan struct{} {
	return st.done
}

// Err returns the write's outcome. It is meaningful only after Done is
// closed; before that it is always nil.
func (st *Status) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

// Wait blocks until the write settles or ctx expires, returning the
// write's outcome.
func (st *Status) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-st.done:
		return st.Err()
	}
}
