package tether

import (
	"context"
	"sync"
)

// TB is the subset of testing.TB the assertion helpers need, so this
// package does not import testing. *testing.T satisfies it.
type TB interface {
	Helper()
	Errorf(format string, args ...any)
}

// AssertValue reads the signal's value and fails t if it differs from
// want.
func AssertValue[T comparable](ctx context.Context, t TB, sig *SignalR[T], want T) {
	t.Helper()
	got, err := sig.Value(ctx, CacheInfer)
	if err != nil {
		t.Errorf("read %s: %v", sig.Name(), err)
		return
	}
	if got != want {
		t.Errorf("%s: value = %v, want %v", sig.Name(), got, want)
	}
}

// AssertReading reads the signal and fails t unless the reading map
// matches want exactly, including timestamp and severity.
func AssertReading[T comparable](ctx context.Context, t TB, sig *SignalR[T], want map[string]Reading[T]) {
	t.Helper()
	got, err := sig.Read(ctx, CacheInfer)
	if err != nil {
		t.Errorf("read %s: %v", sig.Name(), err)
		return
	}
	if len(got) != len(want) {
		t.Errorf("%s: reading has %d entries, want %d", sig.Name(), len(got), len(want))
		return
	}
	for name, w := range want {
		g, ok := got[name]
		if !ok {
			t.Errorf("%s: reading missing entry %q", sig.Name(), name)
			continue
		}
		if g.Value != w.Value || !g.Timestamp.Equal(w.Timestamp) || g.AlarmSeverity != w.AlarmSeverity {
			t.Errorf("%s: reading[%q] = %+v, want %+v", sig.Name(), name, g, w)
		}
	}
}

// DocumentLog collects emitted documents by type name, preserving
// first-seen order, for validation against an expected emission profile.
type DocumentLog struct {
	mu    sync.Mutex
	order []string
	docs  map[string][]any
}

// NewDocumentLog creates an empty DocumentLog.
func NewDocumentLog() *DocumentLog {
	return &DocumentLog{docs: make(map[string][]any)}
}

// Append records one emitted document under its type name.
func (l *DocumentLog) Append(name string, doc any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, seen := l.docs[name]; !seen {
		l.order = append(l.order, name)
	}
	l.docs[name] = append(l.docs[name], doc)
}

// Names returns the document type names in first-seen order.
func (l *DocumentLog) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, len(l.order))
	copy(names, l.order)
	return names
}

// Count returns how many documents of the named type were recorded.
func (l *DocumentLog) Count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.docs[name])
}

// Emitted is one expected entry in an emission profile: a document type
// name and the exact count of documents of that type.
type Emitted struct {
	Name  string
	Count int
}

// AssertEmitted fails t unless the log holds exactly the given document
// types, in the given order, with the given counts per type.
func AssertEmitted(t TB, log *DocumentLog, want ...Emitted) {
	t.Helper()
	names := log.Names()
	if len(names) != len(want) {
		t.Errorf("emitted %d document types %v, want %d", len(names), names, len(want))
		return
	}
	for i, w := range want {
		if names[i] != w.Name {
			t.Errorf("document type %d = %q, want %q", i, names[i], w.Name)
			continue
		}
		if got := log.Count(w.Name); got != w.Count {
			t.Errorf("emitted %d %q documents, want %d", got, w.Name, w.Count)
		}
	}
}
