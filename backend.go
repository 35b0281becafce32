package tether

import (
	"context"
	"time"
)

// Dtype is the wire-schema type tag carried by a DataKey.
type Dtype string

// The five dtype values understood by downstream document consumers.
const (
	DtypeString  Dtype = "string"
	DtypeInteger Dtype = "integer"
	DtypeNumber  Dtype = "number"
	DtypeArray   Dtype = "array"
	DtypeBool    Dtype = "boolean"
)

// Alarm severity values carried by a Reading. Unknown is reported when the
// backend has no severity information for the sample.
const (
	SeverityUnknown = -1
	SeverityNone    = 0
	SeverityMinor   = 1
	SeverityMajor   = 2
)

// Reading is a timestamped, alarm-annotated value sample.
type Reading[T any] struct {
	Value     T
	Timestamp time.Time
	// AlarmSeverity is SeverityUnknown when the backend cannot report one.
	AlarmSeverity int
}

// DataKey describes the schema of a signal's value: where it comes from,
// its wire type, its shape, and the enumerated choices for enum-like
// signals.
type DataKey struct {
	Source  string
	Dtype   Dtype
	Shape   []int
	Choices []string
}

// ReadingCallback receives push updates from a backend. The reading and
// the value refer to the same sample.
type ReadingCallback[T any] func(reading Reading[T], value T)

// Backend is the contract every transport implementation must satisfy.
// It represents one opaque connection to a remote control point.
//
// Implementations must deliver the current reading through a freshly
// installed callback as soon as one is available, so that monitors become
// ready without waiting for the next change. Callback invocations must be
// serialized: no two calls may run concurrently, and delivery order must
// match emission order.
type Backend[T any] interface {
	// Connect establishes the connection, honouring ctx for its deadline.
	// An unreachable backend fails with a ConnectionError.
	Connect(ctx context.Context) error

	// Source returns a locator string for the named signal, like
	// "ca://PV_PREFIX:SIGNAL" or "file:///tmp/valve.json".
	Source(name string) string

	// DataKey returns the schema descriptor for the named signal's value.
	// The descriptor's Source is the same full locator Source returns.
	DataKey(ctx context.Context, name string) (DataKey, error)

	// Reading returns the current value with timestamp and severity.
	Reading(ctx context.Context) (Reading[T], error)

	// Value returns the current value.
	Value(ctx context.Context) (T, error)

	// Setpoint returns the last commanded value, which differs from
	// Value while a write is in flight.
	Setpoint(ctx context.Context) (T, error)

	// Put writes a value. A nil value means "apply the backend's default
	// action". With wait false, Put returns as soon as the write is
	// issued, without confirming completion.
	Put(ctx context.Context, value *T, wait bool) error

	// SetCallback installs or, given nil, removes the one push
	// subscription. Installing while one is active fails with
	// ErrAlreadyMonitored; clearing an absent subscription is a no-op.
	SetCallback(cb ReadingCallback[T]) error
}
