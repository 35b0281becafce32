package tether

import "github.com/zoobzio/capitan"

// Connection lifecycle events.
var (
	// SignalConnected is emitted when a signal connects to its
	// production backend.
	SignalConnected = capitan.NewSignal(
		"tether.signal.connected",
		"Signal connected to its production backend",
	)

	// SignalSimulated is emitted when a signal is hot-swapped onto a
	// simulated substitute backend.
	SignalSimulated = capitan.NewSignal(
		"tether.signal.simulated",
		"Signal switched to a simulated backend",
	)

	// SignalConnectFailed is emitted when a backend cannot be reached
	// within its connect window.
	SignalConnectFailed = capitan.NewSignal(
		"tether.signal.connect.failed",
		"Backend unreachable within its connect window",
	)
)

// Cache lifecycle events.
var (
	// CacheOpened is emitted when a value cache is created and its
	// upstream subscription installed.
	CacheOpened = capitan.NewSignal(
		"tether.cache.opened",
		"Value cache created, upstream subscription installed",
	)

	// CacheClosed is emitted when a cache is torn down because it is no
	// longer staged and has no listeners.
	CacheClosed = capitan.NewSignal(
		"tether.cache.closed",
		"Value cache torn down, upstream subscription released",
	)

	// CacheUpdated is emitted when the backend pushes an update into a
	// cache.
	CacheUpdated = capitan.NewSignal(
		"tether.cache.updated",
		"Backend pushed an update into the cache",
	)

	// SignalStaged is emitted when a signal's staged flag is toggled.
	SignalStaged = capitan.NewSignal(
		"tether.signal.staged",
		"Signal staged flag toggled",
	)
)

// Write and wait events.
var (
	// PutStarted is emitted when a write is issued to the backend.
	PutStarted = capitan.NewSignal(
		"tether.put.started",
		"Write issued to the backend",
	)

	// PutCompleted is emitted when an in-flight write settles.
	PutCompleted = capitan.NewSignal(
		"tether.put.completed",
		"In-flight write settled",
	)

	// WaitTimedOut is emitted when a value wait expires without a match.
	WaitTimedOut = capitan.NewSignal(
		"tether.wait.timeout",
		"Value wait expired without a match",
	)
)
