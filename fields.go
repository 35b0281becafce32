package tether

import "github.com/zoobzio/capitan"

// Field keys for tether events.
var (
	// KeySignal is the name of the signal involved.
	KeySignal = capitan.NewStringKey("signal")

	// KeySource is the backend locator for the signal.
	KeySource = capitan.NewStringKey("source")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyTimeout is the bound that applied to the operation.
	KeyTimeout = capitan.NewDurationKey("timeout")

	// KeyListeners is the number of listeners on a cache.
	KeyListeners = capitan.NewIntKey("listeners")

	// KeyStaged is 1 when the signal is staged, 0 otherwise.
	KeyStaged = capitan.NewIntKey("staged")

	// KeyCriterion describes the match a wait was looking for.
	KeyCriterion = capitan.NewStringKey("criterion")
)
