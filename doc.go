// Package tether presents remote, hardware-backed control points as
// uniform typed signals, independent of the transport that moves the bytes.
//
// The core type is Signal and its flavours: SignalR (read + monitor),
// SignalW (write), SignalRW (read + write), and SignalX (fire the backend's
// default action). Every flavour delegates to a Backend, the single
// extension point that transport implementations satisfy.
//
// # Backends
//
// A Backend exposes typed accessors for the current value, a timestamped
// Reading, a schema-describing DataKey, and the last commanded setpoint,
// plus a single push subscription installed via SetCallback. At most one
// callback may be installed per backend at a time; installing a second is
// a contract violation, clearing an absent one is a no-op.
//
// The package provides two backends:
//
//   - SimBackend: an in-memory substitute for tests and offline work
//   - FileBackend: a file-backed backend using fsnotify, for local
//     development against a document on disk
//
// # Monitoring
//
// Subscribing to a SignalR lazily creates a value cache holding the one
// upstream subscription and fanning updates out to any number of
// listeners. The cache lives exactly as long as it is needed: while the
// signal is staged or at least one listener remains. Readers that ask for
// cached data block until the first update arrives.
//
// # Waiting
//
// ObserveValue bridges the push-driven backend to a pull-driven consumer:
//
//	obs, err := tether.ObserveValue(sig, 0)
//	if err != nil {
//	    return err
//	}
//	defer obs.Stop()
//	for {
//	    v, err := obs.Next(ctx)
//	    ...
//	}
//
// WaitForValue and WaitForMatch drain an observation until a value
// matches or a timeout elapses, and SetAndWaitForValue combines a
// non-blocking set with a readback confirmation wait:
//
//	status, err := tether.SetAndWaitForValue(ctx, valve, "open", 2*time.Second, 0)
//	if err != nil {
//	    return err // readback never confirmed
//	}
//	if err := status.Wait(ctx); err != nil {
//	    return err // the write itself failed
//	}
//
// "Write accepted" (readback matches) and "write settled" (operation
// complete) are distinct events; callers must check both to be fully safe.
//
// # Simulation
//
// ConnectSim hot-swaps a signal onto a fresh in-memory substitute without
// breaking caller-held references. The substitute is recorded in an
// explicit SimContext owned by the test harness, and is retrievable for
// test-driven mutation:
//
//	sc := tether.NewSimContext()
//	if err := sig.ConnectSim(ctx, sc); err != nil {
//	    return err
//	}
//	sim, _ := sig.SimBackend(sc)
//	sim.SetValue(42)
//
// Reconnecting with Connect restores the production backend and drops the
// SimContext entry.
//
// # Identity
//
// Signals are handles: identity is pointer identity, and the handle type
// implements no equality or ordering of its own. Comparing two signals
// compares the handles, never the values; use Value to compare values.
package tether
