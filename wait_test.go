package tether

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWaitForValue_Match(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "counter").Timeout(time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		backend.emit(1)
		backend.emit(5)
	}()

	if err := WaitForValue(ctx, sig, 5, time.Second); err != nil {
		t.Fatalf("WaitForValue failed: %v", err)
	}
	if monitored(sig) {
		t.Error("expected subscription released after a successful wait")
	}
}

func TestWaitForValue_TimeoutEmbedsLastValue(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "counter").Timeout(time.Second)

	if err := sig.Stage(); err != nil {
		t.Fatalf("Stage failed: %v", err)
	}
	defer sig.Unstage()
	backend.emit(3) // only ever 3, never 5

	start := time.Now()
	err := WaitForValue(ctx, sig, 5, 100*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout, got nil")
	}
	elapsed := time.Since(start)
	if elapsed < 50*time.Millisecond || elapsed > time.Second {
		t.Errorf("timed out after %v, want ~100ms", elapsed)
	}

	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T, want *TimeoutError", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("TimeoutError must unwrap to DeadlineExceeded")
	}
	if !strings.Contains(err.Error(), "3") {
		t.Errorf("error %q does not mention the last observed value 3", err)
	}
	if !strings.Contains(err.Error(), "5") {
		t.Errorf("error %q does not describe the match criterion 5", err)
	}
}

func TestWaitForValue_TimeoutWithNoValueAtAll(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "counter").Timeout(time.Second)

	err := WaitForValue(ctx, sig, 5, 50*time.Millisecond)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T, want *TimeoutError", err)
	}
	if te.HasLast {
		t.Errorf("HasLast = true with last %v, want none", te.Last)
	}
	if !strings.Contains(err.Error(), "none") {
		t.Errorf("error %q should report that no value was observed", err)
	}
}

func TestWaitForValue_ReleasesSubscriptionOnTimeout(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "counter").Timeout(time.Second)

	_ = WaitForValue(ctx, sig, 5, 50*time.Millisecond)
	if monitored(sig) {
		t.Error("timed-out wait leaked its subscription")
	}
	if backend.hasCallback() {
		t.Error("timed-out wait left the upstream callback installed")
	}
}

func TestWaitForMatch_Predicate(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "captured").Timeout(time.Second)

	go func() {
		for i := 40; i <= 50; i++ {
			backend.emit(i)
		}
	}()

	err := WaitForMatch(ctx, sig, func(v int) bool { return v > 45 }, "v > 45", time.Second)
	if err != nil {
		t.Fatalf("WaitForMatch failed: %v", err)
	}
}

func TestWaitForMatch_TimeoutNamesCriterion(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "captured").Timeout(time.Second)

	err := WaitForMatch(ctx, sig, func(v int) bool { return v > 45 }, "v > 45", 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout, got nil")
	}
	if !strings.Contains(err.Error(), "v > 45") {
		t.Errorf("error %q does not name the criterion", err)
	}
}

func TestWaitForMatch_ParentCancellation(t *testing.T) {
	backend := &fakeBackend[int]{}
	sig := NewSignalR[int](backend, "counter").Timeout(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := WaitForValue(ctx, sig, 5, time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want Canceled, not a timeout", err)
	}
	if monitored(sig) {
		t.Error("cancelled wait leaked its subscription")
	}
}

func TestSetAndWaitForValue_ConfirmsOnReadback(t *testing.T) {
	ctx := context.Background()
	sig := SoftSignalRW("valve", "closed")
	if err := sig.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// The sim backend's readback follows the put immediately, so the
	// confirm wait resolves well inside its bound.
	start := time.Now()
	status, err := SetAndWaitForValue(ctx, sig, "open", 2*time.Second, time.Second)
	if err != nil {
		t.Fatalf("SetAndWaitForValue failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("confirm took %v, want well under the 2s bound", elapsed)
	}
	if err := status.Wait(ctx); err != nil {
		t.Fatalf("status failed: %v", err)
	}
}

func TestSetAndWaitForValue_TimesOutWhenReadbackNeverUpdates(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend[string]{}
	backend.value = "closed"
	sig := NewSignalRW[string](backend, "valve").Timeout(time.Second)

	// The fake accepts the put but its readback stays "closed".
	go func() {
		time.Sleep(10 * time.Millisecond)
		backend.emit("closed")
	}()
	status, err := SetAndWaitForValue(ctx, sig, "open", 100*time.Millisecond, time.Second)
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("error = %T (%v), want *TimeoutError", err, err)
	}
	if !strings.Contains(err.Error(), "closed") {
		t.Errorf("error %q does not mention the last readback", err)
	}

	// The write itself settled fine; the two outcomes are independent.
	if err := status.Wait(ctx); err != nil {
		t.Errorf("status error = %v, want nil", err)
	}
	if monitored(&sig.SignalR) {
		t.Error("confirm wait leaked its subscription")
	}
}

func TestSetAndWaitForValue_StatusBoundedSeparately(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	backend := &fakeBackend[string]{putBlock: block}
	sig := NewSignalRW[string](backend, "valve").Timeout(time.Second)

	// Readback confirms immediately via the monitor replay after the
	// put updates the setpoint; the put itself stays in flight until
	// the status timeout expires.
	go func() {
		time.Sleep(10 * time.Millisecond)
		backend.emit("open")
	}()
	status, err := SetAndWaitForValue(ctx, sig, "open", time.Second, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	err = status.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("status error = %v, want the put's own timeout", err)
	}
}
