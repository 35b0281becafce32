package tether

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestFile(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "value.json")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestFileBackend_ReadAndDescribe(t *testing.T) {
	ctx := context.Background()
	path := writeTestFile(t, `21.5`)
	b := NewFileBackend[float64](path)

	if err := b.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	v, err := b.Value(ctx)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v != 21.5 {
		t.Errorf("value = %v, want 21.5", v)
	}

	key, err := b.DataKey(ctx, "temperature")
	if err != nil {
		t.Fatalf("DataKey failed: %v", err)
	}
	if key.Dtype != DtypeNumber {
		t.Errorf("dtype = %q, want %q", key.Dtype, DtypeNumber)
	}
	if key.Source != "file://"+path {
		t.Errorf("source = %q, want file locator", key.Source)
	}
}

func TestFileBackend_ConnectMissingFile(t *testing.T) {
	b := NewFileBackend[int](filepath.Join(t.TempDir(), "absent.json"))
	err := b.Connect(context.Background())
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Errorf("Connect error = %v, want *ConnectionError", err)
	}
}

func TestFileBackend_PutRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := writeTestFile(t, `1`)
	b := NewFileBackend[int](path)

	v := 7
	if err := b.Put(ctx, &v, true); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := b.Value(ctx)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if got != 7 {
		t.Errorf("value = %d, want 7", got)
	}
	sp, err := b.Setpoint(ctx)
	if err != nil {
		t.Fatalf("Setpoint failed: %v", err)
	}
	if sp != 7 {
		t.Errorf("setpoint = %d, want 7", sp)
	}
}

func TestFileBackend_NoDefaultAction(t *testing.T) {
	path := writeTestFile(t, `1`)
	b := NewFileBackend[int](path)
	if err := b.Put(context.Background(), nil, true); err == nil {
		t.Error("expected an error for a default-action put")
	}
}

func TestFileBackend_YAMLCodec(t *testing.T) {
	ctx := context.Background()
	path := writeTestFile(t, "position: 3\n")
	type pose struct {
		Position int `yaml:"position" json:"position"`
	}
	b := NewFileBackend[pose](path).Codec(YAMLCodec{})

	v, err := b.Value(ctx)
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}
	if v.Position != 3 {
		t.Errorf("position = %d, want 3", v.Position)
	}
}

func TestFileBackend_MonitorFollowsWrites(t *testing.T) {
	path := writeTestFile(t, `1`)
	b := NewFileBackend[int](path)

	updates := make(chan int, 16)
	if err := b.SetCallback(func(_ Reading[int], v int) { updates <- v }); err != nil {
		t.Fatalf("SetCallback failed: %v", err)
	}
	defer b.SetCallback(nil)

	// Current contents arrive first.
	select {
	case v := <-updates:
		if v != 1 {
			t.Fatalf("initial value = %d, want 1", v)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no initial emission")
	}

	v := 2
	if err := b.Put(context.Background(), &v, true); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-updates:
			if got == 2 {
				return
			}
		case <-deadline:
			t.Fatal("monitor never saw the written value")
		}
	}
}

func TestFileBackend_DoubleMonitor(t *testing.T) {
	path := writeTestFile(t, `1`)
	b := NewFileBackend[int](path)

	if err := b.SetCallback(func(Reading[int], int) {}); err != nil {
		t.Fatalf("SetCallback failed: %v", err)
	}
	defer b.SetCallback(nil)

	if err := b.SetCallback(func(Reading[int], int) {}); !errors.Is(err, ErrAlreadyMonitored) {
		t.Errorf("double install error = %v, want ErrAlreadyMonitored", err)
	}
}

func TestFileBackend_AsSignalBackend(t *testing.T) {
	ctx := context.Background()
	path := writeTestFile(t, `"closed"`)
	sig := NewSignalRW[string](NewFileBackend[string](path), "valve").Timeout(2 * time.Second)

	if err := sig.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	status, err := SetAndWaitForValue(ctx, sig, "open", 2*time.Second, time.Second)
	if err != nil {
		t.Fatalf("SetAndWaitForValue failed: %v", err)
	}
	if err := status.Wait(ctx); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	AssertValue(ctx, t, &sig.SignalR, "open")
}
