package tether

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/clockz"
)

// Ensure FileBackend implements Backend.
var _ Backend[int] = (*FileBackend[int])(nil)

// FileBackend serves a signal from a document on disk, for local
// development without hardware. Reads decode the file through the
// configured codec, writes encode and replace it, and the push
// subscription follows filesystem write events.
type FileBackend[T any] struct {
	path  string
	codec Codec
	clock clockz.Clock

	mu          sync.Mutex
	callback    ReadingCallback[T]
	stop        chan struct{}
	setpoint    T
	hasSetpoint bool
}

// NewFileBackend creates a FileBackend for the given path. The default
// codec is JSON.
func NewFileBackend[T any](path string) *FileBackend[T] {
	return &FileBackend[T]{
		path:  path,
		codec: JSONCodec{},
		clock: clockz.RealClock,
	}
}

// Codec sets the codec used to decode and encode the file.
func (b *FileBackend[T]) Codec(codec Codec) *FileBackend[T] {
	b.codec = codec
	return b
}

// Clock sets a custom clock for reading timestamps.
func (b *FileBackend[T]) Clock(clock clockz.Clock) *FileBackend[T] {
	b.clock = clock
	return b
}

// Connect verifies the file is readable.
func (b *FileBackend[T]) Connect(_ context.Context) error {
	if _, err := os.Stat(b.path); err != nil {
		return &ConnectionError{Source: b.Source(""), Err: err}
	}
	return nil
}

// Source returns a file:// locator for the backing document.
func (b *FileBackend[T]) Source(_ string) string {
	return "file://" + b.path
}

// DataKey returns a descriptor inferred from T and the current contents.
func (b *FileBackend[T]) DataKey(ctx context.Context, name string) (DataKey, error) {
	dtype, err := dtypeOf[T]()
	if err != nil {
		return DataKey{}, err
	}
	value, err := b.Value(ctx)
	if err != nil {
		return DataKey{}, err
	}
	return DataKey{
		Source: b.Source(name),
		Dtype:  dtype,
		Shape:  shapeOf(value),
	}, nil
}

// Reading returns the decoded value stamped with the file's modification
// time.
func (b *FileBackend[T]) Reading(ctx context.Context) (Reading[T], error) {
	value, err := b.Value(ctx)
	if err != nil {
		var zero Reading[T]
		return zero, err
	}
	timestamp := b.clock.Now()
	if info, err := os.Stat(b.path); err == nil {
		timestamp = info.ModTime()
	}
	return Reading[T]{
		Value:         value,
		Timestamp:     timestamp,
		AlarmSeverity: SeverityUnknown,
	}, nil
}

// Value reads and decodes the current file contents.
func (b *FileBackend[T]) Value(_ context.Context) (T, error) {
	var value T
	data, err := os.ReadFile(b.path)
	if err != nil {
		return value, fmt.Errorf("read %s: %w", b.path, err)
	}
	if err := b.codec.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode %s: %w", b.path, err)
	}
	return value, nil
}

// Setpoint returns the last value written through Put, falling back to
// the file contents if nothing has been written yet.
func (b *FileBackend[T]) Setpoint(ctx context.Context) (T, error) {
	b.mu.Lock()
	if b.hasSetpoint {
		setpoint := b.setpoint
		b.mu.Unlock()
		return setpoint, nil
	}
	b.mu.Unlock()
	return b.Value(ctx)
}

// Put encodes the value and replaces the file. A file has no default
// action, so a nil value is rejected. The write is synchronous; wait is
// irrelevant.
func (b *FileBackend[T]) Put(_ context.Context, value *T, _ bool) error {
	if value == nil {
		return errors.New("tether: file backend has no default action")
	}
	data, err := b.codec.Marshal(*value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", b.path, err)
	}
	if err := os.WriteFile(b.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", b.path, err)
	}
	b.mu.Lock()
	b.setpoint = *value
	b.hasSetpoint = true
	b.mu.Unlock()
	return nil
}

// SetCallback installs or removes the one push subscription. On install
// a watch goroutine emits the current contents immediately, then follows
// filesystem write events.
func (b *FileBackend[T]) SetCallback(cb ReadingCallback[T]) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb == nil {
		if b.callback != nil {
			close(b.stop)
			b.callback = nil
			b.stop = nil
		}
		return nil
	}
	if b.callback != nil {
		return ErrAlreadyMonitored
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(b.path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch file %s: %w", b.path, err)
	}

	b.callback = cb
	b.stop = make(chan struct{})
	go b.watch(watcher, cb, b.stop)
	return nil
}

// watch follows filesystem events, pushing each decodable state of the
// file through the callback. Undecodable intermediate states are skipped.
func (b *FileBackend[T]) watch(watcher *fsnotify.Watcher, cb ReadingCallback[T], stop chan struct{}) {
	defer watcher.Close()

	emit := func() {
		reading, err := b.Reading(context.Background())
		if err != nil {
			return
		}
		cb(reading, reading.Value)
	}

	// Emit current contents so monitors become ready without waiting
	// for the next change.
	emit()

	for {
		select {
		case <-stop:
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			emit()

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Continue watching despite errors.
		}
	}
}
