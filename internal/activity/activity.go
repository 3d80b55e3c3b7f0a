// Package activity records user actions for audit. Recording is best effort:
// it never blocks or fails the operation being audited.
package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nucleus/datapuur/internal/metrics"
)

// Anonymous is recorded when no identity is known.
const Anonymous = "anonymous"

// Entry is one audit record.
type Entry struct {
	Username  string    `json:"username"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Timestamp time.Time `json:"timestamp"`
}

// Recorder accepts audit records.
type Recorder interface {
	Record(ctx context.Context, identity, action, details string)
}

// Writer persists entries synchronously.
type Writer interface {
	Write(ctx context.Context, e Entry) error
}

func newEntry(identity, action, details string) Entry {
	if identity == "" {
		identity = Anonymous
	}
	return Entry{Username: identity, Action: action, Details: details, Timestamp: time.Now().UTC()}
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, string, string, string) {}

// LogRecorder writes entries to a structured logger.
type LogRecorder struct {
	Logger *slog.Logger
}

func (r LogRecorder) Record(ctx context.Context, identity, action, details string) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := newEntry(identity, action, details)
	logger.InfoContext(ctx, "activity", "username", e.Username, "action", e.Action, "details", e.Details)
}

// MemoryRecorder keeps entries in memory, newest last.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *MemoryRecorder) Record(_ context.Context, identity, action, details string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, newEntry(identity, action, details))
}

func (r *MemoryRecorder) Write(_ context.Context, e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

// Entries returns a copy of everything recorded.
func (r *MemoryRecorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// AsyncRecorder hands entries to a Writer on a background goroutine. When
// the buffer is full the entry is dropped; write errors are logged.
type AsyncRecorder struct {
	w       Writer
	logger  *slog.Logger
	timeout time.Duration
	entries chan Entry
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsyncRecorder starts the background writer with room for buffer
// pending entries.
func NewAsyncRecorder(w Writer, buffer int, logger *slog.Logger) *AsyncRecorder {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &AsyncRecorder{
		w:       w,
		logger:  logger,
		timeout: 5 * time.Second,
		entries: make(chan Entry, buffer),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *AsyncRecorder) Record(_ context.Context, identity, action, details string) {
	e := newEntry(identity, action, details)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.entries <- e:
	default:
		metrics.CounterActivityDropped.Inc()
		r.logger.Warn("activity buffer full, dropping entry", "action", e.Action, "username", e.Username)
	}
}

func (r *AsyncRecorder) loop() {
	defer close(r.done)
	for e := range r.entries {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		if err := r.w.Write(ctx, e); err != nil {
			r.logger.Warn("failed to record activity", "action", e.Action, "error", err)
		}
		cancel()
	}
}

// Close stops accepting entries and waits for pending ones to be written.
func (r *AsyncRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.entries)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
