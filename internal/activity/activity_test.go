package activity

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for the recorder goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestMemoryRecorderDefaultsIdentity(t *testing.T) {
	var r MemoryRecorder
	r.Record(context.Background(), "", "File upload", "Uploaded file: a.csv (CSV)")
	r.Record(context.Background(), "alice", "Job cancelled", "x")

	entries := r.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, Anonymous, entries[0].Username)
	assert.Equal(t, "File upload", entries[0].Action)
	assert.Equal(t, "alice", entries[1].Username)
	assert.False(t, entries[1].Timestamp.IsZero())
}

func TestLogRecorder(t *testing.T) {
	var buf bytes.Buffer
	r := LogRecorder{Logger: slog.New(slog.NewTextHandler(&buf, nil))}
	r.Record(context.Background(), "bob", "Schema detection", "people.csv")
	assert.Contains(t, buf.String(), "username=bob")
	assert.Contains(t, buf.String(), `action="Schema detection"`)
}

func TestAsyncRecorderWritesInOrder(t *testing.T) {
	mem := &MemoryRecorder{}
	r := NewAsyncRecorder(mem, 16, slog.New(slog.NewTextHandler(io.Discard, nil)))
	for _, action := range []string{"a", "b", "c"} {
		r.Record(context.Background(), "alice", action, "")
	}
	require.NoError(t, r.Close(context.Background()))

	entries := mem.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "c", entries[2].Action)

	// Records after Close are ignored.
	r.Record(context.Background(), "alice", "late", "")
	assert.Len(t, mem.Entries(), 3)
}

type failingWriter struct{}

func (failingWriter) Write(context.Context, Entry) error { return errors.New("database down") }

func TestAsyncRecorderSwallowsWriteErrors(t *testing.T) {
	var logs syncBuffer
	r := NewAsyncRecorder(failingWriter{}, 4, slog.New(slog.NewTextHandler(&logs, nil)))
	r.Record(context.Background(), "alice", "File upload", "")
	require.NoError(t, r.Close(context.Background()))
	assert.Contains(t, logs.String(), "failed to record activity")
	assert.Contains(t, logs.String(), "database down")
}

type blockingWriter struct {
	release chan struct{}
}

func (w blockingWriter) Write(ctx context.Context, e Entry) error {
	<-w.release
	return nil
}

func TestAsyncRecorderDropsWhenFull(t *testing.T) {
	var logs syncBuffer
	w := blockingWriter{release: make(chan struct{})}
	r := NewAsyncRecorder(w, 1, slog.New(slog.NewTextHandler(&logs, nil)))

	start := time.Now()
	for i := 0; i < 5; i++ {
		r.Record(context.Background(), "alice", "spam", "")
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Contains(t, logs.String(), "activity buffer full")

	close(w.release)
	require.NoError(t, r.Close(context.Background()))
}

func TestPostgresWriter(t *testing.T) {
	dsn := os.Getenv("DATAPUUR_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("Skipping integration test: DATAPUUR_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	w, err := NewPostgresWriter(ctx, dsn)
	require.NoError(t, err)
	defer w.Close()

	e := newEntry("integration", "Test activity", time.Now().String())
	require.NoError(t, w.Write(ctx, e))

	recent, err := w.Recent(ctx, 10)
	require.NoError(t, err)
	found := false
	for _, r := range recent {
		if r.Details == e.Details {
			found = true
		}
	}
	assert.True(t, found)
}
