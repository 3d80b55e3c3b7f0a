package orchestration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/sink"
	"github.com/nucleus/datapuur/internal/source"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newJob(t *testing.T, reg *Registry, name string) *core.Job {
	t.Helper()
	job, err := reg.Create(context.Background(), NewJob{
		Name:      name,
		Kind:      core.SourceFile,
		Format:    core.FormatDelimited,
		CreatedBy: "alice",
	})
	require.NoError(t, err)
	return job
}

func TestProgress(t *testing.T) {
	assert.Equal(t, 0, Progress(0, 10))
	assert.Equal(t, 0, Progress(5, 0))
	assert.Equal(t, 50, Progress(5, 10))
	assert.Equal(t, 66, Progress(2, 3))
	assert.Equal(t, 99, Progress(10, 10))
	assert.Equal(t, 99, Progress(20, 10))
}

func TestRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	job := newJob(t, reg, "orders.csv")
	assert.Equal(t, core.JobQueued, job.Status)
	assert.NotEmpty(t, job.ID)

	_, err := reg.MarkRunning(ctx, job.ID)
	require.NoError(t, err)

	got, err := reg.UpdateProgress(ctx, job.ID, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)

	// Progress never goes backwards.
	got, err = reg.UpdateProgress(ctx, job.ID, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, 50, got.Progress)

	got, err = reg.Complete(ctx, job.ID, 10, "/tmp/a.parquet", "")
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.EndTime)
	require.NotNil(t, got.Duration)
	assert.GreaterOrEqual(t, *got.Duration, time.Duration(0))

	_, err = reg.UpdateProgress(ctx, job.ID, 11, 10)
	assert.ErrorIs(t, err, ErrJobTerminal)
	_, err = reg.Fail(ctx, job.ID, "late")
	assert.ErrorIs(t, err, ErrJobTerminal)

	stored, err := reg.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, stored.Status)
	assert.Empty(t, stored.Error)
}

func TestRegistryCancel(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)

	queued := newJob(t, reg, "a")
	got, err := reg.Cancel(ctx, queued.ID)
	require.NoError(t, err)
	assert.Equal(t, core.JobFailed, got.Status)
	assert.Equal(t, core.CancelledMessage, got.Error)
	assert.NotNil(t, got.EndTime)

	_, err = reg.Cancel(ctx, queued.ID)
	assert.True(t, core.HasCode(err, core.CodeInvalidState))
	assert.Contains(t, err.Error(), "Cannot cancel job with status: failed")

	_, err = reg.Cancel(ctx, "missing")
	assert.True(t, core.HasCode(err, core.CodeNotFound))
	_, err = reg.Get(ctx, "missing")
	assert.True(t, core.HasCode(err, core.CodeNotFound))
}

func TestRegistrySnapshotsDoNotAlias(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	job, err := reg.Create(ctx, NewJob{Name: "x", Config: map[string]any{"chunk_size": 10}})
	require.NoError(t, err)

	job.Config["chunk_size"] = 99
	job.Status = core.JobCompleted

	stored, err := reg.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Config["chunk_size"])
	assert.Equal(t, core.JobQueued, stored.Status)
}

func TestRegistryList(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	reg.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	a := newJob(t, reg, "alpha.csv")
	b := newJob(t, reg, "beta.json")
	c := newJob(t, reg, "gamma.csv")
	_, err := reg.Cancel(ctx, b.ID)
	require.NoError(t, err)

	page, err := reg.List(ctx, ListFilter{}, core.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{page.Items[0].ID, page.Items[1].ID, page.Items[2].ID})

	page, err = reg.List(ctx, ListFilter{Status: core.JobFailed}, core.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, b.ID, page.Items[0].ID)

	page, err = reg.List(ctx, ListFilter{Search: "CSV"}, core.PageRequest{Page: 2, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, a.ID, page.Items[0].ID)
}

func TestRegistryConcurrentJobs(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(nil)
	jobs := []*core.Job{newJob(t, reg, "a"), newJob(t, reg, "b")}

	var wg sync.WaitGroup
	for i, job := range jobs {
		wg.Add(1)
		go func(id string, total int64) {
			defer wg.Done()
			for rows := int64(1); rows <= total; rows++ {
				_, err := reg.UpdateProgress(ctx, id, rows, total)
				assert.NoError(t, err)
			}
			_, err := reg.Complete(ctx, id, total, "", "")
			assert.NoError(t, err)
		}(job.ID, int64(100*(i+1)))
	}
	wg.Wait()

	for i, job := range jobs {
		got, err := reg.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 100*(i+1), got.RowsProcessed)
		assert.Equal(t, 100, got.Progress)
	}
}

func TestPoolRejectsWhenFull(t *testing.T) {
	release := make(chan struct{})
	pool := NewPool(1, 1, func(ctx context.Context, id string) *core.Job {
		<-release
		return &core.Job{ID: id, Status: core.JobCompleted}
	})

	var accepted []<-chan *core.Job
	var rejected error
	for i := 0; i < 3; i++ {
		done, err := pool.Submit("job")
		if err != nil {
			rejected = err
			break
		}
		accepted = append(accepted, done)
	}
	require.Error(t, rejected)
	assert.True(t, core.HasCode(rejected, core.CodeUnavailable))

	close(release)
	for _, done := range accepted {
		job := <-done
		assert.Equal(t, core.JobCompleted, job.Status)
	}
	require.NoError(t, pool.Shutdown(context.Background()))

	_, err := pool.Submit("late")
	assert.True(t, core.HasCode(err, core.CodeUnavailable))
}

// scriptedReader serves fixed batches and calls hook before each one.
type scriptedReader struct {
	schema  *core.Schema
	batches []core.Batch
	hook    func(i int)
	pos     int
	closed  bool
}

func (r *scriptedReader) Open(ctx context.Context) error { return nil }
func (r *scriptedReader) Schema() *core.Schema          { return r.schema }

func (r *scriptedReader) TotalRows() int64 {
	var n int64
	for _, b := range r.batches {
		n += int64(b.Len())
	}
	return n
}

func (r *scriptedReader) NextBatch(ctx context.Context) (core.Batch, error) {
	if r.pos >= len(r.batches) {
		return core.Batch{}, io.EOF
	}
	if r.hook != nil {
		r.hook(r.pos)
	}
	b := r.batches[r.pos]
	r.pos++
	return b, nil
}

func (r *scriptedReader) Close() error {
	r.closed = true
	return nil
}

func intSchema() *core.Schema {
	return &core.Schema{Name: "nums", Fields: []core.Field{{Name: "n", Type: core.TypeInteger}}}
}

func batchOf(vals ...int64) core.Batch {
	rows := make([][]any, len(vals))
	for i, v := range vals {
		rows[i] = []any{v}
	}
	return core.Batch{Rows: rows}
}

func readerOpener(r source.Reader) Opener {
	return func(ctx context.Context) (source.Reader, error) { return r, nil }
}

func newOrchestrator(t *testing.T, reg *Registry, pub Publisher) *Orchestrator {
	t.Helper()
	o := NewOrchestrator(reg, Options{
		ArtifactDir: t.TempDir(),
		Workers:     2,
		QueueSize:   4,
		Publisher:   pub,
		Logger:      quietLogger(),
	})
	t.Cleanup(func() { _ = o.Shutdown(context.Background()) })
	return o
}

func TestOrchestratorDelimitedEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,Alice\n2,Bob\n3,\n"), 0o644))

	reg := NewRegistry(nil)
	o := newOrchestrator(t, reg, nil)
	job := newJob(t, reg, "people.csv")

	src := &core.UploadedSource{ID: "s1", Filename: "people.csv", Path: path, Format: core.FormatDelimited}
	done, err := o.Start(context.Background(), job, FileOpener(src, 2))
	require.NoError(t, err)

	final := <-done
	require.NotNil(t, final)
	assert.Equal(t, core.JobCompleted, final.Status, final.Error)
	assert.Equal(t, 100, final.Progress)
	assert.EqualValues(t, 3, final.RowsProcessed)
	assert.Equal(t, o.ArtifactPath(job.ID), final.ArtifactPath)

	table, err := sink.ReadTable(final.ArtifactPath, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, table.NumRows())
	assert.Equal(t, 2, table.RowGroups)
	assert.Nil(t, table.Row(2)[1])
}

func TestOrchestratorProgressMonotonic(t *testing.T) {
	reg := NewRegistry(nil)
	o := newOrchestrator(t, reg, nil)
	job := newJob(t, reg, "nums")

	var seen []int
	r := &scriptedReader{
		schema:  intSchema(),
		batches: []core.Batch{batchOf(1, 2), batchOf(3, 4), batchOf(5, 6), batchOf(7)},
	}
	r.hook = func(int) {
		got, err := reg.Get(context.Background(), job.ID)
		if assert.NoError(t, err) {
			seen = append(seen, got.Progress)
		}
	}

	done, err := o.Start(context.Background(), job, readerOpener(r))
	require.NoError(t, err)
	final := <-done
	seen = append(seen, final.Progress)

	assert.Equal(t, core.JobCompleted, final.Status)
	assert.IsNonDecreasing(t, seen)
	assert.Equal(t, 100, seen[len(seen)-1])
	for _, p := range seen[:len(seen)-1] {
		assert.Less(t, p, 100)
	}
	assert.True(t, r.closed)
}

func TestOrchestratorCancelMidRun(t *testing.T) {
	reg := NewRegistry(nil)
	o := newOrchestrator(t, reg, nil)
	job := newJob(t, reg, "nums")

	r := &scriptedReader{
		schema:  intSchema(),
		batches: []core.Batch{batchOf(1), batchOf(2), batchOf(3)},
	}
	r.hook = func(i int) {
		if i == 1 {
			_, err := reg.Cancel(context.Background(), job.ID)
			assert.NoError(t, err)
		}
	}

	done, err := o.Start(context.Background(), job, readerOpener(r))
	require.NoError(t, err)
	final := <-done

	assert.Equal(t, core.JobFailed, final.Status)
	assert.Equal(t, core.CancelledMessage, final.Error)
	assert.Less(t, final.Progress, 100)
	_, statErr := os.Stat(o.ArtifactPath(job.ID))
	assert.True(t, os.IsNotExist(statErr))
}

func TestOrchestratorCancelledBeforeStart(t *testing.T) {
	reg := NewRegistry(nil)
	o := newOrchestrator(t, reg, nil)
	job := newJob(t, reg, "nums")
	_, err := reg.Cancel(context.Background(), job.ID)
	require.NoError(t, err)

	opened := false
	done, err := o.Start(context.Background(), job, func(ctx context.Context) (source.Reader, error) {
		opened = true
		return nil, errors.New("unreachable")
	})
	require.NoError(t, err)
	final := <-done
	assert.False(t, opened)
	assert.Equal(t, core.CancelledMessage, final.Error)
}

func TestOrchestratorFailures(t *testing.T) {
	reg := NewRegistry(nil)
	o := newOrchestrator(t, reg, nil)

	t.Run("opener error", func(t *testing.T) {
		job := newJob(t, reg, "db")
		done, err := o.Start(context.Background(), job, func(ctx context.Context) (source.Reader, error) {
			return nil, core.ConnectionError(errors.New("refused"), "Connection failed")
		})
		require.NoError(t, err)
		final := <-done
		assert.Equal(t, core.JobFailed, final.Status)
		assert.Equal(t, "Connection failed: refused", final.Error)
		assert.NotNil(t, final.EndTime)
	})

	t.Run("panic", func(t *testing.T) {
		job := newJob(t, reg, "boom")
		r := &scriptedReader{schema: intSchema(), batches: []core.Batch{batchOf(1), batchOf(2)}}
		r.hook = func(i int) {
			if i == 1 {
				panic("reader exploded")
			}
		}
		done, err := o.Start(context.Background(), job, readerOpener(r))
		require.NoError(t, err)
		final := <-done
		assert.Equal(t, core.JobFailed, final.Status)
		assert.Contains(t, final.Error, "reader exploded")
		_, statErr := os.Stat(o.ArtifactPath(job.ID))
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("no columns", func(t *testing.T) {
		job := newJob(t, reg, "empty")
		r := &scriptedReader{schema: &core.Schema{Name: "empty"}}
		done, err := o.Start(context.Background(), job, readerOpener(r))
		require.NoError(t, err)
		final := <-done
		assert.Equal(t, core.JobFailed, final.Status)
		assert.Equal(t, "source contains no columns", final.Error)
	})

	t.Run("missing file", func(t *testing.T) {
		job := newJob(t, reg, "gone.csv")
		src := &core.UploadedSource{Filename: "gone.csv", Path: filepath.Join(t.TempDir(), "gone.csv"), Format: core.FormatDelimited}
		done, err := o.Start(context.Background(), job, FileOpener(src, 10))
		require.NoError(t, err)
		final := <-done
		assert.Equal(t, core.JobFailed, final.Status)
		assert.NotEmpty(t, final.Error)
	})
}

type fakePublisher struct {
	err  error
	keys []string
}

func (p *fakePublisher) Publish(ctx context.Context, jobID, localPath string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.keys = append(p.keys, jobID)
	return "s3://bucket/" + jobID + ".parquet", nil
}

func TestOrchestratorPublishesArtifact(t *testing.T) {
	reg := NewRegistry(nil)
	pub := &fakePublisher{}
	o := newOrchestrator(t, reg, pub)
	job := newJob(t, reg, "nums")

	done, err := o.Start(context.Background(), job, readerOpener(&scriptedReader{schema: intSchema(), batches: []core.Batch{batchOf(1)}}))
	require.NoError(t, err)
	final := <-done
	assert.Equal(t, "s3://bucket/"+job.ID+".parquet", final.ArtifactURI)
	assert.Equal(t, []string{job.ID}, pub.keys)
}

func TestOrchestratorMirrorFailureKeepsJob(t *testing.T) {
	reg := NewRegistry(nil)
	o := newOrchestrator(t, reg, &fakePublisher{err: errors.New("bucket gone")})
	job := newJob(t, reg, "nums")

	done, err := o.Start(context.Background(), job, readerOpener(&scriptedReader{schema: intSchema(), batches: []core.Batch{batchOf(1)}}))
	require.NoError(t, err)
	final := <-done
	assert.Equal(t, core.JobCompleted, final.Status)
	assert.Empty(t, final.ArtifactURI)
	assert.FileExists(t, final.ArtifactPath)
}

func TestOrchestratorQueueFull(t *testing.T) {
	reg := NewRegistry(nil)
	o := NewOrchestrator(reg, Options{ArtifactDir: t.TempDir(), Workers: 1, QueueSize: 0, Logger: quietLogger()})
	release := make(chan struct{})
	blocking := func(ctx context.Context) (source.Reader, error) {
		<-release
		return &scriptedReader{schema: intSchema()}, nil
	}

	var rejected *core.Job
	var dones []<-chan *core.Job
	for i := 0; i < 3 && rejected == nil; i++ {
		job := newJob(t, reg, "slow")
		done, err := o.Start(context.Background(), job, blocking)
		if err != nil {
			assert.True(t, core.HasCode(err, core.CodeUnavailable))
			rejected, _ = reg.Get(context.Background(), job.ID)
			continue
		}
		dones = append(dones, done)
	}
	require.NotNil(t, rejected)
	assert.Equal(t, core.JobFailed, rejected.Status)
	assert.Contains(t, rejected.Error, "queue is full")

	close(release)
	for _, done := range dones {
		<-done
	}
	require.NoError(t, o.Shutdown(context.Background()))
}
