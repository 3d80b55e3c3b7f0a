package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/metrics"
	"github.com/nucleus/datapuur/internal/sink"
	"github.com/nucleus/datapuur/internal/source"
)

// Opener builds the reader for one job. It runs on the worker, so
// connection setup does not block the caller that started the job.
type Opener func(ctx context.Context) (source.Reader, error)

// Publisher mirrors a finished artifact elsewhere and returns its URI.
type Publisher interface {
	Publish(ctx context.Context, jobID, localPath string) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	ArtifactDir string
	Workers     int
	QueueSize   int
	// Publisher is optional. Mirror failures are logged and the local
	// artifact stays authoritative.
	Publisher Publisher
	Logger    *slog.Logger
}

// Orchestrator runs ingestion jobs: source reader -> Parquet artifact, with
// progress recorded in the Registry. It is the failure boundary for a run;
// every error ends up on the job, never with the caller.
type Orchestrator struct {
	registry    *Registry
	artifactDir string
	publisher   Publisher
	logger      *slog.Logger
	pool        *Pool

	mu      sync.Mutex
	openers map[string]Opener
}

// errAborted marks a run stopped because the job went terminal under it.
var errAborted = errors.New("job aborted")

// NewOrchestrator creates an orchestrator and starts its worker pool.
func NewOrchestrator(registry *Registry, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		registry:    registry,
		artifactDir: opts.ArtifactDir,
		publisher:   opts.Publisher,
		logger:      logger,
		openers:     make(map[string]Opener),
	}
	o.pool = NewPool(opts.Workers, opts.QueueSize, o.Run)
	return o
}

// ArtifactPath is where the artifact of jobID is written.
func (o *Orchestrator) ArtifactPath(jobID string) string {
	return filepath.Join(o.artifactDir, jobID+".parquet")
}

// Start queues a registered job. When the queue is full the job is failed
// and an E_UNAVAILABLE error is returned.
func (o *Orchestrator) Start(ctx context.Context, job *core.Job, open Opener) (<-chan *core.Job, error) {
	o.mu.Lock()
	o.openers[job.ID] = open
	o.mu.Unlock()

	done, err := o.pool.Submit(job.ID)
	if err != nil {
		o.takeOpener(job.ID)
		if _, ferr := o.registry.Fail(ctx, job.ID, err.Error()); ferr != nil && !errors.Is(ferr, ErrJobTerminal) {
			o.logger.Warn("failed to record rejected job", "job_id", job.ID, "error", ferr)
		}
		metrics.CounterJobsFinished.WithLabelValues("rejected").Inc()
		return nil, err
	}
	metrics.CounterJobsStarted.WithLabelValues(string(job.Kind)).Inc()
	return done, nil
}

// Shutdown drains the pool.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	return o.pool.Shutdown(ctx)
}

func (o *Orchestrator) takeOpener(jobID string) Opener {
	o.mu.Lock()
	defer o.mu.Unlock()
	open := o.openers[jobID]
	delete(o.openers, jobID)
	return open
}

// Run executes one job to a terminal status and returns the final snapshot.
func (o *Orchestrator) Run(ctx context.Context, jobID string) (final *core.Job) {
	log := o.logger.With("job_id", jobID)
	open := o.takeOpener(jobID)
	var w *sink.Writer

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("ingestion panicked", "panic", rec)
			o.discard(w, log)
			o.fail(ctx, jobID, fmt.Errorf("internal error: %v", rec), log)
		}
		final, _ = o.registry.Get(context.WithoutCancel(ctx), jobID)
	}()

	if open == nil {
		o.fail(ctx, jobID, errors.New("no source configured for job"), log)
		return
	}

	err := o.execute(ctx, jobID, open, &w, log)
	switch {
	case err == nil:
		metrics.CounterJobsFinished.WithLabelValues(string(core.JobCompleted)).Inc()
	case errors.Is(err, errAborted):
		o.discard(w, log)
		log.Info("ingestion stopped, job already terminal")
		metrics.CounterJobsFinished.WithLabelValues("aborted").Inc()
	default:
		o.discard(w, log)
		o.fail(ctx, jobID, err, log)
	}
	return
}

func (o *Orchestrator) execute(ctx context.Context, jobID string, open Opener, wp **sink.Writer, log *slog.Logger) error {
	job, err := o.registry.MarkRunning(ctx, jobID)
	if err != nil {
		return terminalOr(err)
	}
	metrics.GaugeJobsRunning.Inc()
	defer metrics.GaugeJobsRunning.Dec()
	log.Info("ingestion started", "name", job.Name, "format", job.Format)

	reader, err := open(ctx)
	if err != nil {
		return err
	}
	defer reader.Close()
	if err := reader.Open(ctx); err != nil {
		return err
	}

	path := o.ArtifactPath(jobID)
	w, err := sink.Create(path, reader.Schema())
	if err != nil {
		return err
	}
	*wp = w

	total := reader.TotalRows()
	if _, err := o.registry.UpdateProgress(ctx, jobID, 0, total); err != nil {
		return terminalOr(err)
	}

	var rows int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		batch, err := reader.NextBatch(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if err := w.Append(batch); err != nil {
			return err
		}
		metrics.HistogramBatchDuration.Observe(time.Since(start).Seconds())
		metrics.CounterRowsIngested.WithLabelValues(string(job.Format)).Add(float64(batch.Len()))
		rows += int64(batch.Len())

		if _, err := o.registry.UpdateProgress(ctx, jobID, rows, total); err != nil {
			return terminalOr(err)
		}
		log.Debug("batch written", "rows", rows, "total", total)
	}
	if err := w.Close(); err != nil {
		return err
	}

	uri := o.publish(ctx, jobID, path, log)
	if _, err := o.registry.Complete(ctx, jobID, rows, path, uri); err != nil {
		return terminalOr(err)
	}
	log.Info("ingestion completed", "rows", rows, "artifact", path)
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, jobID, path string, log *slog.Logger) string {
	if o.publisher == nil {
		return ""
	}
	uri, err := o.publisher.Publish(ctx, jobID, path)
	if err != nil {
		log.Warn("artifact mirror failed", "error", err)
		return ""
	}
	return uri
}

func (o *Orchestrator) fail(ctx context.Context, jobID string, err error, log *slog.Logger) {
	log.Error("ingestion failed", "error", err)
	metrics.CounterJobsFinished.WithLabelValues(string(core.JobFailed)).Inc()
	if _, ferr := o.registry.Fail(context.WithoutCancel(ctx), jobID, err.Error()); ferr != nil && !errors.Is(ferr, ErrJobTerminal) {
		log.Warn("failed to record job failure", "error", ferr)
	}
}

func (o *Orchestrator) discard(w *sink.Writer, log *slog.Logger) {
	if w == nil {
		return
	}
	if err := w.Abort(); err != nil && !os.IsNotExist(err) {
		log.Warn("failed to remove partial artifact", "path", w.Path(), "error", err)
	}
}

func terminalOr(err error) error {
	if errors.Is(err, ErrJobTerminal) {
		return errAborted
	}
	return err
}
