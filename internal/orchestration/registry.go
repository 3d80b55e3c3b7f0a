package orchestration

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nucleus/datapuur/internal/core"
)

// ErrJobTerminal is returned by registry writes against a completed or
// failed job. The write is dropped.
var ErrJobTerminal = errors.New("job already reached a terminal status")

// NewJob describes a job to register.
type NewJob struct {
	Name      string
	Kind      core.SourceKind
	Format    core.SourceFormat
	Details   string
	Config    map[string]any
	CreatedBy string
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status    core.JobStatus
	Kind      core.SourceKind
	Search    string
	CreatedBy string
}

// Registry owns the job state machine on top of a JobStore:
// queued -> running -> completed|failed.
type Registry struct {
	store JobStore
	now   func() time.Time
}

// NewRegistry creates a registry over store. A nil store gets a MemoryStore.
func NewRegistry(store JobStore) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{store: store, now: time.Now}
}

// Create registers a queued job with a fresh id.
func (r *Registry) Create(ctx context.Context, req NewJob) (*core.Job, error) {
	job := &core.Job{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Kind:      req.Kind,
		Format:    req.Format,
		Status:    core.JobQueued,
		StartTime: r.now(),
		Details:   req.Details,
		Config:    req.Config,
		CreatedBy: req.CreatedBy,
	}
	if err := r.store.Put(ctx, job); err != nil {
		return nil, err
	}
	return job.Clone(), nil
}

// Get returns a snapshot of the job.
func (r *Registry) Get(ctx context.Context, id string) (*core.Job, error) {
	job, ok, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NotFoundError("Job %s not found", id)
	}
	return job, nil
}

// MarkRunning moves a queued job to running.
func (r *Registry) MarkRunning(ctx context.Context, id string) (*core.Job, error) {
	return r.updateState(ctx, id, func(job *core.Job) {
		job.Status = core.JobRunning
	})
}

// UpdateProgress records rows written so far. Progress never decreases and
// stays below 100 until Complete.
func (r *Registry) UpdateProgress(ctx context.Context, id string, rows, total int64) (*core.Job, error) {
	return r.updateState(ctx, id, func(job *core.Job) {
		job.Status = core.JobRunning
		job.RowsProcessed = rows
		job.TotalRows = total
		if p := Progress(rows, total); p > job.Progress {
			job.Progress = p
		}
	})
}

// Complete marks the job done with its artifact locations.
func (r *Registry) Complete(ctx context.Context, id string, rows int64, artifactPath, artifactURI string) (*core.Job, error) {
	return r.updateState(ctx, id, func(job *core.Job) {
		job.Status = core.JobCompleted
		job.Progress = 100
		job.RowsProcessed = rows
		if job.TotalRows < rows {
			job.TotalRows = rows
		}
		job.ArtifactPath = artifactPath
		job.ArtifactURI = artifactURI
		job.Finish(r.now())
	})
}

// Fail marks the job failed with message.
func (r *Registry) Fail(ctx context.Context, id, message string) (*core.Job, error) {
	if message == "" {
		message = "ingestion failed"
	}
	return r.updateState(ctx, id, func(job *core.Job) {
		job.Status = core.JobFailed
		job.Error = message
		job.Finish(r.now())
	})
}

// Cancel fails a queued or running job with CancelledMessage. Any other
// status is an InvalidStateError.
func (r *Registry) Cancel(ctx context.Context, id string) (*core.Job, error) {
	return r.store.Update(ctx, id, func(job *core.Job) error {
		if job.Status != core.JobQueued && job.Status != core.JobRunning {
			return core.InvalidStateError("Cannot cancel job with status: %s", job.Status)
		}
		job.Status = core.JobFailed
		job.Error = core.CancelledMessage
		job.Finish(r.now())
		return nil
	})
}

// List returns one page of jobs, newest first.
func (r *Registry) List(ctx context.Context, filter ListFilter, page core.PageRequest) (core.Page[*core.Job], error) {
	jobs, err := r.All(ctx, filter)
	if err != nil {
		return core.Page[*core.Job]{}, err
	}
	return core.Paginate(jobs, page), nil
}

// All returns every job matching filter, newest first.
func (r *Registry) All(ctx context.Context, filter ListFilter) ([]*core.Job, error) {
	jobs, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := jobs[:0]
	for _, job := range jobs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && job.Kind != filter.Kind {
			continue
		}
		if filter.CreatedBy != "" && job.CreatedBy != filter.CreatedBy {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(job.Name), search) &&
			!strings.Contains(strings.ToLower(job.Details), search) {
			continue
		}
		matched = append(matched, job)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].StartTime.After(matched[j].StartTime)
	})
	return matched, nil
}

// updateState applies mutate unless the job is already terminal.
func (r *Registry) updateState(ctx context.Context, id string, mutate func(*core.Job)) (*core.Job, error) {
	return r.store.Update(ctx, id, func(job *core.Job) error {
		if job.Status.IsTerminal() {
			return ErrJobTerminal
		}
		mutate(job)
		return nil
	})
}

// Progress is floor(min(rows/total, 0.99) * 100).
func Progress(rows, total int64) int {
	if total <= 0 || rows <= 0 {
		return 0
	}
	ratio := math.Min(float64(rows)/float64(total), 0.99)
	return int(math.Floor(ratio * 100))
}
