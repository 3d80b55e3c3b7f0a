package orchestration

import (
	"context"
	"sync"

	"github.com/nucleus/datapuur/internal/core"
)

// JobStore persists job records. Implementations must be safe for concurrent
// use and must never hand out records that alias their own state.
type JobStore interface {
	Get(ctx context.Context, id string) (*core.Job, bool, error)
	Put(ctx context.Context, job *core.Job) error
	List(ctx context.Context) ([]*core.Job, error)
	Delete(ctx context.Context, id string) error
	// Update applies fn to the stored record atomically. When fn returns an
	// error nothing is written and the error is returned.
	Update(ctx context.Context, id string, fn func(*core.Job) error) (*core.Job, error)
}

// MemoryStore keeps jobs in process memory; state is lost on restart.
type MemoryStore struct {
	mu   sync.Mutex
	jobs map[string]*core.Job
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*core.Job)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*core.Job, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, false, nil
	}
	return job.Clone(), true, nil
}

func (s *MemoryStore) Put(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*core.Job) error) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, core.NotFoundError("Job %s not found", id)
	}
	working := job.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	s.jobs[id] = working
	return working.Clone(), nil
}
