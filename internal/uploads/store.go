package uploads

import (
	"context"
	"sync"

	"github.com/nucleus/datapuur/internal/core"
)

// SourceStore persists uploaded source records.
type SourceStore interface {
	Get(ctx context.Context, id string) (*core.UploadedSource, bool, error)
	Put(ctx context.Context, src *core.UploadedSource) error
	List(ctx context.Context) ([]*core.UploadedSource, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sources in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	sources map[string]*core.UploadedSource
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sources: make(map[string]*core.UploadedSource)}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*core.UploadedSource, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.sources[id]
	if !ok {
		return nil, false, nil
	}
	return src.Clone(), true, nil
}

func (s *MemoryStore) Put(_ context.Context, src *core.UploadedSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[src.ID] = src.Clone()
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]*core.UploadedSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.UploadedSource, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src.Clone())
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sources, id)
	return nil
}
