// Package uploads stores uploaded source files and tracks them.
package uploads

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nucleus/datapuur/internal/core"
)

// formats maps accepted file extensions to their source format.
var formats = map[string]core.SourceFormat{
	"csv":  core.FormatDelimited,
	"json": core.FormatTree,
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	// Type is a file extension such as "csv".
	Type       string
	Search     string
	UploadedBy string
}

// Manager writes uploads to a directory and registers them in a SourceStore.
type Manager struct {
	dir   string
	store SourceStore
	now   func() time.Time
}

// NewManager creates a manager storing files in dir. A nil store gets a
// MemoryStore.
func NewManager(dir string, store SourceStore) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{dir: dir, store: store, now: time.Now}
}

// FormatOf returns the source format of filename from its extension.
func FormatOf(filename string) (core.SourceFormat, string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	format, ok := formats[ext]
	if !ok {
		return "", ext, core.ValidationError("Only CSV and JSON files are supported")
	}
	return format, ext, nil
}

// Save stores r as <uuid>.<ext> and registers it.
func (m *Manager) Save(ctx context.Context, filename string, r io.Reader, chunkSize int, identity string) (*core.UploadedSource, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return nil, core.ValidationError("filename is required")
	}
	format, ext, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	id := uuid.NewString()
	path := filepath.Join(m.dir, id+"."+ext)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("save upload: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("save upload: %w", err)
	}

	src := &core.UploadedSource{
		ID:         id,
		Filename:   filename,
		Path:       path,
		Format:     format,
		Type:       ext,
		UploadedBy: identity,
		UploadedAt: m.now(),
		ChunkSize:  chunkSize,
		SizeBytes:  size,
	}
	if err := m.store.Put(ctx, src); err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return src.Clone(), nil
}

// Get returns the source or a NotFoundError.
func (m *Manager) Get(ctx context.Context, id string) (*core.UploadedSource, error) {
	src, ok, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, core.NotFoundError("File not found")
	}
	return src, nil
}

// CacheSchema stores an inferred schema on the source record.
func (m *Manager) CacheSchema(ctx context.Context, id string, schema *core.Schema) error {
	src, err := m.Get(ctx, id)
	if err != nil {
		return err
	}
	src.Schema = schema.Clone()
	return m.store.Put(ctx, src)
}

// List returns one page of uploads, newest first.
func (m *Manager) List(ctx context.Context, filter ListFilter, page core.PageRequest) (core.Page[*core.UploadedSource], error) {
	all, err := m.store.List(ctx)
	if err != nil {
		return core.Page[*core.UploadedSource]{}, err
	}
	typ := strings.ToLower(strings.TrimPrefix(filter.Type, "."))
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := all[:0]
	for _, src := range all {
		if typ != "" && src.Type != typ {
			continue
		}
		if filter.UploadedBy != "" && src.UploadedBy != filter.UploadedBy {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(src.Filename), search) {
			continue
		}
		matched = append(matched, src)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].UploadedAt.Equal(matched[j].UploadedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].UploadedAt.After(matched[j].UploadedAt)
	})
	return core.Paginate(matched, page), nil
}
