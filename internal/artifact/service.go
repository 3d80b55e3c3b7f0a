// Package artifact answers read queries over completed ingestion artifacts:
// preview, schema, statistics and export.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/sink"
)

const (
	DefaultPreviewLimit = 10
	MaxPreviewLimit     = 1000
)

// JobLookup resolves jobs by id; *orchestration.Registry satisfies it.
type JobLookup interface {
	Get(ctx context.Context, id string) (*core.Job, error)
}

// Service reads artifacts of completed jobs.
type Service struct {
	jobs    JobLookup
	tempDir string
}

// NewService creates a service. Exports are staged in tempDir, or the OS
// temp dir when empty.
func NewService(jobs JobLookup, tempDir string) *Service {
	return &Service{jobs: jobs, tempDir: tempDir}
}

// Record is one row keyed by column name. It marshals as a JSON object with
// keys in column order.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value of key, or nil.
func (r Record) Get(key string) any {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i]
		}
	}
	return nil
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(r.Values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Preview is the leading rows of an artifact. Delimited-origin jobs fill
// Columns and Rows; other origins fill Records.
type Preview struct {
	JobID     string            `json:"job_id"`
	Format    core.SourceFormat `json:"format"`
	Columns   []string          `json:"columns,omitempty"`
	Rows      [][]any           `json:"rows,omitempty"`
	Records   []Record          `json:"records,omitempty"`
	TotalRows int64             `json:"total_rows"`
}

// Preview returns up to limit rows. A non-positive limit uses the default;
// larger limits are capped.
func (s *Service) Preview(ctx context.Context, jobID string, limit int) (*Preview, error) {
	job, err := s.completedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > MaxPreviewLimit {
		limit = MaxPreviewLimit
	}
	t, err := s.read(job, int64(limit))
	if err != nil {
		return nil, err
	}

	p := &Preview{JobID: job.ID, Format: job.Format, TotalRows: t.TotalRows}
	names := columnNames(t)
	if job.Format == core.FormatDelimited {
		p.Columns = names
		p.Rows = make([][]any, t.NumRows())
		for i := range p.Rows {
			p.Rows[i] = normalizeRow(t, i)
		}
		return p, nil
	}
	p.Records = make([]Record, t.NumRows())
	for i := range p.Records {
		p.Records[i] = Record{Keys: names, Values: normalizeRow(t, i)}
	}
	return p, nil
}

// Schema describes the artifact from its own column types. A column is
// nullable when it holds a null; its sample is the first non-null value.
func (s *Service) Schema(ctx context.Context, jobID string) (*core.Schema, error) {
	job, err := s.completedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	t, err := s.read(job, -1)
	if err != nil {
		return nil, err
	}
	schema := &core.Schema{Name: job.Name, Fields: make([]core.Field, len(t.Columns))}
	for c, col := range t.Columns {
		f := core.Field{Name: col.Name, Type: col.Type}
		for _, v := range t.Values[c] {
			if v == nil {
				f.Nullable = true
				continue
			}
			if f.Sample == nil {
				f.Sample = Normalize(v, col)
			}
		}
		schema.Fields[c] = f
	}
	return schema, nil
}

func (s *Service) completedJob(ctx context.Context, jobID string) (*core.Job, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != core.JobCompleted {
		return nil, core.InvalidStateError("Job %s is not completed (status: %s)", job.ID, job.Status)
	}
	if job.ArtifactPath == "" {
		return nil, core.NotFoundError("Artifact for job %s not found", job.ID)
	}
	return job, nil
}

func (s *Service) read(job *core.Job, limit int64) (*sink.Table, error) {
	t, err := sink.ReadTable(job.ArtifactPath, limit)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, core.NotFoundError("Artifact for job %s not found", job.ID)
	}
	return t, err
}

func columnNames(t *sink.Table) []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}
