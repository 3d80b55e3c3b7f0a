package service

import (
	"context"
	"strings"

	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/connector/jdbc"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/orchestration"
)

// StartFileIngestion queues ingestion of an uploaded source and returns the
// queued job. name defaults to the uploaded file name.
func (s *Service) StartFileIngestion(ctx context.Context, sourceID string, chunkSize int, name string) (*core.Job, error) {
	identity, err := s.authorize(ctx, auth.CapabilityIngest)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(sourceID) == "" {
		return nil, core.ValidationError("Missing required field: file_id")
	}
	src, err := s.uploads.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if chunkSize == 0 {
		chunkSize = src.ChunkSize
	}
	chunk, err := s.chunk(chunkSize)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = src.Filename
	}

	job, err := s.registry.Create(ctx, orchestration.NewJob{
		Name:      name,
		Kind:      core.SourceFile,
		Format:    src.Format,
		Details:   "File: " + name,
		Config:    map[string]any{"file_id": src.ID, "chunk_size": chunk},
		CreatedBy: identity,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.orch.Start(ctx, job, orchestration.FileOpener(src, chunk)); err != nil {
		return nil, err
	}
	s.logger.Info("file ingestion queued", "job_id", job.ID, "source_id", src.ID)
	s.record(ctx, identity, "File ingestion started", "Started ingestion for file: "+name)
	return job, nil
}

// StartDatabaseIngestion queues ingestion of the table in params. name
// defaults to the table name.
func (s *Service) StartDatabaseIngestion(ctx context.Context, params map[string]any, chunkSize int, name string) (*core.Job, error) {
	identity, err := s.authorize(ctx, auth.CapabilityIngest)
	if err != nil {
		return nil, err
	}
	cfg := jdbc.ParseConfig(params)
	if err := cfg.Validate(true); err != nil {
		return nil, err
	}
	chunk, err := s.chunk(chunkSize)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = cfg.Table
	}

	job, err := s.registry.Create(ctx, orchestration.NewJob{
		Name:    name,
		Kind:    core.SourceDatabase,
		Format:  core.FormatRelational,
		Details: cfg.Details(),
		Config: map[string]any{
			"type":       cfg.Type,
			"database":   cfg.Database,
			"table":      cfg.Table,
			"chunk_size": chunk,
		},
		CreatedBy: identity,
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.orch.Start(ctx, job, orchestration.DatabaseOpener(cfg, chunk, s.limiter())); err != nil {
		return nil, err
	}
	s.logger.Info("database ingestion queued", "job_id", job.ID, "table", cfg.Table)
	s.record(ctx, identity, "Database ingestion started",
		"Started ingestion for table: "+cfg.Database+"."+cfg.Table)
	return job, nil
}

// GetJobStatus returns the current state of a job.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*core.Job, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	return s.registry.Get(ctx, jobID)
}

// CancelJob fails a queued or running job. In-flight work stops at its next
// batch boundary.
func (s *Service) CancelJob(ctx context.Context, jobID string) (*core.Job, error) {
	identity, err := s.authorize(ctx, auth.CapabilityIngest)
	if err != nil {
		return nil, err
	}
	job, err := s.registry.Cancel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("job cancelled", "job_id", job.ID)
	s.record(ctx, identity, "Job cancelled", "Cancelled ingestion job: "+job.Name)
	return job, nil
}

// ListJobs returns one page of jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, filter orchestration.ListFilter, page core.PageRequest) (core.Page[*core.Job], error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return core.Page[*core.Job]{}, err
	}
	return s.registry.List(ctx, filter, page)
}
