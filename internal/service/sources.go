package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/connector/jdbc"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
	"github.com/nucleus/datapuur/internal/uploads"
)

// UploadSource stores an uploaded CSV or JSON file.
func (s *Service) UploadSource(ctx context.Context, filename string, r io.Reader, chunkSize int) (*core.UploadedSource, error) {
	identity, err := s.authorize(ctx, auth.CapabilityIngest)
	if err != nil {
		return nil, err
	}
	chunk, err := s.chunk(chunkSize)
	if err != nil {
		return nil, err
	}
	src, err := s.uploads.Save(ctx, filename, r, chunk, identity)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "File upload", fmt.Sprintf("Uploaded file: %s (%s)", src.Filename, strings.ToUpper(src.Type)))
	return src, nil
}

// InferSchema infers the schema of an uploaded source from its first
// sampleSize records and caches it on the source.
func (s *Service) InferSchema(ctx context.Context, sourceID string, sampleSize int) (*core.Schema, error) {
	identity, err := s.authorize(ctx, auth.CapabilityRead)
	if err != nil {
		return nil, err
	}
	if sampleSize < 0 {
		return nil, core.ValidationError("sample size must not be negative, got %d", sampleSize)
	}
	if sampleSize == 0 {
		sampleSize = s.sampleSize
	}
	src, err := s.uploads.Get(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	schema, err := inference.InferFile(src.Path, src.Format, src.Filename, sampleSize)
	if err != nil {
		return nil, err
	}
	if err := s.uploads.CacheSchema(ctx, src.ID, schema); err != nil {
		s.logger.Warn("failed to cache schema", "source_id", src.ID, "error", err)
	}
	s.record(ctx, identity, "Schema detection", "Detected schema for file: "+src.Filename)
	return schema, nil
}

// InferDatabaseSchema derives the schema of the table in params from its
// column metadata.
func (s *Service) InferDatabaseSchema(ctx context.Context, params map[string]any) (*core.Schema, error) {
	identity, err := s.authorize(ctx, auth.CapabilityRead)
	if err != nil {
		return nil, err
	}
	db, err := jdbc.Connect(params, true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	schema, err := inference.InferRelational(ctx, db, db.Config.Table)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "Database schema detection",
		fmt.Sprintf("Detected schema for table: %s.%s", db.Config.Database, db.Config.Table))
	return schema, nil
}

// TestConnection checks that the database in params is reachable.
func (s *Service) TestConnection(ctx context.Context, params map[string]any) (*jdbc.ConnectionResult, error) {
	identity, err := s.authorize(ctx, auth.CapabilityRead)
	if err != nil {
		return nil, err
	}
	db, err := jdbc.Connect(params, false)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	res, err := db.TestConnection(ctx)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "Database connection test",
		fmt.Sprintf("Tested connection to %s database: %s", db.Config.Type, db.Config.Database))
	return res, nil
}

// ListSources returns one page of uploaded files.
func (s *Service) ListSources(ctx context.Context, filter uploads.ListFilter, page core.PageRequest) (core.Page[*core.UploadedSource], error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return core.Page[*core.UploadedSource]{}, err
	}
	return s.uploads.List(ctx, filter, page)
}
