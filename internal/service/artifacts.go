package service

import (
	"context"
	"fmt"

	"github.com/nucleus/datapuur/internal/artifact"
	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/core"
)

// PreviewArtifact returns the first rowLimit rows of a completed job.
func (s *Service) PreviewArtifact(ctx context.Context, jobID string, rowLimit int) (*artifact.Preview, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	return s.artifacts.Preview(ctx, jobID, rowLimit)
}

// ArtifactSchema describes the columns of a completed job's artifact.
func (s *Service) ArtifactSchema(ctx context.Context, jobID string) (*core.Schema, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	return s.artifacts.Schema(ctx, jobID)
}

// ArtifactStatistics summarizes a completed job's artifact.
func (s *Service) ArtifactStatistics(ctx context.Context, jobID string) (*artifact.Statistics, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	return s.artifacts.Statistics(ctx, jobID)
}

// ExportArtifact stages the artifact in format. The caller must run
// Cleanup on the result.
func (s *Service) ExportArtifact(ctx context.Context, jobID, format string) (*artifact.ExportFile, error) {
	identity, err := s.authorize(ctx, auth.CapabilityRead)
	if err != nil {
		return nil, err
	}
	out, err := s.artifacts.Export(ctx, jobID, format)
	if err != nil {
		return nil, err
	}
	s.record(ctx, identity, "Data export", fmt.Sprintf("Exported job %s as %s", jobID, format))
	return out, nil
}
