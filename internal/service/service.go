// Package service exposes the DataPuur operations: uploads, schema
// inference, ingestion jobs and artifact queries. Every operation checks a
// capability for the caller in the context and records an audit entry.
package service

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/nucleus/datapuur/internal/activity"
	"github.com/nucleus/datapuur/internal/artifact"
	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
	"github.com/nucleus/datapuur/internal/orchestration"
	"github.com/nucleus/datapuur/internal/source"
	"github.com/nucleus/datapuur/internal/uploads"
)

// Deps wires a Service.
type Deps struct {
	Uploads      *uploads.Manager
	Registry     *orchestration.Registry
	Orchestrator *orchestration.Orchestrator
	Artifacts    *artifact.Service
	Checker      auth.Checker
	Activity     activity.Recorder
	Logger       *slog.Logger

	// ChunkSize applies when a request leaves it unset.
	ChunkSize int
	// SampleSize bounds schema inference when a request leaves it unset.
	SampleSize int
	// DBPageRate limits relational page reads per second per job; zero
	// disables the limit.
	DBPageRate float64
}

// Service implements the DataPuur operations.
type Service struct {
	uploads    *uploads.Manager
	registry   *orchestration.Registry
	orch       *orchestration.Orchestrator
	artifacts  *artifact.Service
	checker    auth.Checker
	activity   activity.Recorder
	logger     *slog.Logger
	chunkSize  int
	sampleSize int
	pageRate   float64
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		uploads:    d.Uploads,
		registry:   d.Registry,
		orch:       d.Orchestrator,
		artifacts:  d.Artifacts,
		checker:    d.Checker,
		activity:   d.Activity,
		logger:     d.Logger,
		chunkSize:  d.ChunkSize,
		sampleSize: d.SampleSize,
		pageRate:   d.DBPageRate,
	}
	if s.checker == nil {
		s.checker = auth.RoleChecker{}
	}
	if s.activity == nil {
		s.activity = activity.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.chunkSize <= 0 {
		s.chunkSize = source.DefaultChunkSize
	}
	if s.sampleSize <= 0 {
		s.sampleSize = inference.DefaultSampleSize
	}
	return s
}

// Shutdown waits for running jobs.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.orch.Shutdown(ctx)
}

// authorize resolves the caller and checks capability.
func (s *Service) authorize(ctx context.Context, capability string) (string, error) {
	identity := auth.FromContext(ctx).Subject
	if !s.checker.CheckCapability(ctx, identity, capability) {
		return identity, core.ForbiddenError("Insufficient permissions: %s required", capability)
	}
	return identity, nil
}

func (s *Service) record(ctx context.Context, identity, action, details string) {
	s.activity.Record(ctx, identity, action, details)
}

func (s *Service) chunk(requested int) (int, error) {
	if requested == 0 {
		requested = s.chunkSize
	}
	if err := source.ValidateChunkSize(requested); err != nil {
		return 0, err
	}
	return requested, nil
}

func (s *Service) limiter() *rate.Limiter {
	if s.pageRate <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(s.pageRate), 1)
}
