package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nucleus/datapuur/internal/activity"
	"github.com/nucleus/datapuur/internal/artifact"
	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/config"
	"github.com/nucleus/datapuur/internal/connector/minio"
	"github.com/nucleus/datapuur/internal/orchestration"
	"github.com/nucleus/datapuur/internal/service"
	"github.com/nucleus/datapuur/internal/uploads"
)

// app is a wired service with the resources it owns.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	svc     *service.Service
	closers []func(context.Context) error
}

// loadConfig reads settings and builds the logger. local relaxes the auth
// requirements for in-process commands.
func loadConfig(local bool) (*config.Config, *slog.Logger, func() error, error) {
	load := config.Load
	if local {
		load = config.LoadLocal
	}
	cfg, err := load()
	if err != nil {
		return nil, nil, nil, err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog := config.SetupLogger(cfg.LogFile, level)
	return cfg, logger, closeLog, nil
}

// newApp wires the service from cfg. checker nil uses role grants.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, checker auth.Checker) (*app, error) {
	for _, dir := range []string{cfg.UploadDir, cfg.ArtifactDir, cfg.TempDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	a := &app{cfg: cfg, logger: logger}

	var publisher orchestration.Publisher
	if cfg.ObjectStoreEnabled() {
		mcfg := cfg.MinioConfig()
		store, err := minio.NewStore(mcfg)
		if err != nil {
			return nil, err
		}
		pub := minio.NewPublisher(store, mcfg)
		if err := pub.Ping(ctx); err != nil {
			logger.Warn("object store unreachable, artifacts stay local until it recovers", "error", err)
		}
		publisher = pub
		logger.Info("mirroring artifacts to object store", "endpoint", mcfg.EndpointURL, "bucket", mcfg.Bucket)
	}

	var recorder activity.Recorder = activity.LogRecorder{Logger: logger}
	if cfg.ActivityDatabaseURL != "" {
		writer, err := activity.NewPostgresWriter(ctx, cfg.ActivityDatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("activity store: %w", err)
		}
		async := activity.NewAsyncRecorder(writer, cfg.ActivityBuffer, logger)
		recorder = async
		a.closers = append(a.closers, func(ctx context.Context) error {
			defer writer.Close()
			return async.Close(ctx)
		})
	}

	registry := orchestration.NewRegistry(nil)
	orch := orchestration.NewOrchestrator(registry, orchestration.Options{
		ArtifactDir: cfg.ArtifactDir,
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		Publisher:   publisher,
		Logger:      logger,
	})
	a.svc = service.New(service.Deps{
		Uploads:      uploads.NewManager(cfg.UploadDir, nil),
		Registry:     registry,
		Orchestrator: orch,
		Artifacts:    artifact.NewService(registry, cfg.TempDir),
		Checker:      checker,
		Activity:     recorder,
		Logger:       logger,
		ChunkSize:    cfg.ChunkSize,
		SampleSize:   cfg.SampleSize,
		DBPageRate:   cfg.DBPageRate,
	})
	return a, nil
}

// close drains running jobs, then releases owned resources.
func (a *app) close(ctx context.Context) error {
	err := a.svc.Shutdown(ctx)
	for i := len(a.closers) - 1; i >= 0; i-- {
		if cerr := a.closers[i](ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
