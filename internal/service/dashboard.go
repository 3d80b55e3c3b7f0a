package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/orchestration"
)

// DashboardActivityLimit bounds the recent activities shown on the dashboard.
const DashboardActivityLimit = 4

// DataSource is a completed job presented as an available data source.
type DataSource struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	LastSynced  time.Time `json:"last_synced"`
	Status      string    `json:"status"`
	ArtifactURI string    `json:"artifact_uri,omitempty"`
}

// DataMetrics aggregates row counts over every job.
type DataMetrics struct {
	TotalRecords     int64   `json:"total_records"`
	ProcessedRecords int64   `json:"processed_records"`
	FailedRecords    int64   `json:"failed_records"`
	ProcessingTime   float64 `json:"processing_time"`
}

// Activity is one job rendered as a timeline entry.
type Activity struct {
	ID     string    `json:"id"`
	Action string    `json:"action"`
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
}

// Dashboard combines metrics with the most recent activities.
type Dashboard struct {
	Metrics    DataMetrics `json:"metrics"`
	Activities []Activity  `json:"recent_activities"`
}

// DataSources lists completed jobs, newest first.
func (s *Service) DataSources(ctx context.Context) ([]DataSource, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	jobs, err := s.registry.All(ctx, orchestration.ListFilter{Status: core.JobCompleted})
	if err != nil {
		return nil, err
	}
	out := make([]DataSource, 0, len(jobs))
	for _, job := range jobs {
		ds := DataSource{
			ID:          job.ID,
			Name:        job.Name,
			Type:        kindLabel(job.Kind),
			LastSynced:  job.StartTime,
			Status:      "Active",
			ArtifactURI: job.ArtifactURI,
		}
		if job.EndTime != nil {
			ds.LastSynced = *job.EndTime
		}
		out = append(out, ds)
	}
	return out, nil
}

// DataMetrics sums rows over completed and failed jobs. ProcessingTime is
// the mean duration of finished jobs in seconds.
func (s *Service) DataMetrics(ctx context.Context) (*DataMetrics, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	jobs, err := s.registry.All(ctx, orchestration.ListFilter{})
	if err != nil {
		return nil, err
	}
	return metricsOf(jobs), nil
}

// Activities lists every job as a timeline entry, newest first.
func (s *Service) Activities(ctx context.Context) ([]Activity, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	jobs, err := s.registry.All(ctx, orchestration.ListFilter{})
	if err != nil {
		return nil, err
	}
	return activitiesOf(jobs), nil
}

// Dashboard returns metrics and the most recent activities.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	if _, err := s.authorize(ctx, auth.CapabilityRead); err != nil {
		return nil, err
	}
	jobs, err := s.registry.All(ctx, orchestration.ListFilter{})
	if err != nil {
		return nil, err
	}
	acts := activitiesOf(jobs)
	if len(acts) > DashboardActivityLimit {
		acts = acts[:DashboardActivityLimit]
	}
	return &Dashboard{Metrics: *metricsOf(jobs), Activities: acts}, nil
}

func metricsOf(jobs []*core.Job) *DataMetrics {
	m := &DataMetrics{}
	var (
		elapsed  time.Duration
		finished int
	)
	for _, job := range jobs {
		switch job.Status {
		case core.JobCompleted:
			m.ProcessedRecords += job.RowsProcessed
			m.TotalRecords += job.RowsProcessed
		case core.JobFailed:
			m.FailedRecords += job.RowsProcessed
			m.TotalRecords += job.RowsProcessed
		default:
			continue
		}
		if job.Duration != nil {
			elapsed += *job.Duration
			finished++
		}
	}
	if finished > 0 {
		m.ProcessingTime = round2((elapsed / time.Duration(finished)).Seconds())
	}
	return m
}

func activitiesOf(jobs []*core.Job) []Activity {
	out := make([]Activity, 0, len(jobs))
	for _, job := range jobs {
		status := "processing"
		switch job.Status {
		case core.JobCompleted:
			status = "success"
		case core.JobFailed:
			status = "error"
		}
		out = append(out, Activity{
			ID:     job.ID,
			Action: fmt.Sprintf("%s ingestion: %s", kindLabel(job.Kind), job.Name),
			Time:   job.StartTime,
			Status: status,
		})
	}
	return out
}

func kindLabel(kind core.SourceKind) string {
	if kind == core.SourceDatabase {
		return "Database"
	}
	return "File"
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
