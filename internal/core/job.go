package core

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// SourceKind distinguishes uploaded files from database tables.
type SourceKind string

const (
	SourceFile     SourceKind = "file"
	SourceDatabase SourceKind = "database"
)

// SourceFormat is the physical origin format of a job's data.
type SourceFormat string

const (
	FormatDelimited  SourceFormat = "delimited"
	FormatTree       SourceFormat = "tree"
	FormatRelational SourceFormat = "relational"
)

// CancelledMessage is the error recorded on a job cancelled by its owner.
const CancelledMessage = "Job cancelled by user"

// Job is the registry record for one ingestion run.
type Job struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Kind          SourceKind     `json:"type"`
	Format        SourceFormat   `json:"format"`
	Status        JobStatus      `json:"status"`
	Progress      int            `json:"progress"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       *time.Time     `json:"end_time,omitempty"`
	Error         string         `json:"error,omitempty"`
	Duration      *time.Duration `json:"-"`
	Details       string         `json:"details"`
	Config        map[string]any `json:"config"`
	RowsProcessed int64          `json:"rows_processed"`
	TotalRows     int64          `json:"total_rows"`
	ArtifactPath  string         `json:"-"`
	ArtifactURI   string         `json:"artifact_uri,omitempty"`
	CreatedBy     string         `json:"created_by"`
}

// Clone deep-copies the job so callers never alias registry state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.EndTime != nil {
		t := *j.EndTime
		out.EndTime = &t
	}
	if j.Duration != nil {
		d := *j.Duration
		out.Duration = &d
	}
	out.Config = cloneMap(j.Config)
	return &out
}

// Finish stamps the end time and duration.
func (j *Job) Finish(now time.Time) {
	end := now
	d := end.Sub(j.StartTime)
	j.EndTime = &end
	j.Duration = &d
}

// DurationString renders the duration as h:mm:ss.
func (j *Job) DurationString() string {
	if j.Duration == nil {
		return ""
	}
	d := j.Duration.Round(time.Millisecond)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := float64(d%time.Minute) / float64(time.Second)
	return fmt.Sprintf("%d:%02d:%06.3f", h, m, s)
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch t := v.(type) {
		case map[string]any:
			out[k] = cloneMap(t)
		case []any:
			cp := make([]any, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// UploadedSource is a file registered through the upload operation.
type UploadedSource struct {
	ID         string       `json:"id"`
	Filename   string       `json:"filename"`
	Path       string       `json:"-"`
	Format     SourceFormat `json:"format"`
	Type       string       `json:"type"`
	UploadedBy string       `json:"uploaded_by"`
	UploadedAt time.Time    `json:"uploaded_at"`
	ChunkSize  int          `json:"chunk_size"`
	SizeBytes  int64        `json:"size_bytes"`
	Schema     *Schema      `json:"schema,omitempty"`
}

// Clone copies the source and its cached schema.
func (s *UploadedSource) Clone() *UploadedSource {
	if s == nil {
		return nil
	}
	out := *s
	out.Schema = s.Schema.Clone()
	return &out
}
