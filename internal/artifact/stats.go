package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/sink"
)

// ColumnStats summarizes one artifact column.
type ColumnStats struct {
	Name           string         `json:"name"`
	Type           core.FieldType `json:"type"`
	NullCount      int64          `json:"null_count"`
	NullPercentage float64        `json:"null_percentage"`
}

// Statistics summarizes a whole artifact. Percentages are rounded to two
// decimals; DataDensity is rows per kilobyte of estimated memory.
type Statistics struct {
	JobID          string        `json:"job_id"`
	RowCount       int64         `json:"row_count"`
	ColumnCount    int           `json:"column_count"`
	NullCells      int64         `json:"null_cells"`
	NullPercentage float64       `json:"null_percentage"`
	MemoryBytes    int64         `json:"memory_bytes"`
	MemoryUsage    string        `json:"memory_usage"`
	DataDensity    float64       `json:"data_density"`
	CompletionRate float64       `json:"completion_rate"`
	Columns        []ColumnStats `json:"columns"`
}

// Statistics computes summary statistics over every row of the artifact.
func (s *Service) Statistics(ctx context.Context, jobID string) (*Statistics, error) {
	job, err := s.completedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	t, err := s.read(job, -1)
	if err != nil {
		return nil, err
	}
	return summarize(job.ID, t), nil
}

func summarize(jobID string, t *sink.Table) *Statistics {
	rows := int64(t.NumRows())
	st := &Statistics{
		JobID:       jobID,
		RowCount:    rows,
		ColumnCount: len(t.Columns),
		Columns:     make([]ColumnStats, len(t.Columns)),
	}

	// Row index overhead, one word per row.
	bytes := rows * 8
	for c, col := range t.Columns {
		cs := ColumnStats{Name: col.Name, Type: col.Type}
		for _, raw := range t.Values[c] {
			if raw == nil {
				cs.NullCount++
				bytes += 8
				continue
			}
			bytes += valueSize(Normalize(raw, col))
		}
		cs.NullPercentage = percent(cs.NullCount, rows)
		st.NullCells += cs.NullCount
		st.Columns[c] = cs
	}

	st.NullPercentage = percent(st.NullCells, rows*int64(len(t.Columns)))
	st.CompletionRate = round2(100 - st.NullPercentage)
	st.MemoryBytes = bytes
	st.MemoryUsage = humanBytes(bytes)
	if bytes > 0 {
		st.DataDensity = round2(float64(rows) / (float64(bytes) / 1024))
	}
	return st
}

// valueSize estimates the in-memory footprint of a normalized value.
func valueSize(v any) int64 {
	switch x := v.(type) {
	case bool:
		return 1
	case int64, float64, int32:
		return 8
	case string:
		return int64(len(x)) + 16
	case json.RawMessage:
		return int64(len(x)) + 16
	}
	return 8
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return round2(float64(part) / float64(whole) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	units := []string{"KB", "MB", "GB", "TB"}
	i := -1
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}
