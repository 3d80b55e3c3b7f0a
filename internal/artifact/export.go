package artifact

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/sink"
)

// Export formats.
const (
	ExportCSV     = "csv"
	ExportJSON    = "json"
	ExportParquet = "parquet"
)

var exportContentTypes = map[string]string{
	ExportCSV:     "text/csv",
	ExportJSON:    "application/json",
	ExportParquet: "application/vnd.apache.parquet",
}

// ExportFile is a serialized artifact staged in a temporary file. The
// caller owns it and must call Cleanup once the transfer is done.
type ExportFile struct {
	Path        string
	FileName    string
	ContentType string
	Cleanup     func() error
}

// Export serializes the artifact of jobID as csv, json or parquet.
func (s *Service) Export(ctx context.Context, jobID, format string) (*ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	contentType, ok := exportContentTypes[format]
	if !ok {
		return nil, core.ValidationError("Unsupported export format: %s", format)
	}
	job, err := s.completedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.tempDir, "datapuur-export-*."+format)
	if err != nil {
		return nil, fmt.Errorf("create export file: %w", err)
	}
	path := tmp.Name()
	cleanup := func() error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	w := bufio.NewWriter(tmp)
	switch format {
	case ExportParquet:
		err = copyFile(w, job.ArtifactPath)
	default:
		var t *sink.Table
		t, err = s.read(job, -1)
		if err == nil && format == ExportCSV {
			err = writeCSV(w, t)
		} else if err == nil {
			err = writeJSON(w, t)
		}
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = cleanup()
		return nil, err
	}

	return &ExportFile{
		Path:        path,
		FileName:    exportName(job, format),
		ContentType: contentType,
		Cleanup:     cleanup,
	}, nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.NotFoundError("Artifact not found")
		}
		return fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

func writeCSV(w io.Writer, t *sink.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columnNames(t)); err != nil {
		return err
	}
	record := make([]string, len(t.Columns))
	for i := 0; i < t.NumRows(); i++ {
		for c, v := range normalizeRow(t, i) {
			record[c] = Text(v)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, t *sink.Table) error {
	names := columnNames(t)
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i := 0; i < t.NumRows(); i++ {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		b, err := json.Marshal(Record{Keys: names, Values: normalizeRow(t, i)})
		if err != nil {
			return err
		}
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

// exportName derives a download name from the job name.
func exportName(job *core.Job, format string) string {
	base := strings.TrimSuffix(filepath.Base(job.Name), filepath.Ext(job.Name))
	base = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == '"' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = job.ID
	}
	return base + "." + format
}
