package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
)

// DelimitedReader reads a CSV file. Open scans the whole file once to count
// rows and infer the column types of the artifact.
type DelimitedReader struct {
	path      string
	name      string
	chunkSize int

	schema *core.Schema
	total  int64
	file   *os.File
	csv    *csv.Reader
	width  int
}

// NewDelimitedReader creates a reader over the file at path.
func NewDelimitedReader(path, name string, chunkSize int) *DelimitedReader {
	return &DelimitedReader{path: path, name: name, chunkSize: chunkSize}
}

func (r *DelimitedReader) Open(ctx context.Context) error {
	if err := ValidateChunkSize(r.chunkSize); err != nil {
		return err
	}
	scanFile, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.name, err)
	}
	scan, err := inference.ScanDelimited(scanFile, r.name, 0)
	scanFile.Close()
	if err != nil {
		return err
	}
	r.schema = scan.Stored
	r.total = scan.Rows
	r.width = len(scan.Stored.Fields)

	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.name, err)
	}
	r.file = f
	r.csv = inference.NewCSVReader(f)
	if _, err := inference.ReadHeader(r.csv); err != nil {
		return err
	}
	return nil
}

func (r *DelimitedReader) Schema() *core.Schema { return r.schema }
func (r *DelimitedReader) TotalRows() int64     { return r.total }

func (r *DelimitedReader) NextBatch(ctx context.Context) (core.Batch, error) {
	if err := ctx.Err(); err != nil {
		return core.Batch{}, err
	}
	if r.csv == nil || r.width == 0 {
		return core.Batch{}, io.EOF
	}
	rows := make([][]any, 0, r.chunkSize)
	for len(rows) < r.chunkSize {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Batch{}, fmt.Errorf("read %s: %w", r.name, err)
		}
		row := make([]any, r.width)
		for i := 0; i < r.width && i < len(record); i++ {
			if record[i] != "" {
				row[i] = record[i]
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return core.Batch{}, io.EOF
	}
	return core.Batch{Rows: rows}, nil
}

func (r *DelimitedReader) Close() error {
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}
