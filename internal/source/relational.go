package source

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/nucleus/datapuur/internal/connector/jdbc"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
)

// Table is the relational access the reader needs; *jdbc.Base satisfies it.
type Table interface {
	inference.Introspector
	Count(ctx context.Context, table string) (int64, error)
	ReadPage(ctx context.Context, table string, limit, offset int64) (*jdbc.Page, error)
}

// RelationalReader pages through a table with LIMIT/OFFSET in natural order.
type RelationalReader struct {
	db        Table
	table     string
	chunkSize int
	limiter   *rate.Limiter

	schema *core.Schema
	total  int64
	offset int64
	done   bool
}

// NewRelationalReader creates a reader over table. A nil limiter disables
// page throttling.
func NewRelationalReader(db Table, table string, chunkSize int, limiter *rate.Limiter) *RelationalReader {
	return &RelationalReader{db: db, table: table, chunkSize: chunkSize, limiter: limiter}
}

func (r *RelationalReader) Open(ctx context.Context) error {
	if err := ValidateChunkSize(r.chunkSize); err != nil {
		return err
	}
	cols, err := r.db.Columns(ctx, r.table)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return core.NotFoundError("Table '%s' not found", r.table)
	}
	r.schema = inference.RelationalSchema(r.table, cols, nil)

	total, err := r.db.Count(ctx, r.table)
	if err != nil {
		return err
	}
	r.total = total
	return nil
}

func (r *RelationalReader) Schema() *core.Schema { return r.schema }
func (r *RelationalReader) TotalRows() int64     { return r.total }

func (r *RelationalReader) NextBatch(ctx context.Context) (core.Batch, error) {
	if r.done || r.offset >= r.total {
		return core.Batch{}, io.EOF
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return core.Batch{}, err
		}
	}
	page, err := r.db.ReadPage(ctx, r.table, int64(r.chunkSize), r.offset)
	if err != nil {
		return core.Batch{}, fmt.Errorf("read %s at offset %d: %w", r.table, r.offset, err)
	}
	if len(page.Rows) < r.chunkSize {
		r.done = true
	}
	if len(page.Rows) == 0 {
		return core.Batch{}, io.EOF
	}
	r.offset += int64(len(page.Rows))
	return core.Batch{Rows: r.project(page)}, nil
}

// project reorders page columns into schema order.
func (r *RelationalReader) project(page *jdbc.Page) [][]any {
	index := make(map[string]int, len(page.Columns))
	for i, c := range page.Columns {
		index[c] = i
	}
	out := make([][]any, len(page.Rows))
	for i, src := range page.Rows {
		row := make([]any, len(r.schema.Fields))
		for j, f := range r.schema.Fields {
			if k, ok := index[f.Name]; ok {
				row[j] = src[k]
			}
		}
		out[i] = row
	}
	return out
}

func (r *RelationalReader) Close() error { return nil }
