package source

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
)

// TreeReader reads a JSON document. The whole document is decoded on Open;
// arrays are sliced into batches, a single object becomes one row.
type TreeReader struct {
	path      string
	name      string
	chunkSize int

	doc    *inference.TreeDocument
	schema *core.Schema
	total  int64
	pos    int
}

// NewTreeReader creates a reader over the JSON file at path.
func NewTreeReader(path, name string, chunkSize int) *TreeReader {
	return &TreeReader{path: path, name: name, chunkSize: chunkSize}
}

func (r *TreeReader) Open(ctx context.Context) error {
	if err := ValidateChunkSize(r.chunkSize); err != nil {
		return err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return fmt.Errorf("open %s: %w", r.name, err)
	}
	defer f.Close()

	doc, err := inference.DecodeTree(f)
	if err != nil {
		return err
	}
	r.doc = doc
	r.total = int64(doc.Len())
	r.schema = inference.StoredTreeSchema(doc, r.name)
	return ctx.Err()
}

func (r *TreeReader) Schema() *core.Schema { return r.schema }
func (r *TreeReader) TotalRows() int64     { return r.total }

func (r *TreeReader) NextBatch(ctx context.Context) (core.Batch, error) {
	if err := ctx.Err(); err != nil {
		return core.Batch{}, err
	}
	if r.doc == nil || r.pos >= r.doc.Len() {
		return core.Batch{}, io.EOF
	}
	end := r.pos + r.chunkSize
	if end > r.doc.Len() {
		end = r.doc.Len()
	}
	rows := make([][]any, 0, end-r.pos)
	for _, elem := range r.doc.Elements[r.pos:end] {
		rows = append(rows, r.project(elem))
	}
	r.pos = end
	return core.Batch{Rows: rows}, nil
}

func (r *TreeReader) project(elem any) []any {
	row := make([]any, len(r.schema.Fields))
	if !r.doc.Keyed {
		row[0] = elem
		return row
	}
	obj, ok := elem.(map[string]any)
	if !ok {
		return row
	}
	for i, f := range r.schema.Fields {
		row[i] = obj[f.Name]
	}
	return row
}

func (r *TreeReader) Close() error {
	r.doc = nil
	return nil
}
