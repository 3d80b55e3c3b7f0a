// Package sink writes ingestion batches into a single columnar Parquet
// artifact per job.
package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/common"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/nucleus/datapuur/internal/core"
)

// columnsKey is the footer key holding the source names and logical types
// of the artifact columns. Parquet only keeps Go-style names and has no
// object or array type for flat columns.
const columnsKey = "datapuur.columns"

// Column is one physical artifact column.
type Column struct {
	Name string         `json:"name"`
	Type core.FieldType `json:"type"`
}

// Writer appends batches to one open Parquet file. Each Append becomes a
// row group; Close writes the footer.
type Writer struct {
	path   string
	file   source.ParquetFile
	pw     *writer.JSONWriter
	cols   []Column
	rows   int64
	closed bool
}

// Create opens a new artifact at path for schema.
func Create(path string, schema *core.Schema) (*Writer, error) {
	if schema == nil || len(schema.Fields) == 0 {
		return nil, errors.New("source contains no columns")
	}
	cols := Columns(schema)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	pf, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}
	pw, err := writer.NewJSONWriter(buildParquetSchema(cols), pf, 4)
	if err != nil {
		_ = pf.Close()
		_ = os.Remove(path)
		return nil, fmt.Errorf("create artifact writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY
	meta, _ := json.Marshal(cols)
	value := string(meta)
	pw.Footer.KeyValueMetadata = append(pw.Footer.KeyValueMetadata, &parquet.KeyValue{Key: columnsKey, Value: &value})

	return &Writer{path: path, file: pf, pw: pw, cols: cols}, nil
}

// Columns returns the artifact columns for schema.
func (w *Writer) Columns() []Column { return w.cols }

// Rows returns the number of rows appended so far.
func (w *Writer) Rows() int64 { return w.rows }

// Path returns the artifact location.
func (w *Writer) Path() string { return w.path }

// Append converts and writes one batch, then flushes it as a row group.
func (w *Writer) Append(batch core.Batch) error {
	if w.closed {
		return errors.New("artifact writer is closed")
	}
	if batch.Len() == 0 {
		return nil
	}
	for i, row := range batch.Rows {
		rec := make(map[string]any, len(w.cols))
		for c, col := range w.cols {
			var raw any
			if c < len(row) {
				raw = row[c]
			}
			v, err := ConvertValue(raw, col.Type)
			if err != nil {
				return fmt.Errorf("row %d column %q: %w", w.rows+int64(i)+1, col.Name, err)
			}
			rec[col.Name] = v
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode row %d: %w", w.rows+int64(i)+1, err)
		}
		if err := w.pw.Write(string(line)); err != nil {
			return fmt.Errorf("write row %d: %w", w.rows+int64(i)+1, err)
		}
	}
	if err := w.pw.Flush(true); err != nil {
		return fmt.Errorf("flush row group: %w", err)
	}
	w.rows += int64(batch.Len())
	return nil
}

// Close finalizes the artifact.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.pw.WriteStop(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("finalize artifact: %w", err)
	}
	return w.file.Close()
}

// Abort closes the writer and removes the partial artifact.
func (w *Writer) Abort() error {
	if !w.closed {
		w.closed = true
		_ = w.pw.WriteStop()
		_ = w.file.Close()
	}
	if err := os.Remove(w.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Columns derives tag-safe artifact column names from schema. Names stay
// distinct after parquet-go maps them to Go identifiers.
func Columns(schema *core.Schema) []Column {
	cols := make([]Column, len(schema.Fields))
	used := make(map[string]bool, len(schema.Fields))
	for i, f := range schema.Fields {
		name := strings.TrimSpace(tagReplacer.Replace(f.Name))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		base := name
		for k := 2; used[common.StringToVariableName(name)]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		used[common.StringToVariableName(name)] = true
		cols[i] = Column{Name: name, Type: f.Type}
	}
	return cols
}

var tagReplacer = strings.NewReplacer(",", "_", "=", "_", "\n", " ", "\r", " ", "\t", " ")

func buildParquetSchema(cols []Column) string {
	fields := make([]map[string]string, 0, len(cols))
	for _, c := range cols {
		fields = append(fields, map[string]string{
			"Tag": fmt.Sprintf("name=%s, %s, repetitiontype=OPTIONAL", c.Name, parquetTypeTag(c.Type)),
		})
	}
	out := map[string]any{
		"Tag":    "name=parquet_go_root, repetitiontype=REQUIRED",
		"Fields": fields,
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func parquetTypeTag(t core.FieldType) string {
	switch t {
	case core.TypeInteger:
		return "type=INT64"
	case core.TypeFloat:
		return "type=DOUBLE"
	case core.TypeBoolean:
		return "type=BOOLEAN"
	case core.TypeDate:
		return "type=INT32, convertedtype=DATE"
	case core.TypeDatetime:
		return "type=INT64, convertedtype=TIMESTAMP_MILLIS"
	}
	return "type=BYTE_ARRAY, convertedtype=UTF8"
}
