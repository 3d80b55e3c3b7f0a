package inference

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nucleus/datapuur/internal/core"
)

// DelimitedScan is the result of scanning a delimited source.
type DelimitedScan struct {
	Schema *core.Schema
	// Stored is Schema with mixed columns that no typed column can hold
	// narrowed to string.
	Stored *core.Schema
	// Rows is the number of data records scanned.
	Rows int64
}

// NewCSVReader returns a lenient reader: ragged rows and stray quotes are tolerated.
func NewCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// ReadHeader reads and normalizes the header row. An empty input yields nil.
func ReadHeader(cr *csv.Reader) ([]string, error) {
	record, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, core.SchemaError(err, "invalid delimited header")
	}
	return NormalizeHeader(record), nil
}

// NormalizeHeader strips a byte-order mark, names blank headers column_<n>
// and suffixes duplicates with _<k>.
func NormalizeHeader(raw []string) []string {
	out := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		if strings.TrimSpace(h) == "" {
			h = "column_" + strconv.Itoa(i+1)
		}
		name := h
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", h, k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

// ScanDelimited infers a schema from the header and up to sampleSize data
// rows. A sampleSize <= 0 scans every row.
func ScanDelimited(r io.Reader, name string, sampleSize int) (*DelimitedScan, error) {
	cr := NewCSVReader(r)
	header, err := ReadHeader(cr)
	if err != nil {
		return nil, err
	}
	fields := newFieldSet()
	accs := make([]*accumulator, len(header))
	for i, h := range header {
		accs[i] = fields.get(h)
	}

	var rows int64
	for withinSample(int(rows), sampleSize) {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, core.SchemaError(err, "invalid delimited content at row %d", rows+1)
		}
		rows++
		for i, acc := range accs {
			if i >= len(record) || record[i] == "" {
				acc.observeNull()
				continue
			}
			acc.observe(ClassifyText(record[i]), record[i])
		}
	}
	return &DelimitedScan{
		Schema: fields.schema(name, delimitedPrecedence),
		Stored: fields.storedSchema(name, delimitedPrecedence),
		Rows:   rows,
	}, nil
}

// InferDelimited is ScanDelimited without the row count.
func InferDelimited(r io.Reader, name string, sampleSize int) (*core.Schema, error) {
	scan, err := ScanDelimited(r, name, sampleSize)
	if err != nil {
		return nil, err
	}
	return scan.Schema, nil
}
