package sink

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/nucleus/datapuur/internal/core"
)

// Table is a column-major view of an artifact's leading rows.
type Table struct {
	Columns []Column
	// TotalRows counts every row in the artifact, not only the rows read.
	TotalRows int64
	// RowGroups is the number of row groups in the file.
	RowGroups int
	// Values holds one slice per column; nulls are nil.
	Values [][]any
}

// NumRows returns the number of rows read into the table.
func (t *Table) NumRows() int {
	if len(t.Values) == 0 {
		return 0
	}
	return len(t.Values[0])
}

// Row returns row i in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.Columns))
	for c := range t.Columns {
		row[c] = t.Values[c][i]
	}
	return row
}

// ReadTable reads up to limit rows of the artifact at path. A negative
// limit reads every row.
func ReadTable(path string, limit int64) (*Table, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	pf, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer pf.Close()

	pr, err := reader.NewParquetColumnReader(pf, 4)
	if err != nil {
		return nil, fmt.Errorf("read artifact footer: %w", err)
	}
	defer pr.ReadStop()

	total := pr.GetNumRows()
	n := total
	if limit >= 0 && limit < n {
		n = limit
	}

	leaves := pr.Footer.Schema[1:]
	t := &Table{
		Columns:   storedColumns(pr.Footer),
		TotalRows: total,
		RowGroups: len(pr.Footer.RowGroups),
		Values:    make([][]any, len(leaves)),
	}
	if len(t.Columns) != len(leaves) {
		t.Columns = make([]Column, len(leaves))
		for i, el := range leaves {
			// Footer names are renamed on open; the handler keeps the originals.
			t.Columns[i] = Column{Name: pr.SchemaHandler.Infos[i+1].ExName, Type: columnType(el)}
		}
	}
	for i := range leaves {
		if n == 0 {
			t.Values[i] = []any{}
			continue
		}
		vals, _, _, err := pr.ReadColumnByIndex(int64(i), n)
		if err != nil {
			return nil, fmt.Errorf("read column %q: %w", t.Columns[i].Name, err)
		}
		t.Values[i] = vals
	}
	return t, nil
}

// storedColumns decodes the column list the writer put in the footer, or
// returns nil when it is missing.
func storedColumns(footer *parquet.FileMetaData) []Column {
	for _, kv := range footer.GetKeyValueMetadata() {
		if kv.GetKey() != columnsKey {
			continue
		}
		var cols []Column
		if err := json.Unmarshal([]byte(kv.GetValue()), &cols); err != nil {
			return nil
		}
		return cols
	}
	return nil
}

func columnType(el *parquet.SchemaElement) core.FieldType {
	if el.Type == nil {
		return core.TypeString
	}
	switch *el.Type {
	case parquet.Type_INT64:
		if el.IsSetConvertedType() && el.GetConvertedType() == parquet.ConvertedType_TIMESTAMP_MILLIS {
			return core.TypeDatetime
		}
		return core.TypeInteger
	case parquet.Type_INT32:
		if el.IsSetConvertedType() && el.GetConvertedType() == parquet.ConvertedType_DATE {
			return core.TypeDate
		}
		return core.TypeInteger
	case parquet.Type_DOUBLE, parquet.Type_FLOAT:
		return core.TypeFloat
	case parquet.Type_BOOLEAN:
		return core.TypeBoolean
	}
	return core.TypeString
}
