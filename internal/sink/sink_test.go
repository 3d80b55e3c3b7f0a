package sink

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/datapuur/internal/core"
)

func testSchema() *core.Schema {
	return &core.Schema{Name: "t", Fields: []core.Field{
		{Name: "id", Type: core.TypeInteger},
		{Name: "score", Type: core.TypeFloat},
		{Name: "ok", Type: core.TypeBoolean},
		{Name: "day", Type: core.TypeDate},
		{Name: "at", Type: core.TypeDatetime},
		{Name: "name", Type: core.TypeString},
		{Name: "meta", Type: core.TypeObject},
	}}
}

func TestWriterAppendsRowGroupsInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "job.parquet")
	w, err := Create(path, testSchema())
	require.NoError(t, err)

	require.NoError(t, w.Append(core.Batch{Rows: [][]any{
		{"1", "1.5", "true", "2024-01-02", "2024-01-02T03:04:05", "a", map[string]any{"k": json.Number("1")}},
		{"2", nil, "FALSE", nil, nil, nil, nil},
	}}))
	require.NoError(t, w.Append(core.Batch{Rows: [][]any{
		{int64(3), 2.0, true, time.Date(1969, 12, 31, 0, 0, 0, 0, time.UTC), time.UnixMilli(1000).UTC(), "c", `{"x":[1]}`},
	}}))
	require.NoError(t, w.Append(core.Batch{}))
	assert.EqualValues(t, 3, w.Rows())
	require.NoError(t, w.Close())

	table, err := ReadTable(path, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, table.TotalRows)
	assert.Equal(t, 2, table.RowGroups)
	require.Equal(t, 3, table.NumRows())

	names := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"id", "score", "ok", "day", "at", "name", "meta"}, names)
	assert.Equal(t, core.TypeDate, table.Columns[3].Type)
	assert.Equal(t, core.TypeDatetime, table.Columns[4].Type)
	assert.Equal(t, core.TypeObject, table.Columns[6].Type)

	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, table.Values[0])
	assert.Equal(t, []any{1.5, nil, 2.0}, table.Values[1])
	assert.Equal(t, []any{true, false, true}, table.Values[2])
	assert.Equal(t, []any{int32(19724), nil, int32(-1)}, table.Values[3])
	assert.Equal(t, int64(1000), table.Values[4][2])
	assert.Equal(t, []any{"a", nil, "c"}, table.Values[5])
	assert.Equal(t, `{"k":1}`, table.Values[6][0])

	head, err := ReadTable(path, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, head.NumRows())
	assert.EqualValues(t, 3, head.TotalRows)
	assert.Equal(t, []any{int64(1), 1.5, true, int32(19724), int64(1704164645000), "a", `{"k":1}`}, head.Row(0))
}

func TestReadTableKeepsSourceNamesAndNestedTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.parquet")
	w, err := Create(path, &core.Schema{Fields: []core.Field{
		{Name: "id", Type: core.TypeInteger},
		{Name: "first name", Type: core.TypeString},
		{Name: "a.b", Type: core.TypeString},
		{Name: "_tags", Type: core.TypeArray},
		{Name: "attrs", Type: core.TypeObject},
	}})
	require.NoError(t, err)
	require.NoError(t, w.Append(core.Batch{Rows: [][]any{
		{json.Number("1"), "Ada", "x", []any{"a", json.Number("2")}, map[string]any{"k": map[string]any{"n": true}}},
		{json.Number("2"), nil, nil, nil, nil},
	}}))
	require.NoError(t, w.Close())

	table, err := ReadTable(path, -1)
	require.NoError(t, err)
	assert.Equal(t, []Column{
		{Name: "id", Type: core.TypeInteger},
		{Name: "first name", Type: core.TypeString},
		{Name: "a.b", Type: core.TypeString},
		{Name: "_tags", Type: core.TypeArray},
		{Name: "attrs", Type: core.TypeObject},
	}, table.Columns)
	assert.Equal(t, []any{`["a",2]`, nil}, table.Values[3])
	assert.Equal(t, []any{`{"k":{"n":true}}`, nil}, table.Values[4])
}

func TestWriterRejectsUnconvertibleValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.parquet")
	w, err := Create(path, &core.Schema{Fields: []core.Field{{Name: "n", Type: core.TypeInteger}}})
	require.NoError(t, err)

	err = w.Append(core.Batch{Rows: [][]any{{"abc"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `column "n"`)

	require.NoError(t, w.Abort())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEmptyArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	w, err := Create(path, &core.Schema{Fields: []core.Field{{Name: "a", Type: core.TypeString}}})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	table, err := ReadTable(path, -1)
	require.NoError(t, err)
	assert.EqualValues(t, 0, table.TotalRows)
	assert.Equal(t, 0, table.NumRows())
	assert.Len(t, table.Columns, 1)
}

func TestCreateRequiresColumns(t *testing.T) {
	_, err := Create(filepath.Join(t.TempDir(), "x.parquet"), &core.Schema{})
	assert.EqualError(t, err, "source contains no columns")
}

func TestColumnsSanitizesNames(t *testing.T) {
	cols := Columns(&core.Schema{Fields: []core.Field{
		{Name: "a,b"}, {Name: "id"}, {Name: "Id"}, {Name: " "}, {Name: "x=y"},
	}})
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"a_b", "id", "Id_2", "column_4", "x_y"}, names)
}

func TestConvertValue(t *testing.T) {
	v, err := ConvertValue("12", core.TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(12), v)

	v, err = ConvertValue(float64(3), core.TypeInteger)
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)

	_, err = ConvertValue(2.5, core.TypeInteger)
	assert.Error(t, err)

	v, err = ConvertValue(json.Number("7"), core.TypeString)
	require.NoError(t, err)
	assert.Equal(t, "7", v)

	v, err = ConvertValue([]any{json.Number("1"), "x"}, core.TypeArray)
	require.NoError(t, err)
	assert.Equal(t, `[1,"x"]`, v)

	v, err = ConvertValue("plain", core.TypeObject)
	require.NoError(t, err)
	assert.Equal(t, `"plain"`, v)

	v, err = ConvertValue("2024-01-02 03:04:05", core.TypeDatetime)
	require.NoError(t, err)
	assert.Equal(t, int64(1704164645000), v)
}
