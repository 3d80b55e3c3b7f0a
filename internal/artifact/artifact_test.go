package artifact

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
	"github.com/nucleus/datapuur/internal/sink"
)

type jobMap map[string]*core.Job

func (m jobMap) Get(ctx context.Context, id string) (*core.Job, error) {
	job, ok := m[id]
	if !ok {
		return nil, core.NotFoundError("Job %s not found", id)
	}
	return job.Clone(), nil
}

func writeArtifact(t *testing.T, schema *core.Schema, rows [][]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job.parquet")
	w, err := sink.Create(path, schema)
	require.NoError(t, err)
	require.NoError(t, w.Append(core.Batch{Rows: rows}))
	require.NoError(t, w.Close())
	return path
}

// peopleService mirrors the three-row upload: id,name with one empty name.
func peopleService(t *testing.T, format core.SourceFormat) (*Service, string) {
	t.Helper()
	schema := &core.Schema{Name: "people.csv", Fields: []core.Field{
		{Name: "id", Type: core.TypeInteger},
		{Name: "name", Type: core.TypeString, Nullable: true},
	}}
	path := writeArtifact(t, schema, [][]any{{"1", "Alice"}, {"2", "Bob"}, {"3", nil}})
	jobs := jobMap{
		"done": {ID: "done", Name: "people.csv", Format: format, Status: core.JobCompleted, ArtifactPath: path},
		"busy": {ID: "busy", Name: "people.csv", Format: format, Status: core.JobRunning},
	}
	return NewService(jobs, t.TempDir()), "done"
}

func TestPreviewDelimited(t *testing.T) {
	svc, id := peopleService(t, core.FormatDelimited)
	p, err := svc.Preview(context.Background(), id, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "name"}, p.Columns)
	assert.EqualValues(t, 3, p.TotalRows)
	require.Len(t, p.Rows, 3)
	assert.Equal(t, []any{int64(1), "Alice"}, p.Rows[0])
	assert.Equal(t, []any{int64(3), nil}, p.Rows[2])
	assert.Nil(t, p.Records)

	p, err = svc.Preview(context.Background(), id, 2)
	require.NoError(t, err)
	assert.Len(t, p.Rows, 2)
}

func TestPreviewRecordsKeepColumnOrder(t *testing.T) {
	svc, id := peopleService(t, core.FormatTree)
	p, err := svc.Preview(context.Background(), id, 5)
	require.NoError(t, err)
	require.Len(t, p.Records, 3)
	assert.Equal(t, "Bob", p.Records[1].Get("name"))

	b, err := json.Marshal(p.Records[0])
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"name":"Alice"}`, string(b))
}

func TestRequiresCompletedJob(t *testing.T) {
	svc, _ := peopleService(t, core.FormatDelimited)
	ctx := context.Background()

	_, err := svc.Preview(ctx, "busy", 10)
	assert.True(t, core.HasCode(err, core.CodeInvalidState))
	assert.Contains(t, err.Error(), "running")

	_, err = svc.Statistics(ctx, "busy")
	assert.True(t, core.HasCode(err, core.CodeInvalidState))
	_, err = svc.Schema(ctx, "busy")
	assert.True(t, core.HasCode(err, core.CodeInvalidState))
	_, err = svc.Export(ctx, "busy", "csv")
	assert.True(t, core.HasCode(err, core.CodeInvalidState))

	_, err = svc.Preview(ctx, "nope", 10)
	assert.True(t, core.HasCode(err, core.CodeNotFound))
}

func TestSchemaFromArtifact(t *testing.T) {
	svc, id := peopleService(t, core.FormatDelimited)
	schema, err := svc.Schema(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, schema.Fields, 2)

	assert.Equal(t, core.Field{Name: "id", Type: core.TypeInteger, Sample: int64(1)}, schema.Fields[0])
	assert.Equal(t, core.Field{Name: "name", Type: core.TypeString, Nullable: true, Sample: "Alice"}, schema.Fields[1])
}

func TestStatistics(t *testing.T) {
	svc, id := peopleService(t, core.FormatDelimited)
	st, err := svc.Statistics(context.Background(), id)
	require.NoError(t, err)

	assert.EqualValues(t, 3, st.RowCount)
	assert.Equal(t, 2, st.ColumnCount)
	assert.EqualValues(t, 1, st.NullCells)
	assert.Equal(t, 16.67, st.NullPercentage)
	assert.Equal(t, 83.33, st.CompletionRate)
	assert.Equal(t, 33.33, st.Columns[1].NullPercentage)
	assert.Zero(t, st.Columns[0].NullCount)
	assert.Positive(t, st.MemoryBytes)
	assert.Positive(t, st.DataDensity)
	assert.NotEmpty(t, st.MemoryUsage)
}

func TestExportCSVRoundTrip(t *testing.T) {
	svc, id := peopleService(t, core.FormatDelimited)
	out, err := svc.Export(context.Background(), id, "CSV")
	require.NoError(t, err)
	assert.Equal(t, "people.csv", out.FileName)
	assert.Equal(t, "text/csv", out.ContentType)

	data, err := os.ReadFile(out.Path)
	require.NoError(t, err)
	assert.Equal(t, "id,name\n1,Alice\n2,Bob\n3,\n", string(data))

	f, err := os.Open(out.Path)
	require.NoError(t, err)
	schema, err := inference.InferDelimited(f, out.FileName, 0)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, schema.FieldNames())

	require.NoError(t, out.Cleanup())
	assert.NoFileExists(t, out.Path)
	require.NoError(t, out.Cleanup())
}

func TestExportJSONAndParquet(t *testing.T) {
	svc, id := peopleService(t, core.FormatTree)
	ctx := context.Background()

	js, err := svc.Export(ctx, id, "json")
	require.NoError(t, err)
	defer js.Cleanup()
	data, err := os.ReadFile(js.Path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"name":"Alice"},{"id":2,"name":"Bob"},{"id":3,"name":null}]`, string(data))

	pq, err := svc.Export(ctx, id, "parquet")
	require.NoError(t, err)
	defer pq.Cleanup()
	assert.Equal(t, "people.parquet", pq.FileName)
	table, err := sink.ReadTable(pq.Path, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, table.NumRows())

	_, err = svc.Export(ctx, id, "xml")
	assert.True(t, core.HasCode(err, core.CodeValidation))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "2024-01-02", Normalize(int32(19724), sink.Column{Type: core.TypeDate}))
	assert.Equal(t, "1969-12-31", Normalize(int32(-1), sink.Column{Type: core.TypeDate}))
	assert.Equal(t, "2024-01-02T03:04:05", Normalize(int64(1704164645000), sink.Column{Type: core.TypeDatetime}))
	assert.Equal(t, json.RawMessage(`{"k":1}`), Normalize(`{"k":1}`, sink.Column{Type: core.TypeObject}))
	assert.Equal(t, "not json", Normalize("not json", sink.Column{Type: core.TypeObject}))
	assert.Equal(t, float64(1.5), Normalize(float32(1.5), sink.Column{Type: core.TypeFloat}))
	assert.Equal(t, int64(7), Normalize(int32(7), sink.Column{Type: core.TypeInteger}))
	assert.Nil(t, Normalize(nil, sink.Column{Type: core.TypeString}))

	assert.Equal(t, "", Text(nil))
	assert.Equal(t, "2.5", Text(2.5))
	assert.Equal(t, "true", Text(true))
	assert.Equal(t, `[1,2]`, Text(json.RawMessage(`[1,2]`)))
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.50 KB", humanBytes(1536))
	assert.Equal(t, "2.00 MB", humanBytes(2*1024*1024))
}
