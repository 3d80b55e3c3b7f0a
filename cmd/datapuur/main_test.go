package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nucleus/datapuur/internal/core"
)

func localEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DATAPUUR_CONFIG_FILE", "")
	t.Setenv("DATAPUUR_UPLOAD_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("DATAPUUR_ARTIFACT_DIR", filepath.Join(dir, "artifacts"))
	t.Setenv("DATAPUUR_TEMP_DIR", filepath.Join(dir, "tmp"))
	t.Setenv("DATAPUUR_LOG_LEVEL", "error")
	t.Setenv("DATAPUUR_ACTIVITY_DATABASE_URL", "")
	t.Setenv("MINIO_ENDPOINT", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(""), &stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInferFile(t *testing.T) {
	dir := localEnv(t)
	path := writeFile(t, dir, "orders.csv", "id,amount,placed\n1,9.5,2024-01-02\n2,3,2024-01-03\n")

	out, err := run(t, "infer", path)
	require.NoError(t, err)

	var schema core.Schema
	require.NoError(t, json.Unmarshal([]byte(out), &schema))
	require.Len(t, schema.Fields, 3)
	assert.Equal(t, core.TypeInteger, schema.Fields[0].Type)
	assert.Equal(t, core.TypeFloat, schema.Fields[1].Type)
	assert.Equal(t, core.TypeDate, schema.Fields[2].Type)
}

func TestInferRequiresInput(t *testing.T) {
	localEnv(t)
	_, err := run(t, "infer")
	assert.EqualError(t, err, "a file argument or --db-type is required")

	_, err = run(t, "infer", "report.xlsx")
	assert.EqualError(t, err, "Only CSV and JSON files are supported")
}

func TestIngestFile(t *testing.T) {
	dir := localEnv(t)
	path := writeFile(t, dir, "people.json", `[{"id": 1, "name": "Alice"}, {"id": 2, "name": null}]`)

	out, err := run(t, "ingest", path, "--chunk-size", "1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "queued")
	assert.Contains(t, out, `"status": "completed"`)

	matches, err := filepath.Glob(filepath.Join(dir, "artifacts", "*.parquet"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestIngestEmptyFileFails(t *testing.T) {
	dir := localEnv(t)
	path := writeFile(t, dir, "empty.csv", "")

	out, err := run(t, "ingest", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source contains no columns")
	assert.Contains(t, out, `"status": "failed"`)
}

func TestToken(t *testing.T) {
	localEnv(t)
	t.Setenv("DATAPUUR_AUTH_DISABLED", "")
	t.Setenv("DATAPUUR_JWT_SECRET", "s3cret")

	out, err := run(t, "token", "alice", "--role", "viewer")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(strings.TrimSpace(out), "."))
}
