package core

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCodeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotFoundError("job %s not found", "abc"))
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, HasCode(err, CodeValidation))
	assert.Equal(t, "outer: job abc not found", err.Error())
	assert.Equal(t, "", CodeOf(errors.New("plain")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ConnectionError(cause, "connection failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "connection failed: dial tcp: refused", err.Error())
}

func TestErrorConstructorCodes(t *testing.T) {
	cause := errors.New("boom")
	tests := map[string]*Error{
		CodeValidation:        ValidationError("bad %d", 1),
		CodeNotFound:          NotFoundError("missing"),
		CodeSchema:            SchemaError(cause, "unparseable"),
		CodeUnsupportedSource: UnsupportedSourceError("xls"),
		CodeConnection:        ConnectionError(cause, "down"),
		CodeInvalidState:      InvalidStateError("running"),
		CodeIngestionFailed:   IngestionFailure(cause, "failed"),
		CodeForbidden:         ForbiddenError("no"),
		CodeUnavailable:       UnavailableError("full"),
	}
	for code, err := range tests {
		assert.True(t, HasCode(err, code), code)
	}
	assert.Equal(t, "bad 1", tests[CodeValidation].Error())
	assert.ErrorIs(t, tests[CodeSchema], cause)
}

func TestJobCloneIsDeep(t *testing.T) {
	job := &Job{ID: "j1", Config: map[string]any{"nested": map[string]any{"a": 1}}}
	job.StartTime = time.Now()
	job.Finish(job.StartTime.Add(2 * time.Second))

	cp := job.Clone()
	cp.Config["nested"].(map[string]any)["a"] = 2
	*cp.EndTime = time.Time{}

	assert.Equal(t, 1, job.Config["nested"].(map[string]any)["a"])
	assert.False(t, job.EndTime.IsZero())
	assert.Equal(t, "0:00:02.000", job.DurationString())
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	page := Paginate(items, PageRequest{Page: 2, Limit: 3})
	require.Equal(t, []int{4, 5, 6}, page.Items)
	assert.Equal(t, 7, page.Total)
	assert.Equal(t, 3, page.TotalPages)

	beyond := Paginate(items, PageRequest{Page: 9, Limit: 3})
	assert.Empty(t, beyond.Items)

	defaults := Paginate(items, PageRequest{})
	assert.Equal(t, 1, defaults.Page)
	assert.Equal(t, DefaultPageLimit, defaults.Limit)
}

func TestTerminalStatuses(t *testing.T) {
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobRunning.IsTerminal())
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}
