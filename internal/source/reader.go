// Package source yields contiguous batches of rows from delimited files,
// JSON documents and relational tables.
package source

import (
	"context"

	"github.com/nucleus/datapuur/internal/core"
)

// DefaultChunkSize is the batch size used when a request does not set one.
const DefaultChunkSize = 1000

// MaxChunkSize caps the rows held in one batch.
const MaxChunkSize = 1_000_000

// Reader streams a source in batches.
//
// Open performs any pre-scan; afterwards Schema and TotalRows are fixed.
// NextBatch returns io.EOF once every row has been delivered.
type Reader interface {
	Open(ctx context.Context) error
	Schema() *core.Schema
	TotalRows() int64
	NextBatch(ctx context.Context) (core.Batch, error)
	Close() error
}

// ValidateChunkSize rejects non-positive or oversized chunk sizes.
func ValidateChunkSize(n int) error {
	if n <= 0 {
		return core.ValidationError("chunk size must be positive, got %d", n)
	}
	if n > MaxChunkSize {
		return core.ValidationError("chunk size must not exceed %d, got %d", MaxChunkSize, n)
	}
	return nil
}
