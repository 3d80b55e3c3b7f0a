package orchestration

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/nucleus/datapuur/internal/connector/jdbc"
	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/source"
)

// FileOpener reads an uploaded file according to its format.
func FileOpener(src *core.UploadedSource, chunkSize int) Opener {
	src = src.Clone()
	return func(ctx context.Context) (source.Reader, error) {
		switch src.Format {
		case core.FormatDelimited:
			return source.NewDelimitedReader(src.Path, src.Filename, chunkSize), nil
		case core.FormatTree:
			return source.NewTreeReader(src.Path, src.Filename, chunkSize), nil
		}
		return nil, core.UnsupportedSourceError("Unsupported file type: %s", src.Format)
	}
}

// DatabaseOpener connects with cfg and pages through cfg.Table. The
// connection is released when the reader is closed.
func DatabaseOpener(cfg *jdbc.Config, chunkSize int, limiter *rate.Limiter) Opener {
	return func(ctx context.Context) (source.Reader, error) {
		db, err := jdbc.Open(cfg)
		if err != nil {
			return nil, err
		}
		return &ownedReader{
			RelationalReader: source.NewRelationalReader(db, cfg.Table, chunkSize, limiter),
			db:               db,
		}, nil
	}
}

type ownedReader struct {
	*source.RelationalReader
	db *jdbc.Base
}

func (r *ownedReader) Close() error {
	_ = r.RelationalReader.Close()
	return r.db.Close()
}
