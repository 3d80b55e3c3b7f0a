package inference

import (
	"os"

	"github.com/nucleus/datapuur/internal/core"
)

// InferFile infers the schema of a stored file of the given format.
func InferFile(path string, format core.SourceFormat, name string, sampleSize int) (*core.Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NotFoundError("source file %s not found", name)
		}
		return nil, core.SchemaError(err, "open source file %s", name)
	}
	defer f.Close()

	switch format {
	case core.FormatDelimited:
		return InferDelimited(f, name, sampleSize)
	case core.FormatTree:
		return InferTree(f, name, sampleSize)
	}
	return nil, core.UnsupportedSourceError("unsupported file format: %s", format)
}
