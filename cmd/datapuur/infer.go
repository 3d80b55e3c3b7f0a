package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nucleus/datapuur/internal/core"
	"github.com/nucleus/datapuur/internal/inference"
	"github.com/nucleus/datapuur/internal/uploads"
)

func newInferCommand(stdout io.Writer) *cobra.Command {
	var (
		db     dbFlags
		sample int
	)
	cmd := &cobra.Command{
		Use:   "infer [file]",
		Short: "Print the inferred schema of a CSV/JSON file or a database table",
		Long: `
Infers column types from the first --sample records of a CSV or JSON file,
or from the column metadata of a database table when --db-type is set.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				schema *core.Schema
				err    error
			)
			switch {
			case db.set():
				schema, err = inferTable(cmd.Context(), &db)
			case len(args) == 1:
				schema, err = inferFile(args[0], sample)
			default:
				return fmt.Errorf("a file argument or --db-type is required")
			}
			if err != nil {
				return err
			}
			return printJSON(stdout, schema)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&sample, "sample", inference.DefaultSampleSize, "Number of records sampled for type inference.")
	db.register(flags)
	return cmd
}

func inferFile(path string, sample int) (*core.Schema, error) {
	format, _, err := uploads.FormatOf(path)
	if err != nil {
		return nil, err
	}
	return inference.InferFile(path, format, path, sample)
}

func inferTable(ctx context.Context, db *dbFlags) (*core.Schema, error) {
	cfg, logger, closeLog, err := loadConfig(true)
	if err != nil {
		return nil, err
	}
	defer closeLog()
	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	defer a.close(context.Background())
	return a.svc.InferDatabaseSchema(operatorContext(ctx), db.params())
}
