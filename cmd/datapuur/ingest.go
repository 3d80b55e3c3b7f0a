package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/core"
)

const pollInterval = 250 * time.Millisecond

func newIngestCommand(stdout io.Writer) *cobra.Command {
	var (
		db    dbFlags
		chunk int
		name  string
	)
	cmd := &cobra.Command{
		Use:   "ingest [file]",
		Short: "Ingest a CSV/JSON file or a database table into a Parquet artifact",
		Long: `
Runs one ingestion job in-process and waits for it to finish. Progress is
printed as the job runs; the final job record is printed as JSON. Interrupting
the command cancels the job.
`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !db.set() && len(args) == 0 {
				return fmt.Errorf("a file argument or --db-type is required")
			}
			return ingest(cmd.Context(), stdout, args, &db, chunk, name)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&chunk, "chunk-size", 0, "Rows per batch. Zero uses the configured default.")
	flags.StringVar(&name, "name", "", "Job name. Defaults to the file or table name.")
	db.register(flags)
	return cmd
}

func ingest(parent context.Context, stdout io.Writer, args []string, db *dbFlags, chunk int, name string) error {
	cfg, logger, closeLog, err := loadConfig(true)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, auth.AllowAll{})
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	opCtx := operatorContext(context.Background())
	var job *core.Job
	if db.set() {
		job, err = a.svc.StartDatabaseIngestion(opCtx, db.params(), chunk, name)
	} else {
		job, err = ingestFile(opCtx, a, args[0], chunk, name)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "job %s queued\n", job.ID)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	last := -1
	for {
		select {
		case <-ctx.Done():
			if _, err := a.svc.CancelJob(opCtx, job.ID); err != nil && !core.HasCode(err, core.CodeInvalidState) {
				logger.Warn("failed to cancel job", "job_id", job.ID, "error", err)
			}
			return errors.New("interrupted")
		case <-ticker.C:
		}

		job, err = a.svc.GetJobStatus(opCtx, job.ID)
		if err != nil {
			return err
		}
		if job.Progress != last {
			last = job.Progress
			fmt.Fprintf(stdout, "%s: %d%% (%d rows)\n", job.Status, job.Progress, job.RowsProcessed)
		}
		if !job.Status.IsTerminal() {
			continue
		}
		if err := printJSON(stdout, job); err != nil {
			return err
		}
		if job.Status == core.JobFailed {
			return fmt.Errorf("job %s failed: %s", job.ID, job.Error)
		}
		if job.ArtifactPath != "" {
			fmt.Fprintf(stdout, "artifact: %s\n", job.ArtifactPath)
		}
		return nil
	}
}

func ingestFile(ctx context.Context, a *app, path string, chunk int, name string) (*core.Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := a.svc.UploadSource(ctx, filepath.Base(path), f, chunk)
	if err != nil {
		return nil, err
	}
	return a.svc.StartFileIngestion(ctx, src.ID, chunk, name)
}
