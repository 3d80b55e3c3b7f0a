// Command datapuur runs the DataPuur ingestion service and its operator tools.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand(os.Stdin, os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand builds the datapuur command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	rc := &cobra.Command{
		Use:   "datapuur",
		Short: "DataPuur ingests CSV, JSON and database tables into Parquet artifacts.",
		Long: `DataPuur ingests CSV, JSON and database tables into Parquet artifacts.

Settings come from DATAPUUR_* environment variables, optionally layered over
the YAML file named by --config or DATAPUUR_CONFIG_FILE.
`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("problem getting config flag: %v", err)
			}
			if path != "" {
				return os.Setenv("DATAPUUR_CONFIG_FILE", path)
			}
			return nil
		},
	}
	rc.SetIn(stdin)
	rc.SetOut(stdout)
	rc.SetErr(stderr)
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")

	rc.AddCommand(newServeCommand())
	rc.AddCommand(newInferCommand(stdout))
	rc.AddCommand(newIngestCommand(stdout))
	rc.AddCommand(newTokenCommand(stdout))
	return rc
}
