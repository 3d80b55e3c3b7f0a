package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nucleus/datapuur/internal/auth"
	"github.com/nucleus/datapuur/internal/config"
)

func newTokenCommand(stdout io.Writer) *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an API token signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return fmt.Errorf("DATAPUUR_JWT_SECRET is not set")
			}
			token, err := auth.IssueToken([]byte(cfg.JWTSecret), cfg.JWTIssuer, args[0], roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(stdout, token)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringSliceVar(&roles, "role", []string{"researcher"}, "Role granted by the token. Repeatable.")
	flags.DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime.")
	return cmd
}
