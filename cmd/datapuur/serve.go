package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nucleus/datapuur/internal/auth"
	transport "github.com/nucleus/datapuur/internal/transport/http"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the DataPuur HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, logger, closeLog, err := loadConfig(false)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}

	handler := transport.Handler(a.svc, transport.Options{
		Auth: auth.Options{
			Secret:       []byte(cfg.JWTSecret),
			Issuer:       cfg.JWTIssuer,
			Disabled:     cfg.AuthDisabled,
			DefaultRoles: cfg.DefaultRoles,
			Debug:        cfg.LogLevel == "debug",
		},
		Logger: logger,
	})
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("DataPuur listening", "addr", cfg.Addr(), "auth_disabled", cfg.AuthDisabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server error", "error", err)
			_ = a.close(context.Background())
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down server", "error", err)
	}
	if err := a.close(shutdownCtx); err != nil {
		logger.Error("error draining ingestion jobs", "error", err)
		return err
	}
	return nil
}
