//go:build !test

// Code coverage for main is ignored; the commands only wire tested packages.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/fleetdash/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}

	root := &cobra.Command{
		Use:          "fleetdash",
		Short:        "Fleet admin dashboard and reference backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			*cfg = *loaded
			return applyFlags(cmd, cfg)
		},
	}
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	root.AddCommand(newServeCommand(cfg), newBackendCommand(cfg), newMigrateCommand(cfg))
	return root
}

// applyFlags lets explicitly set flags override the environment
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	overrides := map[string]*string{
		"log-level":   &cfg.LogLevel,
		"backend-url": &cfg.Dashboard.BackendURL,
		"db":          &cfg.Backend.DBPath,
		"seed":        &cfg.Backend.SeedPath,
	}
	switch cmd.Name() {
	case "serve":
		overrides["addr"] = &cfg.Dashboard.Addr
	case "backend":
		overrides["addr"] = &cfg.Backend.Addr
	}

	for name, target := range overrides {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		*target = flag.Value.String()
	}
	return cfg.Validate()
}

// serve runs srv until ctx is cancelled by a signal, then drains it within
// the configured shutdown duration
func serve(ctx context.Context, logger *slog.Logger, srv *http.Server, shutdown time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", slog.Duration("timeout", shutdown))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
