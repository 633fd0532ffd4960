//go:build !test

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/fleetdash/internal/api"
	"github.com/jbweber/homelab/fleetdash/internal/config"
	"github.com/jbweber/homelab/fleetdash/internal/datastore"
)

func newBackendCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "Run the sqlite-backed reference backend API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := cfg.NewLogger(os.Stderr)
			slog.SetDefault(logger)

			db, err := cfg.InitializeDatabase()
			if err != nil {
				return fmt.Errorf("initialize database: %w", err)
			}
			ds := datastore.NewFromDB(db)
			defer func() {
				if err := ds.Close(); err != nil {
					logger.Error("failed to close database", slog.String("error", err.Error()))
				}
			}()

			seed, err := loadSeed(cfg.Backend.SeedPath)
			if err != nil {
				return err
			}
			applied, err := ds.ApplySeed(ctx, seed)
			if err != nil {
				return fmt.Errorf("apply seed: %w", err)
			}
			if applied {
				logger.Info("seeded empty database", slog.Int("servers", len(seed.Servers)))
			}

			router := api.NewRouter(api.NewAPI(ds, api.WithLogger(logger)))
			logger.Info("starting backend", slog.String("db", cfg.Backend.DBPath))
			return serve(ctx, logger, &http.Server{
				Addr:              cfg.Backend.Addr,
				Handler:           router,
				ReadHeaderTimeout: 10 * time.Second,
			}, cfg.ShutdownDuration)
		},
	}

	cmd.Flags().String("addr", "", "backend listen address")
	cmd.Flags().String("db", "", "sqlite database path")
	cmd.Flags().String("seed", "", "YAML seed file applied to an empty database")
	return cmd
}

func loadSeed(path string) (*datastore.Seed, error) {
	if path == "" {
		return datastore.DefaultSeed()
	}
	seed, err := datastore.LoadSeedFile(path)
	if err != nil {
		return nil, fmt.Errorf("load seed %s: %w", path, err)
	}
	return seed, nil
}
