//go:build !test

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/fleetdash/internal/config"
	"github.com/jbweber/homelab/fleetdash/internal/migrations"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	var target int64

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Move the backend database schema to a version",
		Long:  "Applies or reverts schema migrations until the backend database is at --to. The default applies every migration.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := cfg.NewLogger(os.Stderr)

			db, err := cfg.OpenDatabase()
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer func() {
				if err := db.Close(); err != nil {
					logger.Error("failed to close database", slog.String("error", err.Error()))
				}
			}()

			m := migrations.NewMigrator(db.DB, migrations.All()...)
			before, err := m.Version(ctx)
			if err != nil {
				return err
			}
			if err := m.MigrateTo(ctx, target); err != nil {
				return err
			}
			after, err := m.Version(ctx)
			if err != nil {
				return err
			}

			logger.Info("schema migrated",
				slog.String("db", cfg.Backend.DBPath),
				slog.Int64("from", before),
				slog.Int64("to", after))
			return nil
		},
	}

	cmd.Flags().Int64Var(&target, "to", -1, "target schema version; 0 reverts everything, negative means latest")
	cmd.Flags().String("db", "", "sqlite database path")
	return cmd
}
