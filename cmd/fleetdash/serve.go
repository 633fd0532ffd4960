//go:build !test

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/jbweber/homelab/fleetdash/internal/config"
	"github.com/jbweber/homelab/fleetdash/internal/gateway"
	"github.com/jbweber/homelab/fleetdash/internal/session"
	"github.com/jbweber/homelab/fleetdash/internal/textgen"
	"github.com/jbweber/homelab/fleetdash/internal/web"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := cfg.NewLogger(os.Stderr)
			slog.SetDefault(logger)

			gw := gateway.New(cfg.Dashboard.BackendURL, gateway.WithLogger(logger))

			assistant, err := textgen.NewGeminiAssistant(ctx, cfg.APIKey,
				textgen.WithModel(cfg.TextGen.Model),
				textgen.WithRateLimit(cfg.TextGen.RPS, cfg.TextGen.Burst),
				textgen.WithLogger(logger))
			if err != nil {
				return fmt.Errorf("text generation client: %w", err)
			}
			if !assistant.Available() {
				logger.Warn("no API key configured, the assistant uses built-in templates")
			}

			sessions := session.NewManager(gw, assistant, cfg.Dashboard.SessionTTL, logger)
			if err := sessions.StartSweeper(cfg.Dashboard.SessionSweep); err != nil {
				return fmt.Errorf("session sweeper: %w", err)
			}
			defer sessions.Stop()

			dash, err := web.NewServer(sessions, web.Settings{
				BackendURL:  gw.BaseURL(),
				ExportURL:   gw.ExportURL(),
				Model:       cfg.TextGen.Model,
				AIAvailable: assistant.Available(),
			}, web.WithGatherer(prometheus.DefaultGatherer), web.WithLogger(logger))
			if err != nil {
				return err
			}

			logger.Info("starting dashboard",
				slog.String("env", cfg.Env),
				slog.String("backend_url", gw.BaseURL()))
			return serve(ctx, logger, &http.Server{
				Addr:              cfg.Dashboard.Addr,
				Handler:           dash.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}, cfg.ShutdownDuration)
		},
	}

	cmd.Flags().String("addr", "", "dashboard listen address")
	cmd.Flags().String("backend-url", "", "backend API base URL")
	return cmd
}
