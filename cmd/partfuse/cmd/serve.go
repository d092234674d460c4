package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/searchworks/partfuse/internal/api"
	"github.com/searchworks/partfuse/internal/logging"
	"github.com/searchworks/partfuse/internal/store"
	"github.com/searchworks/partfuse/internal/telemetry"
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search HTTP API",
		Long: `Start the HTTP API over the local index snapshot.

The server answers /api/query (and the fixed-mode /api/dense, /api/sparse,
/api/hybrid forms), /healthz, /api/stats, and Prometheus /metrics. It
reloads the snapshot when a reindex swaps it on disk.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}

			if !debugMode {
				logCfg := logging.DefaultConfig()
				logCfg.Level = cfg.Server.LogLevel
				logger, cleanup, err := logging.Setup(logCfg)
				if err != nil {
					return err
				}
				defer cleanup()
				slog.SetDefault(logger)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer func() { _ = app.close() }()

			stats := app.backend.Stats()
			slog.Info("snapshot_loaded",
				slog.String("dir", cfg.Store.Dir),
				slog.Int("products", stats.Products),
				slog.Int("vectors", stats.Vectors),
				slog.Bool("dense", stats.HasDense))

			opts := []api.Option{
				api.WithSnapshotStats(func() store.Stats { return app.backend.Stats() }),
			}
			if app.metrics != nil {
				opts = append(opts, api.WithQueryMetrics(app.metrics))
			}
			if cfg.Server.Metrics {
				opts = append(opts, api.WithPrometheus(telemetry.NewPrometheusMetrics()))
			}

			server, err := api.NewServer(app.engine, cfg.Server, opts...)
			if err != nil {
				return err
			}

			if err := server.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides config)")

	return cmd
}
