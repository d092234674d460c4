package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/searchworks/partfuse/internal/output"
	"github.com/searchworks/partfuse/internal/store"
	"github.com/searchworks/partfuse/internal/telemetry"
)

// newStatsCmd creates the stats command.
func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show snapshot and query statistics",
		Long: `Show the loaded snapshot's contents and the persisted query metrics:
per-category counts, per-strategy usage and latency, cache hit rate,
and zero-result queries.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}

			backend, err := store.Open(cfg.Store.Dir, 0)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			metrics, err := buildMetrics(backend)
			if err != nil {
				return err
			}

			stats := backend.Stats()
			var snapshot *telemetry.QueryMetricsSnapshot
			if metrics != nil {
				snapshot = metrics.Snapshot()
				defer func() { _ = metrics.Close() }()
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"snapshot": stats,
					"queries":  snapshot,
				})
			}

			printStats(output.NewAuto(cmd.OutOrStdout()), stats, snapshot)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output stats as JSON")

	return cmd
}

func printStats(w *output.Writer, stats store.Stats, snapshot *telemetry.QueryMetricsSnapshot) {
	w.Statusf("📦", "Snapshot: %d products, %d vectors (dense: %v)",
		stats.Products, stats.Vectors, stats.HasDense)

	if snapshot == nil || snapshot.TotalQueries == 0 {
		w.Status("", "No queries recorded yet")
		return
	}

	w.Newline()
	w.Statusf("🔍", "Queries: %d total, %.1f%% zero-result, %.0f%% cached, %d degraded",
		snapshot.TotalQueries,
		snapshot.ZeroResultPercentage(),
		snapshot.CacheHitRate()*100,
		snapshot.DegradedCount)

	for strategy, count := range snapshot.StrategyCounts {
		latency := snapshot.StrategyLatency[strategy]
		w.Status("", fmt.Sprintf("%-14s %6d calls, avg %s",
			strategy, count, latency.Round(time.Millisecond)))
	}

	if len(snapshot.TopTerms) > 0 {
		w.Newline()
		w.Status("🏷️", "Top terms:")
		for _, tc := range snapshot.TopTerms {
			w.Status("", fmt.Sprintf("%-20s %d", tc.Term, tc.Count))
		}
	}
}
