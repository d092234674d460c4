package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/searchworks/partfuse/internal/output"
	"github.com/searchworks/partfuse/internal/search"
)

// newSearchCmd creates the search command.
func newSearchCmd() *cobra.Command {
	var limit int
	var mode string
	var fusion string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Run a one-shot query against the local snapshot",
		Long: `Run a hybrid search against the local index snapshot and print the
fused ranking. The query is classified automatically; use --mode to
force a single strategy.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configDir)
			if err != nil {
				return err
			}

			app, err := buildApp(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer func() { _ = app.close() }()

			query := search.Query{
				Text:  strings.Join(args, " "),
				Limit: limit,
			}
			if fusion != "" {
				query.FusionMode, err = search.ParseFusionMode(fusion)
				if err != nil {
					return err
				}
			}
			query.Strategies, err = strategiesForMode(mode)
			if err != nil {
				return err
			}

			resp, err := app.engine.Search(cmd.Context(), query)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}

			output.NewAuto(cmd.OutOrStdout()).RenderResponse(resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Result count (default from config)")
	cmd.Flags().StringVar(&mode, "mode", "", "Force a strategy: dense, sparse, or neural_sparse")
	cmd.Flags().StringVar(&fusion, "fusion", "", "Fusion mode: rrf or weighted")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the response as JSON")

	return cmd
}

// strategiesForMode maps the --mode flag onto a strategy override.
func strategiesForMode(mode string) ([]search.Strategy, error) {
	if mode == "" || mode == "hybrid" {
		return nil, nil
	}
	strategy, err := search.ParseStrategy(mode)
	if err != nil {
		return nil, err
	}
	return []search.Strategy{strategy}, nil
}
