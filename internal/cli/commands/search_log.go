package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/cli"
)

type searchLogEntry struct {
	ID        string   `json:"id"`
	Query     string   `json:"query"`
	Expanded  bool     `json:"expanded"`
	HitCount  int      `json:"hit_count"`
	TopScore  *float64 `json:"top_score"`
	LatencyMs int64    `json:"latency_ms"`
}

func searchLogCmd(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search-log",
		Short: "Show recent searches and how well they were answered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			asJSON, err := outputJSON(cmd)
			if err != nil {
				return err
			}
			app, err := env.open(cmd.Context(), cli.BuildOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			if app.SearchLog == nil {
				return errNeedsPostgres
			}
			rows, err := app.SearchLog.Recent(cmd.Context(), app.Config.CollectionName, limit)
			if err != nil {
				return fmt.Errorf("failed to read search log: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				entries := make([]searchLogEntry, len(rows))
				for i, r := range rows {
					entries[i] = searchLogEntry(r)
				}
				return printJSON(out, entries)
			}
			for _, r := range rows {
				top := "-"
				if r.TopScore != nil {
					top = fmt.Sprintf("%.4f", *r.TopScore)
				}
				fmt.Fprintf(out, "%3d hits  top %-6s  %5dms  %s\n", r.HitCount, top, r.LatencyMs, r.Query)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries")
	addOutputFlag(cmd)

	return cmd
}
