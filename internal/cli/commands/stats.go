package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/api/handlers"
	"github.com/tipo-sto/kbase/internal/cli"
)

func statsCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection totals",
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

			stats, err := app.KB.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, handlers.NewStatsResponse(stats))
			}
			fmt.Fprintf(out, "Collection: %s\n", stats.CollectionName)
			fmt.Fprintf(out, "Documents:  %d\n", stats.TotalDocuments)
			fmt.Fprintf(out, "Chunks:     %d\n", stats.TotalChunks)
			return nil
		},
	}

	addOutputFlag(cmd)
	return cmd
}
