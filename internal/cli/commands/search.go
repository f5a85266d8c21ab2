package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/api/handlers"
	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/service"
)

const snippetRunes = 240

func searchCmd(env *Env) *cobra.Command {
	var (
		topK         int
		minRelevance float64
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := outputJSON(cmd)
			if err != nil {
				return err
			}
			app, err := env.open(cmd.Context(), cli.BuildOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			query := strings.Join(args, " ")
			hits, err := app.KB.Search(cmd.Context(), service.SearchInput{
				Query:        query,
				TopK:         topK,
				MinRelevance: minRelevance,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, handlers.NewSearchResponse(query, hits))
			}
			if len(hits) == 0 {
				fmt.Fprintln(out, "No relevant fragments found.")
				return nil
			}
			for i, h := range hits {
				fmt.Fprintf(out, "%d. [%.4f] %s #%d", i+1, h.Score, h.Filename, h.ChunkIndex)
				if h.Pages != "" {
					fmt.Fprintf(out, " (p. %s)", h.Pages)
				}
				fmt.Fprintf(out, "\n   %s\n", snippet(h.Text, snippetRunes))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", handlers.DefaultSearchTopK, "Maximum number of results")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", handlers.DefaultSearchMinRelevance, "Minimum relevance score in (0,1]")
	addOutputFlag(cmd)

	return cmd
}

// snippet flattens whitespace and cuts text to at most n runes.
func snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	r := []rune(flat)
	if len(r) <= n {
		return flat
	}
	return string(r[:n]) + "…"
}
