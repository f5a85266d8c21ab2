package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/api/handlers"
	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/domain"
)

func docsCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "docs",
		Aliases: []string{"documents"},
		Short:   "Inspect and remove ingested documents",
	}

	cmd.AddCommand(docsListCmd(env))
	cmd.AddCommand(docsGetCmd(env))
	cmd.AddCommand(docsDeleteCmd(env))
	cmd.AddCommand(docsURLCmd(env))

	return cmd
}

func docsListCmd(env *Env) *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents, newest first",
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

			page, err := app.KB.ListDocumentsPage(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, handlers.NewListDocumentsResponse(page))
			}
			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No documents.")
				return nil
			}
			for _, d := range page.Items {
				fmt.Fprintf(out, "%s  %-40s  %4d chunks  %s\n", d.ID, d.Filename, d.TotalChunks, formatAddedAt(d.AddedAt))
			}
			if page.HasMore {
				fmt.Fprintf(out, "\nMore results: --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	addOutputFlag(cmd)

	return cmd
}

func docsGetCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <document-id>",
		Short: "Show a document and its chunks",
		Args:  cobra.ExactArgs(1),
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

			doc, err := app.KB.GetDocument(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, handlers.NewDocumentDetailResponse(doc))
			}
			printDocument(cmd, doc)
			return nil
		},
	}

	addOutputFlag(cmd)
	return cmd
}

func printDocument(cmd *cobra.Command, doc *domain.DocumentDetail) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", doc.Filename, doc.ID)
	fmt.Fprintf(out, "Added:  %s\n", formatAddedAt(doc.AddedAt))
	fmt.Fprintf(out, "Chunks: %d\n", len(doc.Chunks))
	for _, c := range doc.Chunks {
		fmt.Fprintf(out, "\n--- #%d", c.Index)
		if c.Pages != "" {
			fmt.Fprintf(out, " p. %s", c.Pages)
		}
		fmt.Fprintf(out, " ---\n%s\n", snippet(c.Text, snippetRunes))
	}
}

func docsDeleteCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and all of its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.open(cmd.Context(), cli.BuildOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.KB.DeleteDocument(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func docsURLCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "url <document-id>",
		Short: "Print a download link for the archived original",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.open(cmd.Context(), cli.BuildOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			url, err := app.KB.OriginalURL(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
}

func formatAddedAt(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}
