package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/domain"
	"github.com/tipo-sto/kbase/internal/service"
)

type ingestOutcome struct {
	File       string `json:"file"`
	DocumentID string `json:"document_id,omitempty"`
	ChunkCount int    `json:"chunk_count,omitempty"`
	TokenCount int    `json:"token_count,omitempty"`
	Error      string `json:"error,omitempty"`
	Stage      string `json:"stage,omitempty"`
}

func ingestCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Add documents to the knowledge base",
		Long:  "Extract, chunk, embed and store each file. Every file is attempted; the command fails if any of them failed.",
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

			out := cmd.OutOrStdout()
			outcomes := make([]ingestOutcome, 0, len(args))
			failed := 0
			for _, path := range args {
				o := ingestOutcome{File: filepath.Base(path)}
				res, err := app.KB.Ingest(cmd.Context(), service.IngestInput{Path: path})
				if err != nil {
					failed++
					o.Error = err.Error()
					o.Stage = domain.StageOf(err)
				} else {
					o.DocumentID = res.DocumentID
					o.ChunkCount = res.ChunkCount
					o.TokenCount = res.TokenCount
				}
				outcomes = append(outcomes, o)

				if asJSON {
					continue
				}
				if o.Error != "" {
					fmt.Fprintf(out, "FAIL %s: %s\n", o.File, o.Error)
				} else {
					fmt.Fprintf(out, "ok   %s: %s (%d chunks, %d tokens)\n", o.File, o.DocumentID, o.ChunkCount, o.TokenCount)
				}
			}

			if asJSON {
				if err := printJSON(out, outcomes); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	addOutputFlag(cmd)
	return cmd
}
