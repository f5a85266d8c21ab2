package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/jobs"
)

func watchCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Ingest files dropped into a directory",
		Long: "Watch a directory and ingest every supported file placed in it. " +
			"Ingested files move to <dir>/processed, failures to <dir>/failed with an .error.txt report.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := env.open(cmd.Context(), cli.BuildOptions{})
			if err != nil {
				return err
			}
			defer app.Close()

			cfg := jobs.InboxConfig{
				Dir:          args[0],
				Workers:      app.Config.InboxWorkers,
				ScanInterval: app.Config.InboxScanInterval,
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers, _ = cmd.Flags().GetInt("workers")
			}
			if cmd.Flags().Changed("scan-interval") {
				cfg.ScanInterval, _ = cmd.Flags().GetDuration("scan-interval")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return jobs.NewInbox(cfg, app.KB, app.Log).Run(ctx)
		},
	}

	cmd.Flags().Int("workers", jobs.DefaultInboxWorkers, "Files ingested in parallel (default KBASE_INBOX_WORKERS)")
	cmd.Flags().Duration("scan-interval", jobs.DefaultInboxScanInterval, "Full rescan period (default KBASE_INBOX_SCAN_INTERVAL)")

	return cmd
}
