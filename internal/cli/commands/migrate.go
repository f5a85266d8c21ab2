package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/database"
)

var errNeedsPostgres = errors.New("this command requires KBASE_STORE_BACKEND=postgres")

func migrateCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasPostgres() {
				return errNeedsPostgres
			}
			version, err := database.MigrateUp(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schema at version %d\n", version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := env.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if !cfg.HasPostgres() {
				return errNeedsPostgres
			}
			if err := database.MigrateDown(cfg.DatabaseURL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
			return nil
		},
	})

	return cmd
}
