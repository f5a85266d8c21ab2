// Package commands implements the kbased command tree.
package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/config"
	"github.com/tipo-sto/kbase/internal/logger"
)

// Env is what commands need from the outside world. Tests replace Open to
// run commands against an in-memory knowledge base.
type Env struct {
	Out        io.Writer
	LoadConfig func() (*config.Config, error)
	Open       func(ctx context.Context, cfg *config.Config, opts cli.BuildOptions) (*cli.App, error)
}

// DefaultEnv loads KBASE_* configuration and builds the real backends.
func DefaultEnv() *Env {
	return &Env{
		Out:        os.Stdout,
		LoadConfig: config.Load,
		Open: func(ctx context.Context, cfg *config.Config, opts cli.BuildOptions) (*cli.App, error) {
			log, err := logger.New(cfg.LogFormat, cfg.LogLevel)
			if err != nil {
				return nil, err
			}
			app, err := cli.Build(ctx, cfg, log, opts)
			if err != nil {
				log.Sync()
				return nil, err
			}
			return app, nil
		},
	}
}

// open loads configuration and wires the app.
func (e *Env) open(ctx context.Context, opts cli.BuildOptions) (*cli.App, error) {
	cfg, err := e.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return e.Open(ctx, cfg, opts)
}

func NewRootCmd(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           "kbased",
		Short:         "TIPO-STO document knowledge base",
		Long:          "Ingest repair manuals and regulations, then search them semantically over HTTP or from the shell.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.Out)

	cli.AddHelpJSONFlag(root)
	root.AddCommand(
		serveCmd(env),
		migrateCmd(env),
		ingestCmd(env),
		searchCmd(env),
		docsCmd(env),
		statsCmd(env),
		watchCmd(env),
		searchLogCmd(env),
	)
	return root
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
}

// outputJSON reports whether -o json was given, rejecting unknown formats.
func outputJSON(cmd *cobra.Command) (bool, error) {
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case "text", "":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("unknown output format %q", format)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
