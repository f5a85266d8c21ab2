package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tipo-sto/kbase/internal/api/handlers"
	"github.com/tipo-sto/kbase/internal/api/middleware"
	"github.com/tipo-sto/kbase/internal/cli"
	"github.com/tipo-sto/kbase/internal/jobs"
	"github.com/tipo-sto/kbase/internal/server"
)

const shutdownTimeout = 30 * time.Second

func serveCmd(env *Env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Start the knowledge base HTTP API. With --inbox, files dropped into the directory are ingested as well.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			noMigrate, _ := cmd.Flags().GetBool("no-migrate")
			app, err := env.open(cmd.Context(), cli.BuildOptions{Migrate: !noMigrate})
			if err != nil {
				return err
			}
			defer app.Close()

			if port, _ := cmd.Flags().GetString("port"); port != "" {
				app.Config.Port = port
			}
			inbox, _ := cmd.Flags().GetString("inbox")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, app, newHTTPServer(app), inbox)
		},
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default KBASE_PORT)")
	cmd.Flags().Bool("no-migrate", false, "Skip database migrations on startup")
	cmd.Flags().String("inbox", "", "Also watch this directory for files to ingest")

	return cmd
}

func newHTTPServer(app *cli.App) *http.Server {
	cfg := app.Config
	var auth middleware.AuthValidator
	if cfg.HasAPIToken() {
		auth = middleware.StaticToken(cfg.APIToken)
	} else {
		app.Log.Warn("KBASE_API_TOKEN is not set, /knowledge-base is unauthenticated")
	}

	router := server.NewRouter(server.RouterConfig{
		KnowledgeBaseHandler: handlers.NewKnowledgeBaseHandler(app.KB, cfg.MaxUploadBytes, app.Log),
		AuthValidator:        auth,
		Logger:               app.Log,
		MaxBodyBytes:         cfg.MaxUploadBytes + 1<<20,
	})

	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, app *cli.App, srv *http.Server, inboxDir string) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Log.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if inboxDir != "" {
		inbox := jobs.NewInbox(jobs.InboxConfig{
			Dir:          inboxDir,
			Workers:      app.Config.InboxWorkers,
			ScanInterval: app.Config.InboxScanInterval,
		}, app.KB, app.Log)
		g.Go(func() error { return inbox.Run(gctx) })
	}

	g.Go(func() error {
		<-gctx.Done()
		app.Log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	app.Log.Info("server exited")
	return nil
}
