package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/aretw0/deployd"
	"github.com/aretw0/deployd/internal/cli"
	"github.com/aretw0/deployd/internal/presentation/tui"
	httpAdapter "github.com/aretw0/deployd/pkg/adapters/http"
	"github.com/aretw0/deployd/pkg/domain"
	"github.com/aretw0/deployd/pkg/ports"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve [deployment...]",
	Short: "Start the HTTP admin server",
	Long: `Starts the supervisor and exposes it over HTTP:

  GET    /deployments         list live deployments
  GET    /deployments/{name}  inspect one
  POST   /deployments/{name}  spawn a model under name
  DELETE /deployments/{name}  kill it
  GET    /events              lifecycle and model change events (SSE)
  GET    /metrics             Prometheus metrics

Deployments given as arguments are spawned at startup. Every live deployment
is killed on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}

		streams := httpAdapter.NewStreamManager(logger)
		d, err := cli.Open(cfg, logger, deployd.WithLifecycleHooks(streams.Hooks()))
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		if tui.IsTerminal(os.Stdout) {
			tui.PrintBanner(os.Stdout, deployd.Version)
		}

		// 1. Initial deployments
		for _, name := range args {
			proc, err := d.Deploy(ctx, name, name, domain.SpawnOptions{Wait: true})
			if err != nil {
				_ = d.Close()
				return err
			}
			logger.Info("Deployment started", "deployment", name, "pid", proc.PID())
		}

		// 2. Model changes, when the loader can watch
		if watcher, ok := d.Loader().(ports.ModelWatcher); ok {
			changes, err := watcher.Watch(ctx)
			if err != nil {
				logger.Warn("Model watch disabled", "err", err)
			} else {
				go streams.Forward(ctx, changes)
			}
		}

		srv := &http.Server{
			Addr: cfg.HTTP.Addr,
			Handler: httpAdapter.NewHandler(&httpAdapter.Server{
				Supervisor: d.Supervisor(),
				Streams:    streams,
				Metrics:    d.Metrics().Handler(),
				Version:    deployd.Version,
				Logger:     logger,
			}),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting deployd server", "addr", srv.Addr, "models", cfg.ModelsDir)
			serverErrors <- srv.ListenAndServe()
		}()

		// Blocking main and waiting for shutdown.
		var serveErr error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				serveErr = fmt.Errorf("server error: %w", err)
			}
		case <-ctx.Done():
			logger.Info("Start shutdown", "signal", ctx.Signal())
		}

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
			if err := srv.Close(); err != nil {
				logger.Error("Error killing server", "err", err)
			}
		}
		if err := d.Close(); err != nil {
			logger.Warn("Some deployments did not shut down cleanly", "err", err)
		}
		logger.Info("deployd server stopped")
		return serveErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on (overrides http.addr)")
}
