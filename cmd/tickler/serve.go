package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/tickler/internal/cli"
	httpAdapter "github.com/aretw0/tickler/pkg/adapters/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP intake server",
	Long: `Accepts POST / with {"raw_body": "..."} and answers with the run record.
Also serves /runs/{id}, /healthz, /metrics and /openapi.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, app, err := loadApp(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		defer closeApp(app)
		logger := app.Logger

		handler, err := httpAdapter.NewHandler(app.Engine,
			httpAdapter.WithAPIKey(cfg.HTTP.APIKey),
			httpAdapter.WithThrottle(cfg.HTTP.ThrottleLimit, cfg.HTTP.ThrottleBacklog, cfg.HTTP.ThrottleTimeout),
			httpAdapter.WithHistory(app.Store),
			httpAdapter.WithMaxInputSize(cfg.MaxInputSize),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(app.Gatherer, promhttp.HandlerOpts{})),
			httpAdapter.WithLogger(logger),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		if cfg.HTTP.APIKey == "" {
			logger.Warn("HTTP API key not set; POST / is open to any caller")
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting tickler server", "addr", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case <-sigCtx.Done():
			logger.Info("Shutdown started", "cause", context.Cause(sigCtx))

			// Runs can take up to the configured run timeout.
			grace := cfg.RunTimeout + 5*time.Second
			ctx, cancel := context.WithTimeout(context.Background(), grace)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("Graceful shutdown did not complete", "timeout", grace, "error", err)
				return srv.Close()
			}
			logger.Info("Tickler server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http.addr)")
}
