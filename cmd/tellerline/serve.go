package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tellerline/tellerline/internal/concurrency"
	"github.com/tellerline/tellerline/internal/config"
	"github.com/tellerline/tellerline/internal/idempotency"
	"github.com/tellerline/tellerline/internal/metrics"
	"github.com/tellerline/tellerline/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the orchestration engine HTTP service",
	Long:  `Starts the engine as a long-running service: turn ingress over HTTP, scheduled metrics rollups, and crash reconciliation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		sig := NewSignalHandler(cmd.Context())
		sig.Start()
		defer sig.Stop()

		app, err := buildApp(sig.ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		// Finish anything a previous crash left half-applied before taking
		// traffic.
		if _, err := app.orch.Reconcile(sig.ctx); err != nil {
			return fmt.Errorf("startup reconcile: %w", err)
		}

		ledger, err := idempotency.NewLedger(cfg.Ingress.IdempotencyPath)
		if err != nil {
			return fmt.Errorf("open delivery ledger: %w", err)
		}
		if pruned := ledger.Prune(); pruned > 0 {
			slog.Info("Pruned expired delivery keys", "count", pruned)
		}

		runner := metrics.NewRunner(app.aggregator, app.orch, cfg.Aggregator)
		if err := runner.Start(sig.ctx); err != nil {
			return fmt.Errorf("start metrics runner: %w", err)
		}
		defer runner.Stop()

		srv, err := server.New(cfg.Server, app.orch, app.aggregator, ledger, cfg.Ingress.IdempotencyTTL)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		concurrency.SafeGo(func() {
			errCh <- srv.Start()
		}, nil)

		select {
		case err := <-errCh:
			return err
		case <-sig.ctx.Done():
		}

		shutdownTimeout, err := config.DurationOrDefault(cfg.Server.ShutdownTimeout, config.DefaultServerShutdownTimeout)
		if err != nil {
			shutdownTimeout = 0
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP shutdown failed", "error", err)
		}
		if err := ledger.Save(); err != nil {
			slog.Warn("Failed to persist delivery ledger on shutdown", "error", err)
		}
		slog.Info("Engine stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
