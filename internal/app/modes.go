package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"rcarelay/pkg/logging"
)

// shutdownTimeout bounds how long stopping the services may take.
var shutdownTimeout = 5 * time.Second

// runServeMode executes the non-interactive relay daemon
func runServeMode(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.Orchestrator.Start(ctx); err != nil {
		logging.Error("CLI", err, "Failed to start services")
		return err
	}

	logging.Info("CLI", "Relay running. Press Ctrl+C to stop.")
	<-ctx.Done()

	logging.Info("CLI", "--- Shutting down services ---")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := services.Orchestrator.Stop(shutdownCtx)
	services.Orchestrator.Close()
	if closeErr := logging.CloseFileSink(); closeErr != nil {
		logging.Warn("CLI", "Failed to close log file: %v", closeErr)
	}
	return err
}
