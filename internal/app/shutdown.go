package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)

	// Cancel context to signal all components
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Stop accepting new connections first
	err := a.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	// Drain the relay hub
	err = a.hub.Close()
	if err != nil {
		a.logger.Error("relay-close-error", zap.Error(err))
	}

	// Close the audit sink
	err = a.audit.Close()
	if err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	if a.chainClient != nil {
		a.chainClient.Close()
	}

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")

	return nil
}
