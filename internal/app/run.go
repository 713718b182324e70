package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("log-level", a.cfg.LogLevel),
		zap.Bool("allow-unsigned", a.cfg.AllowUnsigned),
		zap.String("storage-mode", a.cfg.StorageMode))

	err := a.startComponents()
	if err != nil {
		return err
	}

	a.registerReadinessChecks()
	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-path", "/ws"))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	// Start HTTP server
	a.wg.Add(1)
	go a.runHTTPServer()

	// Give HTTP server a moment to start
	time.Sleep(100 * time.Millisecond)

	// Start the relay hub and its deadline sweep
	err := a.hub.Start(a.ctx)
	if err != nil {
		return fmt.Errorf("start relay hub: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	err := a.httpServer.Start()
	if err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) registerReadinessChecks() {
	if a.chainClient != nil {
		a.healthChecker.Register("chain-rpc", func() error {
			ctx, cancel := context.WithTimeout(a.ctx, 2*time.Second)
			defer cancel()

			_, err := a.chainClient.BlockNumber(ctx)
			return err
		})
	}
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
