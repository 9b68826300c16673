package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mikey/gmail-sweeper/internal/config"
	"github.com/mikey/gmail-sweeper/internal/core"
	"github.com/mikey/gmail-sweeper/internal/di"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	creds *config.CredentialsConfig,
	sweeper *core.SweepService,
	audit core.AuditRepository,
) error {
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting Gmail sweeper",
		zap.String("domain", creds.Domain),
		zap.Duration("check_interval", creds.CheckInterval),
		zap.Time("start_date", creds.StartDate))

	// A policy record must exist before the loop starts; failure here is fatal
	if err := sweeper.EnsurePolicy(ctx, creds.StartDate); err != nil {
		logger.Error("Failed to initialize policy record", zap.Error(err))
		return err
	}

	for {
		stats, err := sweeper.RunCycle(ctx)
		if err != nil {
			// Per-cycle errors are logged; the loop retries on the next interval
			logger.Error("Sweep cycle failed", zap.Error(err))
		} else {
			logger.Info("Sweep cycle complete",
				zap.Int("found", stats.Found),
				zap.Int("processed", stats.Processed),
				zap.Int("swept", stats.Swept),
				zap.Int("skipped", stats.Skipped))
		}

		logger.Info("Waiting before next check",
			zap.Duration("interval", creds.CheckInterval))

		select {
		case <-ctx.Done():
			logger.Info("Shutting down...")
			if stopper, ok := audit.(interface{ Stop() }); ok {
				stopper.Stop()
			}
			logger.Info("Shutdown complete")
			return nil
		case <-time.After(creds.CheckInterval):
		}
	}
}
