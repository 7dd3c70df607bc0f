//go:build windows

// cmd/handle-worker/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"comport-service/internal/config"
	"comport-service/internal/handles/worker"
	"comport-service/internal/utils"
)

const exhaustionCheck = time.Second

// The worker runs elevated next to the service. It resolves handle names for
// the service over the named pipe and exits when the service disconnects; the
// service watchdog starts it again.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer utils.CloseLogger(logger)
	logger = logger.With(zap.String("service", "handle-worker"))

	if err := run(cfg, logger); err != nil {
		logger.Error("Handle worker failed", zap.Error(err))
		utils.CloseLogger(logger)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	resolver, err := worker.NewResolver(logger)
	if err != nil {
		return err
	}

	conn, err := worker.Dial(ctx, cfg.Handles.PipeName, cfg.Handles.RetryDelay)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Handles.PipeName, err)
	}
	defer conn.Close()
	logger.Info("Connected to service", zap.String("pipe", cfg.Handles.PipeName))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		ticker := time.NewTicker(exhaustionCheck)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if resolver.Exhausted() {
					logger.Warn("Too many stuck name queries, exiting")
					cancel()
					return
				}
			}
		}
	}()

	err = worker.Serve(ctx, conn, resolver, logger)
	if resolver.Exhausted() {
		return fmt.Errorf("name queries exhausted: %w", err)
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}
