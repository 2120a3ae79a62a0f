package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/worker"

	"github.com/orchestrix/orchestrix-alerts/internal/activity"
	"github.com/orchestrix/orchestrix-alerts/internal/bootstrap"
	"github.com/orchestrix/orchestrix-alerts/internal/config"
	"github.com/orchestrix/orchestrix-alerts/internal/projection"
	"github.com/orchestrix/orchestrix-alerts/internal/workflow"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/orchestrix/orchestrix-alerts/pkg/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := observability.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.InitMetrics("orchestrix")

	ctx := context.Background()

	if cfg.Store.Driver != config.DriverPostgres {
		logger.Warn("worker store is not shared with the API, rebuilds will not reach its read model",
			"driver", cfg.Store.Driver)
	}

	stores, err := bootstrap.OpenStores(ctx, cfg.Store, logger, metrics)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	// The worker's projector only runs rebuilds; live events are projected
	// by the API process
	projector := projection.NewProjector(stores.Docs, stores.Events, bootstrap.ProjectorConfig(cfg.Projection),
		projection.WithLogger(logger),
		projection.WithMetrics(metrics),
	)
	projector.Start(ctx)

	// Temporal client
	tcfg := temporal.Config{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}
	c, err := temporal.Dial(tcfg, logger)
	if err != nil {
		slog.Error("failed to create temporal client", "error", err)
		os.Exit(1)
	}
	defer c.Close()

	// Worker
	taskQueue := tcfg.TaskQueueOrDefault()
	w := worker.New(c, taskQueue, worker.Options{})

	// Register workflows
	w.RegisterWorkflow(workflow.RebuildAlertProjection)

	// Register activities
	w.RegisterActivity(activity.New(projector))

	// Start worker
	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting temporal worker", "taskQueue", taskQueue)
		errCh <- w.Run(worker.InterruptCh())
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		slog.Info("shutting down worker...")
		w.Stop()
	case err := <-errCh:
		if err != nil {
			slog.Error("worker error", "error", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, cfg.Projection.ShutdownTimeout)
	defer cancel()
	if err := projector.Stop(stopCtx); err != nil {
		slog.Error("projector did not stop cleanly", "error", err)
	}
	slog.Info("worker exited")
}
