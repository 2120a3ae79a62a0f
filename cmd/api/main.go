package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/eventbus"
	temporaladapter "github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/temporal"
	alerthttp "github.com/orchestrix/orchestrix-alerts/internal/adapter/driving/http"
	"github.com/orchestrix/orchestrix-alerts/internal/bootstrap"
	"github.com/orchestrix/orchestrix-alerts/internal/config"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/core/service"
	"github.com/orchestrix/orchestrix-alerts/internal/projection"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/orchestrix/orchestrix-alerts/pkg/temporal"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	metrics := observability.InitMetrics("orchestrix")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		Environment:  cfg.Tracing.Environment,
		OTLPEndpoint: cfg.Tracing.Endpoint,
		SampleRatio:  cfg.Tracing.SampleRatio,
		Enabled:      cfg.Tracing.Enabled,
	}); err != nil {
		return err
	}

	// Stores
	stores, err := bootstrap.OpenStores(ctx, cfg.Store, logger, metrics)
	if err != nil {
		return err
	}
	defer stores.Close()

	// Projection
	bus := eventbus.New(bootstrap.EventBusConfig(cfg.EventBus), logger, metrics)
	projector := projection.NewProjector(stores.Docs, stores.Events, bootstrap.ProjectorConfig(cfg.Projection),
		projection.WithLogger(logger),
		projection.WithMetrics(metrics),
	)
	projector.Start(ctx)
	if err := bus.Subscribe(projector); err != nil {
		return err
	}

	// Services
	commands := service.NewAlertService(stores.Events, bus,
		service.WithMetrics(metrics),
		service.WithMaxAttempts(cfg.Commands.MaxAttempts),
	)

	var starter port.WorkflowStarter
	if cfg.Temporal.Enabled {
		tcfg := temporal.Config{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			TaskQueue: cfg.Temporal.TaskQueue,
		}
		c, err := temporal.Dial(tcfg, logger)
		if err != nil {
			return err
		}
		defer c.Close()
		starter = temporaladapter.NewRebuildStarter(c, tcfg.TaskQueueOrDefault(), cfg.Projection.ReplayPageSize)
	}
	rebuilder := service.NewRebuildService(starter, bus, projector.Name(), metrics)

	if cfg.Projection.RebuildOnStart || !stores.Persistent {
		if _, err := bus.Reset(ctx, projector.Name()); err != nil {
			return err
		}
	}

	checks := make(map[string]alerthttp.ReadinessCheck, len(stores.Checks))
	for name, check := range stores.Checks {
		checks[name] = check
	}

	router := alerthttp.NewRouter(alerthttp.RouterConfig{
		Commands:       commands,
		Queries:        service.NewAlertQueryService(stores.Docs),
		Ingest:         service.NewIngestService(commands, metrics),
		Rebuilder:      rebuilder,
		Checks:         checks,
		Logger:         logger,
		Metrics:        metrics,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Server.WriteTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Server.Port, "store", cfg.Store.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		// Intake stops before the bus drains into the projector
		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := bus.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := projector.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := observability.ShutdownTracing(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}
