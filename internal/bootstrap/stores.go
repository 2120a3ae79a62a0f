package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/eventbus"
	"github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/memory"
	"github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/postgres"
	"github.com/orchestrix/orchestrix-alerts/internal/adapter/driven/sqlite"
	"github.com/orchestrix/orchestrix-alerts/internal/config"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/projection"
	"github.com/orchestrix/orchestrix-alerts/pkg/database"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

// Stores bundles the event store and read model selected by the driver
type Stores struct {
	Events port.EventStore
	Docs   port.ReadStore

	// Persistent reports whether the read model survives a restart
	Persistent bool

	// Checks are readiness probes for the backing databases
	Checks map[string]func(ctx context.Context) error

	close func()
}

// Close releases database handles
func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects the stores for cfg.Driver, migrating Postgres schemas
func OpenStores(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger, metrics *observability.Metrics) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, database.Config{
			URL:             cfg.DatabaseURL,
			MaxConns:        cfg.MaxConns,
			ConnectAttempts: cfg.ConnectAttempts,
			SlowQuery:       cfg.SlowQuery,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return &Stores{
			Events:     postgres.NewEventStore(pool, metrics),
			Docs:       postgres.NewReadStore(pool, metrics),
			Persistent: true,
			Checks:     map[string]func(ctx context.Context) error{"postgres": pingPool(pool)},
			close:      pool.Close,
		}, nil

	case config.DriverSQLite:
		events, err := sqlite.Open(cfg.SQLitePath, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite event store: %w", err)
		}
		logger.Info("sqlite event store opened", "path", cfg.SQLitePath)
		return &Stores{
			Events: events,
			Docs:   memory.NewReadStore(),
			Checks: map[string]func(ctx context.Context) error{"sqlite": events.Ping},
			close:  func() { _ = events.Close() },
		}, nil

	case config.DriverMemory:
		logger.Warn("using in-memory stores, alerts are lost on restart")
		return &Stores{
			Events: memory.NewEventStore(),
			Docs:   memory.NewReadStore(),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func pingPool(pool *pgxpool.Pool) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// ProjectorConfig converts the configured projection settings
func ProjectorConfig(p config.ProjectionConfig) projection.Config {
	return projection.Config{
		BatchSize:       p.BatchSize,
		BatchTimeout:    p.BatchTimeout(),
		ShutdownTimeout: p.ShutdownTimeout,
		FailurePolicy:   projection.FailurePolicy(p.FailurePolicy),
		MaxPending:      p.MaxPending,
		QueueSize:       p.QueueSize,
		ReplayPageSize:  p.ReplayPageSize,
	}
}

// EventBusConfig converts the configured bus settings
func EventBusConfig(b config.EventBusConfig) eventbus.Config {
	return eventbus.Config{
		BufferSize:   b.BufferSize,
		MaxAttempts:  b.MaxAttempts,
		RetryBackoff: b.RetryBackoff,
	}
}
