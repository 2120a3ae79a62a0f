package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Store.Driver {
	case DriverPostgres:
		if cfg.Store.DatabaseURL == "" {
			errs = append(errs, "store.databaseURL is required when driver is postgres")
		}
		if cfg.Store.ConnectAttempts < 1 {
			errs = append(errs, "store.connectAttempts must be at least 1")
		}
	case DriverSQLite:
		if cfg.Store.SQLitePath == "" {
			errs = append(errs, "store.sqlitePath is required when driver is sqlite")
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be postgres, sqlite or memory (got %q)", cfg.Store.Driver))
	}

	if cfg.Commands.MaxAttempts < 1 {
		errs = append(errs, "commands.maxAttempts must be at least 1")
	}

	p := cfg.Projection
	if p.BatchSize < 1 {
		errs = append(errs, "projection.batchSize must be at least 1")
	}
	if p.BatchTimeoutMS < 1 {
		errs = append(errs, "projection.batchTimeoutMs must be at least 1")
	}
	if p.ShutdownTimeout <= 0 {
		errs = append(errs, "projection.shutdownTimeout must be positive")
	}
	if p.FailurePolicy != PolicyDrop && p.FailurePolicy != PolicyRequeue {
		errs = append(errs, fmt.Sprintf("projection.failurePolicy must be drop or requeue (got %q)", p.FailurePolicy))
	}
	if p.FailurePolicy == PolicyRequeue && p.MaxPending < p.BatchSize {
		errs = append(errs, "projection.maxPending must be at least projection.batchSize when failurePolicy is requeue")
	}
	if p.QueueSize < 1 {
		errs = append(errs, "projection.queueSize must be at least 1")
	}
	if p.ReplayPageSize < 1 {
		errs = append(errs, "projection.replayPageSize must be at least 1")
	}

	if cfg.EventBus.BufferSize < 1 {
		errs = append(errs, "eventBus.bufferSize must be at least 1")
	}
	if cfg.EventBus.MaxAttempts < 1 {
		errs = append(errs, "eventBus.maxAttempts must be at least 1")
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be json or text (got %q)", cfg.Logging.Format))
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, "tracing.endpoint is required when tracing is enabled")
	}

	if cfg.Temporal.Enabled && cfg.Temporal.HostPort == "" {
		errs = append(errs, "temporal.hostPort is required when temporal is enabled")
	}
	if cfg.Temporal.Enabled && cfg.Store.Driver != DriverPostgres {
		errs = append(errs, "temporal requires the postgres store driver so the worker and API share the read model")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
