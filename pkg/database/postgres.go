package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Defaults applied to zero-valued Config fields
const (
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultConnectAttempts = 5
	DefaultConnectBackoff  = time.Second
)

type Config struct {
	URL      string
	MaxConns int32
	MinConns int32

	// ConnectAttempts bounds how often the initial ping is tried. Postgres
	// commonly comes up after the service in local and compose setups.
	ConnectAttempts int
	ConnectBackoff  time.Duration

	// SlowQuery logs queries slower than this at warn level. Zero disables it.
	SlowQuery time.Duration
}

// NewPool creates a pool and waits until the database answers a ping
func NewPool(ctx context.Context, cfg Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	poolConfig.MaxConns = cfg.MaxConns
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = DefaultMaxConns
	}
	poolConfig.MinConns = min(cfg.MinConns, poolConfig.MaxConns)
	if poolConfig.MinConns == 0 {
		poolConfig.MinConns = min(DefaultMinConns, poolConfig.MaxConns)
	}
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	if cfg.SlowQuery > 0 {
		poolConfig.ConnConfig.Tracer = &slowQueryTracer{threshold: cfg.SlowQuery, logger: logger}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, "create pool")
	}

	if err := waitReady(ctx, pool, cfg, logger); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("database connected",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", poolConfig.MaxConns,
	)
	return pool, nil
}

func waitReady(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) error {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = DefaultConnectAttempts
	}
	backoff := cfg.ConnectBackoff
	if backoff <= 0 {
		backoff = DefaultConnectBackoff
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = pool.Ping(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		logger.Warn("database not ready, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "wait for database")
		}
		backoff *= 2
	}
	return errors.Wrapf(err, "ping after %d attempts", attempts)
}

type slowQueryKey struct{}

type slowQueryStart struct {
	sql   string
	start time.Time
}

// slowQueryTracer implements pgx.QueryTracer
type slowQueryTracer struct {
	threshold time.Duration
	logger    *slog.Logger
}

func (t *slowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, slowQueryKey{}, slowQueryStart{sql: data.SQL, start: time.Now()})
}

func (t *slowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	s, ok := ctx.Value(slowQueryKey{}).(slowQueryStart)
	if !ok {
		return
	}
	if elapsed := time.Since(s.start); elapsed >= t.threshold {
		t.logger.LogAttrs(ctx, slog.LevelWarn, "slow query",
			slog.String("sql", s.sql),
			slog.Duration("duration", elapsed),
			slog.String("command_tag", data.CommandTag.String()),
			slog.Bool("failed", data.Err != nil),
		)
	}
}
