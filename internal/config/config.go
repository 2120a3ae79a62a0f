package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Store drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Projection failure policies
const (
	PolicyDrop    = "drop"
	PolicyRequeue = "requeue"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Store      StoreConfig      `yaml:"store"`
	Commands   CommandConfig    `yaml:"commands"`
	Projection ProjectionConfig `yaml:"projection"`
	EventBus   EventBusConfig   `yaml:"eventBus"`
	Logging    LoggingConfig    `yaml:"logging"`
	Tracing    TracingConfig    `yaml:"tracing"`
	Temporal   TemporalConfig   `yaml:"temporal"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" env:"PORT"`
	ReadTimeout     time.Duration `yaml:"readTimeout" env:"HTTP_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"writeTimeout" env:"HTTP_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idleTimeout" env:"HTTP_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	CORSOrigins     []string      `yaml:"corsOrigins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type StoreConfig struct {
	Driver      string `yaml:"driver" env:"STORE_DRIVER"`
	DatabaseURL string `yaml:"databaseURL" env:"DATABASE_URL"`
	MaxConns    int32  `yaml:"maxConns" env:"DATABASE_MAX_CONNS"`
	SQLitePath  string `yaml:"sqlitePath" env:"SQLITE_PATH"`

	ConnectAttempts int           `yaml:"connectAttempts" env:"DATABASE_CONNECT_ATTEMPTS"`
	SlowQuery       time.Duration `yaml:"slowQuery" env:"DATABASE_SLOW_QUERY"`
}

type CommandConfig struct {
	MaxAttempts int `yaml:"maxAttempts" env:"COMMAND_MAX_ATTEMPTS"`
}

type ProjectionConfig struct {
	BatchSize       int           `yaml:"batchSize" env:"PROJECTION_BATCH_SIZE"`
	BatchTimeoutMS  int           `yaml:"batchTimeoutMs" env:"PROJECTION_BATCH_TIMEOUT_MS"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"PROJECTION_SHUTDOWN_TIMEOUT"`
	FailurePolicy   string        `yaml:"failurePolicy" env:"PROJECTION_FAILURE_POLICY"`
	MaxPending      int           `yaml:"maxPending" env:"PROJECTION_MAX_PENDING"`
	QueueSize       int           `yaml:"queueSize" env:"PROJECTION_QUEUE_SIZE"`
	ReplayPageSize  int           `yaml:"replayPageSize" env:"PROJECTION_REPLAY_PAGE_SIZE"`

	// RebuildOnStart replays the event store into the read model at startup.
	// It is implied by the sqlite driver, whose read model lives in memory.
	RebuildOnStart bool `yaml:"rebuildOnStart" env:"PROJECTION_REBUILD_ON_START"`
}

// BatchTimeout returns the time-based flush threshold
func (p ProjectionConfig) BatchTimeout() time.Duration {
	return time.Duration(p.BatchTimeoutMS) * time.Millisecond
}

type EventBusConfig struct {
	BufferSize   int           `yaml:"bufferSize" env:"EVENTBUS_BUFFER_SIZE"`
	MaxAttempts  int           `yaml:"maxAttempts" env:"EVENTBUS_MAX_ATTEMPTS"`
	RetryBackoff time.Duration `yaml:"retryBackoff" env:"EVENTBUS_RETRY_BACKOFF"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled" env:"TRACING_ENABLED"`
	Endpoint    string  `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName string  `yaml:"serviceName" env:"OTEL_SERVICE_NAME"`
	SampleRatio float64 `yaml:"sampleRatio" env:"OTEL_SAMPLE_RATIO"`
	Environment string  `yaml:"environment" env:"ENVIRONMENT"`
}

type TemporalConfig struct {
	Enabled   bool   `yaml:"enabled" env:"TEMPORAL_ENABLED"`
	HostPort  string `yaml:"hostPort" env:"TEMPORAL_HOST"`
	Namespace string `yaml:"namespace" env:"TEMPORAL_NAMESPACE"`
	TaskQueue string `yaml:"taskQueue" env:"TEMPORAL_TASK_QUEUE"`
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE if set, and the process environment, in that order.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv("CONFIG_FILE"), nil)
}

// LoadFrom reads the YAML file at path (skipped when empty) and overlays
// environ, or the process environment when environ is nil
func LoadFrom(path string, environ map[string]string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"http://localhost:3000"},
		},
		Store: StoreConfig{
			Driver:     DriverMemory,
			MaxConns:        10,
			SQLitePath:      "data/alerts.db",
			ConnectAttempts: 5,
			SlowQuery:       500 * time.Millisecond,
		},
		Commands: CommandConfig{
			MaxAttempts: 3,
		},
		Projection: ProjectionConfig{
			BatchSize:       100,
			BatchTimeoutMS:  120000,
			ShutdownTimeout: 10 * time.Second,
			FailurePolicy:   PolicyDrop,
			MaxPending:      10000,
			QueueSize:       1024,
			ReplayPageSize:  500,
		},
		EventBus: EventBusConfig{
			BufferSize:   1024,
			MaxAttempts:  3,
			RetryBackoff: 100 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Endpoint:    "localhost:4318",
			ServiceName: "orchestrix-alerts",
			SampleRatio: 1,
			Environment: "development",
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "orchestrix-alerts",
		},
	}
}
