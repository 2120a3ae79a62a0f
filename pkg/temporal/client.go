package temporal

import (
	"log/slog"

	"github.com/go-faster/errors"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
)

// DefaultTaskQueue is used when no task queue is configured
const DefaultTaskQueue = "orchestrix-alerts"

type Config struct {
	HostPort  string
	Namespace string
	TaskQueue string
}

// TaskQueueOrDefault returns the configured task queue or the default
func (c Config) TaskQueueOrDefault() string {
	if c.TaskQueue == "" {
		return DefaultTaskQueue
	}
	return c.TaskQueue
}

// Dial connects a Temporal client that logs through logger
func Dial(cfg Config, logger *slog.Logger) (client.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	host := cfg.HostPort
	if host == "" {
		host = client.DefaultHostPort
	}

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: cfg.Namespace,
		Logger:    tlog.NewStructuredLogger(logger),
	})
	if err != nil {
		return nil, errors.Wrap(err, "dial temporal")
	}

	logger.Info("temporal client connected", "host", host, "namespace", cfg.Namespace)
	return c, nil
}
