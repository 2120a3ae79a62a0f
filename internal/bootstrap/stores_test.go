package bootstrap

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchestrix/orchestrix-alerts/internal/config"
	"github.com/orchestrix/orchestrix-alerts/internal/projection"
)

func TestOpenStores(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	t.Run("memory", func(t *testing.T) {
		stores, err := OpenStores(ctx, config.StoreConfig{Driver: config.DriverMemory}, logger, nil)
		require.NoError(t, err)
		defer stores.Close()

		assert.False(t, stores.Persistent)
		assert.Empty(t, stores.Checks)
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "alerts.db")

		stores, err := OpenStores(ctx, config.StoreConfig{Driver: config.DriverSQLite, SQLitePath: path}, logger, nil)
		require.NoError(t, err)
		defer stores.Close()

		assert.False(t, stores.Persistent)
		require.Contains(t, stores.Checks, "sqlite")
		assert.NoError(t, stores.Checks["sqlite"](ctx))
	})

	t.Run("unknown driver", func(t *testing.T) {
		_, err := OpenStores(ctx, config.StoreConfig{Driver: "mongo"}, logger, nil)

		assert.ErrorContains(t, err, "unknown store driver")
	})
}

func TestProjectorConfig(t *testing.T) {
	cfg := config.DefaultConfig().Projection
	cfg.FailurePolicy = config.PolicyRequeue
	cfg.BatchTimeoutMS = 1500

	got := ProjectorConfig(cfg)

	assert.Equal(t, projection.PolicyRequeue, got.FailurePolicy)
	assert.Equal(t, 1500*time.Millisecond, got.BatchTimeout)
	assert.Equal(t, cfg.BatchSize, got.BatchSize)
	assert.Equal(t, cfg.ReplayPageSize, got.ReplayPageSize)
}
