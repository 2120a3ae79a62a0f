package database

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlowQueryTracer(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	t.Run("logs queries over the threshold", func(t *testing.T) {
		buf.Reset()
		tracer := &slowQueryTracer{threshold: 0, logger: logger}

		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT doc FROM alert_documents"})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{
			CommandTag: pgconn.NewCommandTag("SELECT 1"),
			Err:        errors.New("canceled"),
		})

		out := buf.String()
		assert.Contains(t, out, "slow query")
		assert.Contains(t, out, "alert_documents")
		assert.Contains(t, out, "failed=true")
	})

	t.Run("ignores fast queries", func(t *testing.T) {
		buf.Reset()
		tracer := &slowQueryTracer{threshold: time.Hour, logger: logger}

		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

		assert.Empty(t, buf.String())
	})

	t.Run("ignores unmatched end", func(t *testing.T) {
		buf.Reset()
		tracer := &slowQueryTracer{threshold: 0, logger: logger}

		tracer.TraceQueryEnd(context.Background(), nil, pgx.TraceQueryEndData{})

		assert.Empty(t, buf.String())
	})
}

func TestNewPool_InvalidURL(t *testing.T) {
	_, err := NewPool(context.Background(), Config{URL: "postgres://%zz"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
