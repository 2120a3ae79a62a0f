package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/core/service/mocks"
	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validIngestMessage() port.IngestMessage {
	return port.IngestMessage{
		MessageID:    "msg-42",
		SourceSystem: "nagios",
		Severity:     "critical",
		Description:  "Disk almost full",
		Timestamp:    time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC),
		Details:      map[string]any{"host": "db-1"},
	}
}

func TestIngestService_Ingest(t *testing.T) {
	ctx := context.Background()

	t.Run("creates attributed alert", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		m := observability.NewMetrics(prometheus.NewRegistry(), "test")
		svc := NewIngestService(newTestService(store, nil), m)
		msg := validIngestMessage()

		result, err := svc.Ingest(ctx, msg)

		require.NoError(t, err)
		alert := result.Alert
		assert.Equal(t, domain.AlertSeverityCritical, alert.Severity)
		assert.Equal(t, "ingest-nagios", alert.Source)
		assert.Equal(t, "ingest:msg-42", alert.InitiatedBy)
		assert.Equal(t, msg.Timestamp, alert.EventTimestamp)
		assert.Equal(t, fixedNow, alert.CreatedAt)
		assert.Equal(t, "db-1", alert.Details["host"])
		assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestedTotal.WithLabelValues("created")))
	})

	t.Run("rejects invalid message", func(t *testing.T) {
		store := mocks.NewMockEventStore()
		m := observability.NewMetrics(prometheus.NewRegistry(), "test")
		svc := NewIngestService(newTestService(store, nil), m)
		msg := validIngestMessage()
		msg.Severity = "urgent"
		msg.Description = "hi"

		_, err := svc.Ingest(ctx, msg)

		require.Error(t, err)
		appErr, ok := apperror.GetAppError(err)
		require.True(t, ok)
		fields, ok := appErr.Details["fields"].(map[string]string)
		require.True(t, ok)
		assert.Contains(t, fields, "severity")
		assert.Contains(t, fields, "description")
		assert.Equal(t, 0, store.AppendCalls)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.IngestedTotal.WithLabelValues("invalid")))
	})
}

func TestValidateIngestMessage(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*port.IngestMessage)
		field  string
	}{
		{"missing message id", func(m *port.IngestMessage) { m.MessageID = "" }, "messageId"},
		{"missing source system", func(m *port.IngestMessage) { m.SourceSystem = " " }, "sourceSystem"},
		{"missing severity", func(m *port.IngestMessage) { m.Severity = "" }, "severity"},
		{"missing description", func(m *port.IngestMessage) { m.Description = "" }, "description"},
		{"description too long", func(m *port.IngestMessage) { m.Description = strings.Repeat("x", 1001) }, "description"},
		{"missing timestamp", func(m *port.IngestMessage) { m.Timestamp = time.Time{} }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validIngestMessage()
			tt.mutate(&msg)

			err := ValidateIngestMessage(msg)

			appErr, ok := apperror.GetAppError(err)
			require.True(t, ok)
			fields := appErr.Details["fields"].(map[string]string)
			assert.Contains(t, fields, tt.field)
		})
	}

	assert.NoError(t, ValidateIngestMessage(validIngestMessage()))
}
