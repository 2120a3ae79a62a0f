package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/orchestrix/orchestrix-alerts/internal/core/domain"
	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
	"github.com/orchestrix/orchestrix-alerts/pkg/validation"
)

// Ingested alerts are attributed to their origin with these prefixes
const (
	IngestSourcePrefix    = "ingest-"
	IngestInitiatorPrefix = "ingest:"
)

// IngestService turns externally reported alerts into Create commands
type IngestService struct {
	commands port.AlertCommandService
	metrics  *observability.Metrics
}

// NewIngestService creates a new ingestion service
func NewIngestService(commands port.AlertCommandService, metrics *observability.Metrics) *IngestService {
	return &IngestService{commands: commands, metrics: metrics}
}

// Ingest validates msg and creates an alert from it
func (s *IngestService) Ingest(ctx context.Context, msg port.IngestMessage) (*port.CommandResult, error) {
	if err := ValidateIngestMessage(msg); err != nil {
		s.count("invalid")
		observability.LogWarn(ctx, "rejected ingested alert",
			slog.String("message_id", msg.MessageID),
			slog.String("source_system", msg.SourceSystem),
			slog.String("reason", err.Error()),
		)
		return nil, err
	}

	severity, _ := domain.ParseSeverity(msg.Severity)
	source := IngestSourcePrefix + strings.TrimSpace(msg.SourceSystem)
	timestamp := msg.Timestamp

	result, err := s.commands.Create(ctx, port.CreateAlertInput{
		Severity:       severity,
		Description:    msg.Description,
		Source:         &source,
		Details:        msg.Details,
		EventTimestamp: &timestamp,
		InitiatedBy:    IngestInitiatorPrefix + strings.TrimSpace(msg.MessageID),
	})
	if err != nil {
		s.count("failed")
		observability.LogError(ctx, "failed to create ingested alert", err,
			slog.String("message_id", msg.MessageID),
		)
		return nil, err
	}

	s.count("created")
	observability.LogInfo(ctx, "ingested alert",
		slog.String("message_id", msg.MessageID),
		slog.String("alert_id", result.Alert.ID.String()),
	)
	return result, nil
}

// ValidateIngestMessage checks every required field of an ingested message
func ValidateIngestMessage(msg port.IngestMessage) error {
	severities := make([]string, len(domain.AlertSeverities))
	for i, sev := range domain.AlertSeverities {
		severities[i] = string(sev)
	}

	return validation.Validate(func(v *validation.Validator) {
		v.Required("messageId", msg.MessageID)
		v.Required("sourceSystem", msg.SourceSystem)
		v.Required("severity", msg.Severity).
			Enum("severity", msg.Severity, severities)
		v.Required("description", msg.Description).
			LengthBetween("description", msg.Description, domain.DescriptionMinLength, domain.DescriptionMaxLength)
		v.RequiredTime("timestamp", msg.Timestamp)
	})
}

func (s *IngestService) count(result string) {
	if s.metrics != nil {
		s.metrics.IngestedTotal.WithLabelValues(result).Inc()
	}
}
