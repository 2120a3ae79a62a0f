package service

import (
	"context"
	"log/slog"

	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

// RebuildService implements port.ProjectionRebuilder. It starts a workflow
// when a starter is configured and otherwise rebuilds in-process through
// the event bus.
type RebuildService struct {
	starter    port.WorkflowStarter
	resetter   port.SubscriptionResetter
	subscriber string
	metrics    *observability.Metrics
}

// NewRebuildService creates a rebuild service for the named subscriber.
// starter may be nil.
func NewRebuildService(starter port.WorkflowStarter, resetter port.SubscriptionResetter, subscriber string, metrics *observability.Metrics) *RebuildService {
	return &RebuildService{
		starter:    starter,
		resetter:   resetter,
		subscriber: subscriber,
		metrics:    metrics,
	}
}

// RebuildAlerts discards the alert read model and replays all events into it
func (s *RebuildService) RebuildAlerts(ctx context.Context) (*port.RebuildResult, error) {
	ctx, span := observability.StartSpan(ctx, "projection.rebuild")
	defer span.End()

	if s.starter != nil {
		result, err := s.starter.StartRebuild(ctx)
		if err != nil {
			observability.RecordError(ctx, err)
			observability.LogError(ctx, "failed to start projection rebuild workflow", err)
			return nil, err
		}
		observability.LogInfo(ctx, "projection rebuild workflow started",
			slog.String("workflow_id", result.WorkflowID),
			slog.String("run_id", result.RunID),
		)
		return result, nil
	}

	replayed, err := s.resetter.Reset(ctx, s.subscriber)
	if err != nil {
		s.count("failed")
		observability.RecordError(ctx, err)
		observability.LogError(ctx, "projection rebuild failed", err,
			slog.String("subscriber", s.subscriber),
		)
		return nil, err
	}

	s.count("succeeded")
	observability.LogInfo(ctx, "projection rebuilt",
		slog.String("subscriber", s.subscriber),
		slog.Int64("events", replayed),
	)
	return &port.RebuildResult{Mode: port.RebuildModeInline, EventsReplayed: replayed}, nil
}

func (s *RebuildService) count(result string) {
	if s.metrics != nil {
		s.metrics.ProjectionRebuilds.WithLabelValues(result).Inc()
	}
}
