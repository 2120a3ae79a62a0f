package activity

import (
	"context"
	"log/slog"

	"go.temporal.io/sdk/activity"

	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
)

// Activity names as registered on the worker
const (
	ResetReadModelName  = "ResetReadModel"
	ReplayEventsName    = "ReplayEvents"
	FlushProjectionName = "FlushProjection"
)

// Activities holds the projection rebuild steps
type Activities struct {
	replayer port.ProjectionReplayer
}

// New creates the activities around a projection replayer
func New(replayer port.ProjectionReplayer) *Activities {
	return &Activities{replayer: replayer}
}

// ReplayInput is the input for the ReplayEvents activity
type ReplayInput struct {
	AfterSequence int64 `json:"afterSequence"`
	Limit         int   `json:"limit"`
}

// ReplayResult is the result of the ReplayEvents activity
type ReplayResult struct {
	LastSequence int64 `json:"lastSequence"`
	Count        int   `json:"count"`
}

// ResetReadModel drops pending updates and recreates the document index
func (a *Activities) ResetReadModel(ctx context.Context) error {
	slog.InfoContext(ctx, "ResetReadModel activity started")
	return a.replayer.BeginRebuild(ctx)
}

// ReplayEvents projects one page of events. A page that fails midway is
// replayed from the start on retry.
func (a *Activities) ReplayEvents(ctx context.Context, input ReplayInput) (*ReplayResult, error) {
	slog.InfoContext(ctx, "ReplayEvents activity started",
		"after_sequence", input.AfterSequence,
		"limit", input.Limit,
	)

	last, count, err := a.replayer.ReplayPage(ctx, input.AfterSequence, input.Limit)
	if err != nil {
		return nil, err
	}
	activity.RecordHeartbeat(ctx, last)

	return &ReplayResult{LastSequence: last, Count: count}, nil
}

// FlushProjection writes the rebuilt state and resumes live projection
func (a *Activities) FlushProjection(ctx context.Context) error {
	slog.InfoContext(ctx, "FlushProjection activity started")
	return a.replayer.FinishRebuild(ctx)
}
