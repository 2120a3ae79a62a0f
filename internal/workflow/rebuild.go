package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/orchestrix/orchestrix-alerts/internal/activity"
)

// RebuildWorkflowName is the registered name of RebuildAlertProjection
const RebuildWorkflowName = "RebuildAlertProjection"

// DefaultPageSize is the replay page size used when the input leaves it unset
const DefaultPageSize = 500

// RebuildInput defines the input for the rebuild workflow
type RebuildInput struct {
	PageSize int `json:"pageSize"`
}

// RebuildOutput defines the output of the rebuild workflow
type RebuildOutput struct {
	EventsReplayed int64 `json:"eventsReplayed"`
	LastSequence   int64 `json:"lastSequence"`
	Pages          int   `json:"pages"`
	Duration       int64 `json:"duration_ms"`
}

// RebuildAlertProjection resets the alert read model and replays the event
// store into it page by page, then flushes the result.
func RebuildAlertProjection(ctx workflow.Context, input RebuildInput) (*RebuildOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("RebuildAlertProjection started", "pageSize", input.PageSize)

	startTime := workflow.Now(ctx)

	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	// Step 1: Reset
	if err := workflow.ExecuteActivity(ctx, activity.ResetReadModelName).Get(ctx, nil); err != nil {
		logger.Error("reset failed", "error", err)
		return nil, err
	}

	// Step 2: Replay until a page comes back empty
	out := &RebuildOutput{}
	for {
		var page activity.ReplayResult
		err := workflow.ExecuteActivity(ctx, activity.ReplayEventsName, activity.ReplayInput{
			AfterSequence: out.LastSequence,
			Limit:         pageSize,
		}).Get(ctx, &page)
		if err != nil {
			logger.Error("replay failed", "error", err, "afterSequence", out.LastSequence)
			return nil, err
		}
		if page.Count == 0 {
			break
		}
		out.Pages++
		out.EventsReplayed += int64(page.Count)
		out.LastSequence = page.LastSequence
	}

	// Step 3: Flush
	if err := workflow.ExecuteActivity(ctx, activity.FlushProjectionName).Get(ctx, nil); err != nil {
		logger.Error("flush failed", "error", err)
		return nil, err
	}

	out.Duration = workflow.Now(ctx).Sub(startTime).Milliseconds()
	logger.Info("RebuildAlertProjection completed",
		"events", out.EventsReplayed,
		"pages", out.Pages,
		"lastSequence", out.LastSequence,
	)
	return out, nil
}
