package temporal

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/internal/workflow"
)

// RebuildWorkflowID identifies the single projection rebuild execution.
// Starting a rebuild while one is running returns the running execution.
const RebuildWorkflowID = "rebuild-alert-projection"

// RebuildStarter implements port.WorkflowStarter using Temporal
type RebuildStarter struct {
	client    client.Client
	taskQueue string
	pageSize  int
}

// NewRebuildStarter creates a starter that schedules rebuilds on taskQueue
func NewRebuildStarter(c client.Client, taskQueue string, pageSize int) *RebuildStarter {
	return &RebuildStarter{
		client:    c,
		taskQueue: taskQueue,
		pageSize:  pageSize,
	}
}

// StartRebuild starts the rebuild workflow without waiting for it to finish
func (s *RebuildStarter) StartRebuild(ctx context.Context) (*port.RebuildResult, error) {
	options := client.StartWorkflowOptions{
		ID:        RebuildWorkflowID,
		TaskQueue: s.taskQueue,
	}

	run, err := s.client.ExecuteWorkflow(ctx, options, workflow.RebuildWorkflowName, workflow.RebuildInput{
		PageSize: s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start rebuild workflow: %w", err)
	}

	return &port.RebuildResult{
		Mode:       port.RebuildModeWorkflow,
		WorkflowID: run.GetID(),
		RunID:      run.GetRunID(),
	}, nil
}
