// Package workflows runs hex summaries for many built-up areas as a Temporal workflow.
package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// AreaBatchInput is the input for AreaBatchWorkflow.
type AreaBatchInput struct {
	ObjectIDs []int64
	Zoom      int
}

// AreaFailure records an area that could not be summarized.
type AreaFailure struct {
	ObjectID int64
	Kind     string
	Error    string
}

// AreaBatchResult lists per-area outcomes in input order.
type AreaBatchResult struct {
	Zoom      int
	Summaries []AreaSummaryOutput
	Failures  []AreaFailure
}

// AreaBatchWorkflow summarizes every area concurrently. One area failing does not
// fail the batch; it is reported in AreaBatchResult.Failures.
func AreaBatchWorkflow(ctx workflow.Context, input AreaBatchInput) (AreaBatchResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting area batch", "areas", len(input.ObjectIDs), "zoom", input.Zoom)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	futures := make([]workflow.Future, len(input.ObjectIDs))
	for i, id := range input.ObjectIDs {
		futures[i] = workflow.ExecuteActivity(ctx, "SummarizeArea", AreaSummaryInput{ObjectID: id, Zoom: input.Zoom})
	}

	result := AreaBatchResult{Zoom: input.Zoom}
	for i, f := range futures {
		var out AreaSummaryOutput
		if err := f.Get(ctx, &out); err != nil {
			failure := AreaFailure{ObjectID: input.ObjectIDs[i], Error: err.Error()}
			var appErr *temporal.ApplicationError
			if errors.As(err, &appErr) {
				failure.Kind = appErr.Type()
			}
			result.Failures = append(result.Failures, failure)
			continue
		}
		result.Summaries = append(result.Summaries, out)
	}

	logger.Info("Area batch finished", "succeeded", len(result.Summaries), "failed", len(result.Failures))
	return result, nil
}
