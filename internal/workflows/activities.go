package workflows

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// AreaSummarizer is the part of the summary pipeline the batch activities need.
type AreaSummarizer interface {
	SummarizeByArea(ctx context.Context, objectID int64, zoom int) (*domain.HexSummaryTable, error)
}

// AreaActivities holds the activity implementations for AreaBatchWorkflow.
type AreaActivities struct {
	Summaries AreaSummarizer
}

// AreaSummaryInput selects one built-up area.
type AreaSummaryInput struct {
	ObjectID int64
	Zoom     int
}

// AreaSummaryOutput is the compact result of one area summary. The table itself
// is not returned through workflow history.
type AreaSummaryOutput struct {
	ObjectID int64
	Rows     int
	Pipes    int64
	Skipped  int
}

// SummarizeArea runs the area pipeline for one object id. Failures that cannot
// succeed on retry are returned as non-retryable application errors typed with
// the error kind.
func (a *AreaActivities) SummarizeArea(ctx context.Context, in AreaSummaryInput) (AreaSummaryOutput, error) {
	logger := activity.GetLogger(ctx)

	table, err := a.Summaries.SummarizeByArea(ctx, in.ObjectID, in.Zoom)
	if err != nil {
		kind := domain.KindOf(err)
		if !retryable(err) {
			logger.Warn("area summary failed permanently", "object_id", in.ObjectID, "kind", kind.String(), "error", err)
			return AreaSummaryOutput{}, temporal.NewNonRetryableApplicationError(err.Error(), kind.String(), err)
		}
		return AreaSummaryOutput{}, temporal.NewApplicationErrorWithCause(err.Error(), kind.String(), err)
	}

	return AreaSummaryOutput{
		ObjectID: in.ObjectID,
		Rows:     len(table.Rows),
		Pipes:    table.TotalCount(),
		Skipped:  table.Skipped,
	}, nil
}

func retryable(err error) bool {
	if errors.Is(err, domain.ErrInvalidZoom) {
		return false
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound, domain.KindDegenerateGeometry, domain.KindInit, domain.KindPackaging:
		return false
	default:
		return true
	}
}
