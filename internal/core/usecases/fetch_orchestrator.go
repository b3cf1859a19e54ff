package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/metrics"
)

// FetchOrchestrator requests every pipe record inside a bounding box from the
// infrastructure client. It never fails by itself: partition failures are carried
// in the returned FetchResult.
type FetchOrchestrator struct {
	client ports.InfraClient
}

// NewFetchOrchestrator creates a new FetchOrchestrator.
func NewFetchOrchestrator(client ports.InfraClient) *FetchOrchestrator {
	return &FetchOrchestrator{client: client}
}

// FetchAllByBBox delegates to the client. An inverted box yields an empty
// result without a remote call.
func (o *FetchOrchestrator) FetchAllByBBox(ctx context.Context, bbox domain.BBox) domain.FetchResult {
	if bbox.IsInverted() {
		slog.Debug("inverted bbox, skipping fetch", "bbox", bbox.String())
		return domain.FetchResult{}
	}

	start := time.Now()
	res := o.client.FetchAllByBBox(ctx, bbox)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	metrics.RecordsFetched.Add(float64(len(res.Records)))

	for _, fe := range res.Errors {
		slog.Warn("fetch partition failed",
			"partition", fe.Partition,
			"bbox", fe.BBox.String(),
			"error", fe.Err,
		)
	}
	return res
}

// RequireComplete returns a partial-fetch error listing every partition error
// in res, or nil when every partition succeeded.
func RequireComplete(res domain.FetchResult) error {
	if len(res.Errors) == 0 {
		return nil
	}
	return domain.NewPartialFetchError("fetch pipes", res.Errors)
}
