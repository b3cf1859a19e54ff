package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-spatial/geom"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/metrics"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/telemetry"
)

const recordTimeout = 5 * time.Second

// SummaryService is the entry point of the hex summary pipeline.
type SummaryService struct {
	resolver   *AreaResolver
	fetcher    *FetchOrchestrator
	aggregator *HexAggregator
	runs       ports.RunRepository
	events     ports.EventPublisher
}

// NewSummaryService creates a new SummaryService. runs and events are optional.
func NewSummaryService(
	areas ports.AreaLookup,
	infra ports.InfraClient,
	grid ports.HexGrid,
	runs ports.RunRepository,
	events ports.EventPublisher,
) *SummaryService {
	return &SummaryService{
		resolver:   NewAreaResolver(areas),
		fetcher:    NewFetchOrchestrator(infra),
		aggregator: NewHexAggregator(grid),
		runs:       runs,
		events:     events,
	}
}

// pipelineRequest describes how one run obtains its bounding box and optional clip polygon.
type pipelineRequest struct {
	mode     domain.SummaryMode
	objectID *int64
	zoom     int
	extent   func(ctx context.Context) (domain.BBox, geom.MultiPolygon, bool, error)
}

// SummarizeByBBox counts pipes per hex cell inside bbox. No clipping is applied.
func (s *SummaryService) SummarizeByBBox(ctx context.Context, bbox domain.BBox, zoom int) (*domain.HexSummaryTable, error) {
	return s.run(ctx, pipelineRequest{
		mode: domain.ModeBBox,
		zoom: zoom,
		extent: func(context.Context) (domain.BBox, geom.MultiPolygon, bool, error) {
			return bbox, nil, false, nil
		},
	})
}

// SummarizeByArea resolves the built-up area, fetches over its bounding box and
// keeps only records inside the area polygon.
func (s *SummaryService) SummarizeByArea(ctx context.Context, objectID int64, zoom int) (*domain.HexSummaryTable, error) {
	return s.run(ctx, pipelineRequest{
		mode:     domain.ModeArea,
		objectID: &objectID,
		zoom:     zoom,
		extent: func(ctx context.Context) (domain.BBox, geom.MultiPolygon, bool, error) {
			area, bbox, err := s.resolver.Resolve(ctx, objectID)
			if err != nil {
				return domain.BBox{}, nil, false, err
			}
			return bbox, area.Geometry, true, nil
		},
	})
}

func (s *SummaryService) run(ctx context.Context, req pipelineRequest) (*domain.HexSummaryTable, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "summary."+string(req.mode))
	defer span.End()
	span.SetAttributes(attribute.Int("zoom", req.zoom))

	start := time.Now()
	run := &domain.SummaryRun{
		Mode:      req.mode,
		ObjectID:  req.objectID,
		Zoom:      req.zoom,
		StartedAt: start.UTC(),
	}

	table, err := s.execute(ctx, req, run)
	run.Duration = time.Since(start)
	metrics.PipelineDuration.WithLabelValues(string(req.mode)).Observe(run.Duration.Seconds())

	if err != nil {
		kind := domain.KindOf(err)
		run.ErrorKind = kind.String()
		run.Error = err.Error()
		metrics.PipelineFailures.WithLabelValues(string(req.mode), kind.String()).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, kind.String())
		slog.Warn("hex summary failed",
			"mode", req.mode,
			"bbox", run.BBox.String(),
			"zoom", req.zoom,
			"kind", kind.String(),
			"error", err,
		)
	} else {
		run.Rows = len(table.Rows)
		run.Skipped = table.Skipped
		metrics.HexRowsEmitted.WithLabelValues(string(req.mode)).Observe(float64(run.Rows))
		metrics.RecordsSkipped.Add(float64(table.Skipped))
		slog.Info("hex summary built",
			"mode", req.mode,
			"bbox", run.BBox.String(),
			"zoom", req.zoom,
			"records", run.Records,
			"rows", run.Rows,
			"duration_ms", run.Duration.Milliseconds(),
		)
	}

	s.record(ctx, run)
	return table, err
}

func (s *SummaryService) execute(ctx context.Context, req pipelineRequest, run *domain.SummaryRun) (*domain.HexSummaryTable, error) {
	tracer := telemetry.Tracer()

	rctx, span := tracer.Start(ctx, "summary.extent")
	bbox, polygon, clip, err := req.extent(rctx)
	span.End()
	if err != nil {
		return nil, err
	}
	run.BBox = bbox

	fctx, span := tracer.Start(ctx, "summary.fetch")
	span.SetAttributes(attribute.String("bbox", bbox.String()))
	res := s.fetcher.FetchAllByBBox(fctx, bbox)
	span.SetAttributes(
		attribute.Int("records", len(res.Records)),
		attribute.Int("fetch_errors", len(res.Errors)),
	)
	span.End()
	run.Records = len(res.Records)
	run.FetchErrors = len(res.Errors)

	if err := RequireComplete(res); err != nil {
		return nil, err
	}

	_, span = tracer.Start(ctx, "summary.aggregate")
	defer span.End()
	if clip {
		return s.aggregator.SummarizeClipped(res.Records, req.zoom, polygon)
	}
	return s.aggregator.Summarize(res.Records, req.zoom)
}

// record persists and announces the run. Failures are logged only.
func (s *SummaryService) record(ctx context.Context, run *domain.SummaryRun) {
	if s.runs == nil && s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if s.runs != nil {
		if err := s.runs.Insert(ctx, run); err != nil {
			slog.Warn("failed to store summary run", "error", err)
		}
	}
	if s.events != nil {
		if err := s.events.PublishSummaryRun(ctx, run); err != nil {
			slog.Warn("failed to publish summary run", "error", err)
		}
	}
}
