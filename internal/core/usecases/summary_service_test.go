package usecases_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-spatial/geom"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/usecases"
)

var londonBBox = domain.NewBBox(51.50, -0.10, 51.51, -0.09)

func staticRecords(records ...domain.PipeRecord) *mockInfraClient {
	return &mockInfraClient{
		fetchFn: func(ctx context.Context, bbox domain.BBox) domain.FetchResult {
			return domain.FetchResult{Records: records}
		},
	}
}

func TestSummaryService_SummarizeByBBox_OneCell(t *testing.T) {
	infra := staticRecords(
		pipeAt("1", 51.5051, -0.0951),
		pipeAt("2", 51.5052, -0.0952),
		pipeAt("3", 51.5053, -0.0953),
	)
	svc := usecases.NewSummaryService(&mockAreaLookup{}, infra, &squareGrid{}, nil, nil)

	table, err := svc.SummarizeByBBox(context.Background(), londonBBox, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(table.Rows))
	}
	if table.Rows[0].PipeCount != 3 {
		t.Errorf("expected pipe_count 3, got %d", table.Rows[0].PipeCount)
	}
}

func TestSummaryService_SummarizeByBBox_ZeroRecords(t *testing.T) {
	svc := usecases.NewSummaryService(&mockAreaLookup{}, staticRecords(), &squareGrid{}, nil, nil)

	table, err := svc.SummarizeByBBox(context.Background(), londonBBox, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("expected empty table, got %d rows", len(table.Rows))
	}
}

func TestSummaryService_SummarizeByBBox_PartialFetch(t *testing.T) {
	infra := &mockInfraClient{
		fetchFn: func(ctx context.Context, bbox domain.BBox) domain.FetchResult {
			parts := bbox.Partition(1, 2)
			return domain.FetchResult{
				Records: []domain.PipeRecord{pipeAt("1", 51.505, -0.098)},
				Errors:  []domain.FetchError{{Partition: 1, BBox: parts[1], Err: errors.New("HTTP 503")}},
			}
		},
	}
	grid := &squareGrid{}
	svc := usecases.NewSummaryService(&mockAreaLookup{}, infra, grid, nil, nil)

	table, err := svc.SummarizeByBBox(context.Background(), londonBBox, 9)
	if table != nil {
		t.Error("expected no table on partial fetch")
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.KindPartialFetch {
		t.Fatalf("expected partial fetch error, got %v", err)
	}
	if len(de.FetchErrors) != 1 {
		t.Errorf("expected exactly 1 underlying error, got %d", len(de.FetchErrors))
	}
	if grid.cellCalls != 0 {
		t.Error("aggregation must not start after a partial fetch")
	}
}

func TestSummaryService_SummarizeByBBox_InvertedBox(t *testing.T) {
	infra := staticRecords(pipeAt("1", 51.505, -0.095))
	svc := usecases.NewSummaryService(&mockAreaLookup{}, infra, &squareGrid{}, nil, nil)

	table, err := svc.SummarizeByBBox(context.Background(), domain.NewBBox(51.51, -0.09, 51.50, -0.10), 9)
	if err != nil {
		t.Fatalf("inverted box should not error: %v", err)
	}
	if len(table.Rows) != 0 {
		t.Errorf("expected empty table, got %d rows", len(table.Rows))
	}
	if infra.calls != 0 {
		t.Errorf("expected no fetch for an inverted box, got %d", infra.calls)
	}
}

func TestSummaryService_SummarizeByBBox_ZeroAreaBoxIsFetched(t *testing.T) {
	infra := staticRecords(pipeAt("1", 51.505, -0.095))
	svc := usecases.NewSummaryService(&mockAreaLookup{}, infra, &squareGrid{}, nil, nil)

	table, err := svc.SummarizeByBBox(context.Background(), domain.NewBBox(51.505, -0.095, 51.505, -0.095), 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if infra.calls != 1 {
		t.Errorf("expected one fetch for a zero-area box, got %d", infra.calls)
	}
	if table.TotalCount() != 1 {
		t.Errorf("expected 1 pipe, got %d", table.TotalCount())
	}
}

func TestSummaryService_SummarizeByBBox_InvalidZoom(t *testing.T) {
	svc := usecases.NewSummaryService(&mockAreaLookup{}, staticRecords(pipeAt("1", 51.505, -0.095)), &squareGrid{}, nil, nil)

	_, err := svc.SummarizeByBBox(context.Background(), londonBBox, 42)
	if domain.KindOf(err) != domain.KindAggregation || !errors.Is(err, domain.ErrInvalidZoom) {
		t.Fatalf("expected aggregation error wrapping ErrInvalidZoom, got %v", err)
	}
}

func TestSummaryService_SummarizeByBBox_Deterministic(t *testing.T) {
	infra := staticRecords(
		pipeAt("1", 51.5015, -0.0985),
		pipeAt("2", 51.5035, -0.0965),
		pipeAt("3", 51.5085, -0.0915),
		pipeAt("4", 51.5036, -0.0966),
	)
	svc := usecases.NewSummaryService(&mockAreaLookup{}, infra, &squareGrid{}, nil, nil)

	first, err := svc.SummarizeByBBox(context.Background(), londonBBox, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.SummarizeByBBox(context.Background(), londonBBox, 9)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for j := range first.Rows {
			if first.Rows[j].HexID != again.Rows[j].HexID || first.Rows[j].PipeCount != again.Rows[j].PipeCount {
				t.Fatalf("run %d row %d differs: %+v vs %+v", i, j, first.Rows[j], again.Rows[j])
			}
		}
	}
}

func TestSummaryService_SummarizeByArea_UnknownID(t *testing.T) {
	infra := staticRecords()
	svc := usecases.NewSummaryService(&mockAreaLookup{}, infra, &squareGrid{}, nil, nil)

	_, err := svc.SummarizeByArea(context.Background(), 999999, 9)
	if domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not_found, got %v", err)
	}
	if infra.calls != 0 {
		t.Errorf("expected no fetch call, got %d", infra.calls)
	}
}

func TestSummaryService_SummarizeByArea_LookupFailure(t *testing.T) {
	lookup := &mockAreaLookup{
		fetchFn: func(ctx context.Context, id int64) (*domain.BuiltUpArea, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := usecases.NewSummaryService(lookup, staticRecords(), &squareGrid{}, nil, nil)

	_, err := svc.SummarizeByArea(context.Background(), 1, 9)
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSummaryService_SummarizeByArea_NonPolygonGeometry(t *testing.T) {
	lookup := &mockAreaLookup{
		fetchFn: func(ctx context.Context, id int64) (*domain.BuiltUpArea, error) {
			return nil, fmt.Errorf("object %d: %w", id, domain.ErrNoPolygon)
		},
	}
	infra := staticRecords()
	svc := usecases.NewSummaryService(lookup, infra, &squareGrid{}, nil, nil)

	_, err := svc.SummarizeByArea(context.Background(), 7, 9)
	if domain.KindOf(err) != domain.KindDegenerateGeometry {
		t.Fatalf("expected degenerate geometry error, got %v", err)
	}
	if !errors.Is(err, domain.ErrNoPolygon) {
		t.Error("sentinel should remain reachable")
	}
	if infra.calls != 0 {
		t.Errorf("expected no fetch call, got %d", infra.calls)
	}
}

func TestSummaryService_SummarizeByArea_DegenerateGeometry(t *testing.T) {
	lookup := &mockAreaLookup{
		fetchFn: func(ctx context.Context, id int64) (*domain.BuiltUpArea, error) {
			return &domain.BuiltUpArea{ObjectID: id, Geometry: geom.MultiPolygon{}}, nil
		},
	}
	infra := staticRecords()
	svc := usecases.NewSummaryService(lookup, infra, &squareGrid{}, nil, nil)

	_, err := svc.SummarizeByArea(context.Background(), 7, 9)
	if domain.KindOf(err) != domain.KindDegenerateGeometry {
		t.Fatalf("expected degenerate geometry error, got %v", err)
	}
	if infra.calls != 0 {
		t.Errorf("expected no fetch call, got %d", infra.calls)
	}
}

func TestSummaryService_SummarizeByArea_ClipsToPolygon(t *testing.T) {
	// Triangle whose bounding box is the London test box.
	triangle := geom.MultiPolygon{{{{-0.10, 51.50}, {-0.09, 51.50}, {-0.10, 51.51}, {-0.10, 51.50}}}}
	lookup := &mockAreaLookup{
		fetchFn: func(ctx context.Context, id int64) (*domain.BuiltUpArea, error) {
			return &domain.BuiltUpArea{ObjectID: id, Name: "Test BUA", Geometry: triangle}, nil
		},
	}
	var fetched domain.BBox
	infra := &mockInfraClient{
		fetchFn: func(ctx context.Context, bbox domain.BBox) domain.FetchResult {
			fetched = bbox
			return domain.FetchResult{Records: []domain.PipeRecord{
				pipeAt("in-1", 51.5015, -0.0985),
				pipeAt("in-2", 51.5016, -0.0984),
				pipeAt("out", 51.5090, -0.0910),
			}}
		},
	}
	grid := &squareGrid{}
	svc := usecases.NewSummaryService(lookup, infra, grid, nil, nil)

	table, err := svc.SummarizeByArea(context.Background(), 42, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetched != londonBBox {
		t.Errorf("expected fetch over the polygon envelope %v, got %v", londonBBox, fetched)
	}
	if table.TotalCount() != 2 {
		t.Errorf("expected 2 clipped records, got %d", table.TotalCount())
	}

	// No emitted cell may lie entirely outside the polygon.
	for _, row := range table.Rows {
		b, err := grid.CellBoundary(row.HexID)
		if err != nil {
			t.Fatal(err)
		}
		sw := b[0][0]
		if sw[0] > -0.09 || sw[1] > 51.51 {
			t.Errorf("cell %s lies outside the polygon envelope", row.HexID)
		}
	}
}

func TestSummaryService_RecordsRuns(t *testing.T) {
	runs := &mockRunRepo{}
	events := &mockPublisher{err: errors.New("nats down")}
	svc := usecases.NewSummaryService(&mockAreaLookup{}, staticRecords(pipeAt("1", 51.505, -0.095)), &squareGrid{}, runs, events)

	if _, err := svc.SummarizeByBBox(context.Background(), londonBBox, 9); err != nil {
		t.Fatalf("publisher failures must not fail the request: %v", err)
	}
	_, _ = svc.SummarizeByArea(context.Background(), 5, 9)

	if len(runs.inserted) != 2 || len(events.published) != 2 {
		t.Fatalf("expected 2 recorded runs, got %d stored and %d published", len(runs.inserted), len(events.published))
	}

	ok := runs.inserted[0]
	if ok.Mode != domain.ModeBBox || !ok.Succeeded() || ok.Rows != 1 || ok.Records != 1 || ok.Zoom != 9 {
		t.Errorf("unexpected bbox run: %+v", ok)
	}
	failed := runs.inserted[1]
	if failed.Mode != domain.ModeArea || failed.ErrorKind != "not_found" || failed.ObjectID == nil || *failed.ObjectID != 5 {
		t.Errorf("unexpected area run: %+v", failed)
	}
}
