package usecases_test

import (
	"context"
	"fmt"
	"math"

	"github.com/go-spatial/geom"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// --- Mock InfraClient ---

type mockInfraClient struct {
	fetchFn func(ctx context.Context, bbox domain.BBox) domain.FetchResult
	calls   int
}

func (m *mockInfraClient) FetchAllByBBox(ctx context.Context, bbox domain.BBox) domain.FetchResult {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, bbox)
	}
	return domain.FetchResult{}
}

// --- Mock AreaLookup ---

type mockAreaLookup struct {
	fetchFn func(ctx context.Context, id int64) (*domain.BuiltUpArea, error)
}

func (m *mockAreaLookup) FetchByObjectID(ctx context.Context, id int64) (*domain.BuiltUpArea, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, id)
	}
	return nil, domain.ErrAreaNotFound
}

// --- Fake HexGrid ---

// squareGrid tiles the plane into 0.001 degree squares. Zoom must be 0-15.
type squareGrid struct {
	cellCalls int
}

const gridStep = 0.001

func (g *squareGrid) CellAt(lat, lon float64, zoom int) (string, error) {
	g.cellCalls++
	if zoom < 0 || zoom > 15 {
		return "", fmt.Errorf("resolution %d: %w", zoom, domain.ErrInvalidZoom)
	}
	return fmt.Sprintf("%d:%d", int(math.Floor(lat/gridStep)), int(math.Floor(lon/gridStep))), nil
}

func (g *squareGrid) CellBoundary(cellID string) (geom.Polygon, error) {
	var row, col int
	if _, err := fmt.Sscanf(cellID, "%d:%d", &row, &col); err != nil {
		return nil, fmt.Errorf("bad cell %q: %w", cellID, err)
	}
	minLat, minLon := float64(row)*gridStep, float64(col)*gridStep
	maxLat, maxLon := minLat+gridStep, minLon+gridStep
	return geom.Polygon{{
		{minLon, minLat}, {maxLon, minLat}, {maxLon, maxLat}, {minLon, maxLat}, {minLon, minLat},
	}}, nil
}

// --- Mock RunRepository ---

type mockRunRepo struct {
	inserted []domain.SummaryRun
	err      error
}

func (m *mockRunRepo) Insert(ctx context.Context, run *domain.SummaryRun) error {
	m.inserted = append(m.inserted, *run)
	return m.err
}

func (m *mockRunRepo) List(ctx context.Context, offset, limit int) ([]domain.SummaryRun, int, error) {
	return m.inserted, len(m.inserted), nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	published []domain.SummaryRun
	err       error
}

func (m *mockPublisher) PublishSummaryRun(ctx context.Context, run *domain.SummaryRun) error {
	m.published = append(m.published, *run)
	return m.err
}

// pipeAt returns a short east-west pipe centred on (lat, lon).
func pipeAt(id string, lat, lon float64) domain.PipeRecord {
	return domain.PipeRecord{
		ID:       id,
		Geometry: geom.MultiLineString{{{lon - 0.00001, lat}, {lon + 0.00001, lat}}},
	}
}
