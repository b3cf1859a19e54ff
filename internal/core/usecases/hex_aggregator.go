package usecases

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/go-spatial/geom"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/geospatial"
)

// HexAggregator bins pipe records onto the hex grid.
//
// Each record is attributed to exactly one cell: the cell holding the geodesic
// midpoint of its line work. Records without vertices are skipped and counted.
type HexAggregator struct {
	grid ports.HexGrid
}

// NewHexAggregator creates a new HexAggregator.
func NewHexAggregator(grid ports.HexGrid) *HexAggregator {
	return &HexAggregator{grid: grid}
}

// Summarize counts records per cell over the whole extent of the input.
func (a *HexAggregator) Summarize(records []domain.PipeRecord, zoom int) (*domain.HexSummaryTable, error) {
	return a.summarize(records, zoom, nil)
}

// SummarizeClipped counts only records whose midpoint lies inside polygon.
func (a *HexAggregator) SummarizeClipped(records []domain.PipeRecord, zoom int, polygon geom.MultiPolygon) (*domain.HexSummaryTable, error) {
	idx := geospatial.NewPolygonIndex(polygon)
	return a.summarize(records, zoom, idx.Contains)
}

func (a *HexAggregator) summarize(records []domain.PipeRecord, zoom int, keep func(lat, lon float64) bool) (*domain.HexSummaryTable, error) {
	const op = "aggregate"

	table := &domain.HexSummaryTable{Zoom: zoom, Rows: []domain.HexSummaryRow{}}
	counts := make(map[string]int64)

	for _, rec := range records {
		lat, lon, ok := geospatial.Midpoint(rec.Geometry)
		if !ok {
			table.Skipped++
			slog.Warn("record has no vertices, skipping", "record_id", rec.ID)
			continue
		}
		if keep != nil && !keep(lat, lon) {
			continue
		}
		cell, err := a.grid.CellAt(lat, lon, zoom)
		if err != nil {
			return nil, domain.NewError(domain.KindAggregation, op, fmt.Errorf("cell for record %s: %w", rec.ID, err))
		}
		counts[cell]++
	}

	for cell, n := range counts {
		boundary, err := a.grid.CellBoundary(cell)
		if err != nil {
			return nil, domain.NewError(domain.KindAggregation, op, fmt.Errorf("boundary of %s: %w", cell, err))
		}
		table.Rows = append(table.Rows, domain.HexSummaryRow{HexID: cell, PipeCount: n, Boundary: boundary})
	}

	SortRows(table.Rows)
	return table, nil
}

// SortRows orders rows by pipe_count descending, then hex_id ascending.
func SortRows(rows []domain.HexSummaryRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PipeCount != rows[j].PipeCount {
			return rows[i].PipeCount > rows[j].PipeCount
		}
		return rows[i].HexID < rows[j].HexID
	})
}
