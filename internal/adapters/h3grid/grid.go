// Package h3grid implements the hex grid on Uber's H3 index.
package h3grid

import (
	"fmt"
	"math"

	"github.com/go-spatial/geom"
	"github.com/uber/h3-go/v4"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// Grid maps coordinates to H3 cells. Zoom is the H3 resolution, 0 through 15.
type Grid struct{}

// New creates a new Grid.
func New() *Grid { return &Grid{} }

// CellAt returns the canonical hex string of the cell containing (lat, lon).
func (g *Grid) CellAt(lat, lon float64, zoom int) (string, error) {
	if zoom < 0 || zoom > h3.MaxResolution {
		return "", fmt.Errorf("resolution %d outside 0-%d: %w", zoom, h3.MaxResolution, domain.ErrInvalidZoom)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return "", fmt.Errorf("invalid coordinate (%f, %f)", lat, lon)
	}
	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), zoom)
	if err != nil {
		return "", fmt.Errorf("h3 cell at (%f, %f) res %d: %w", lat, lon, zoom, err)
	}
	return cell.String(), nil
}

// CellBoundary returns the closed boundary ring of the cell, x=lon, y=lat.
func (g *Grid) CellBoundary(cellID string) (geom.Polygon, error) {
	cell := h3.Cell(h3.IndexFromString(cellID))
	if !cell.IsValid() {
		return nil, fmt.Errorf("invalid h3 cell %q", cellID)
	}
	boundary, err := cell.Boundary()
	if err != nil {
		return nil, fmt.Errorf("boundary of %s: %w", cellID, err)
	}
	if len(boundary) == 0 {
		return nil, fmt.Errorf("empty boundary for %s", cellID)
	}

	ring := make([][2]float64, 0, len(boundary)+1)
	for _, ll := range boundary {
		ring = append(ring, [2]float64{ll.Lng, ll.Lat})
	}
	ring = append(ring, ring[0])
	return geom.Polygon{ring}, nil
}

// Resolution returns the resolution encoded in cellID.
func Resolution(cellID string) int {
	return h3.Cell(h3.IndexFromString(cellID)).Resolution()
}
