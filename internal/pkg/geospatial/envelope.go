// Package geospatial holds the geometric reasoning shared by the summary pipeline.
//
// All geometries use the GeoJSON axis order: x is longitude, y is latitude.
package geospatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-spatial/geom"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

// ErrNoEnvelope is returned when a geometry has no computable bounding rectangle.
var ErrNoEnvelope = errors.New("geometry has no bounding rectangle")

// Envelope returns the bounding rectangle of g as a BBox.
// The min corner maps to (min y, min x) and the max corner to (max y, max x).
func Envelope(g geom.Geometry) (domain.BBox, error) {
	if g == nil {
		return domain.BBox{}, ErrNoEnvelope
	}
	ext, err := geom.NewExtentFromGeometry(g)
	if err != nil {
		return domain.BBox{}, fmt.Errorf("%w: %v", ErrNoEnvelope, err)
	}
	if ext == nil {
		return domain.BBox{}, ErrNoEnvelope
	}

	minX, minY, maxX, maxY := ext.MinX(), ext.MinY(), ext.MaxX(), ext.MaxY()
	for _, v := range []float64{minX, minY, maxX, maxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return domain.BBox{}, ErrNoEnvelope
		}
	}
	return domain.NewBBox(minY, minX, maxY, maxX), nil
}
