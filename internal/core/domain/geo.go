package domain

import "fmt"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BBox represents an axis-aligned geographic bounding box in degrees.
//
// Bound ordering is not enforced. An inverted box is carried through unchanged and
// downstream consumers treat it as covering nothing.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// NewBBox builds a BBox from its four bounds.
func NewBBox(minLat, minLon, maxLat, maxLon float64) BBox {
	return BBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon}
}

// IsInverted reports whether either axis has min > max. A zero-area box is
// not inverted and still matches points on its edges.
func (b BBox) IsInverted() bool {
	return b.MinLat > b.MaxLat || b.MinLon > b.MaxLon
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat &&
		lon >= b.MinLon && lon <= b.MaxLon
}

// Partition splits the box into rows*cols equal sub-boxes in row-major order,
// starting from the south-west corner. Non-positive dimensions are treated as 1.
func (b BBox) Partition(rows, cols int) []BBox {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}

	latStep := (b.MaxLat - b.MinLat) / float64(rows)
	lonStep := (b.MaxLon - b.MinLon) / float64(cols)

	parts := make([]BBox, 0, rows*cols)
	for r := 0; r < rows; r++ {
		minLat := b.MinLat + float64(r)*latStep
		maxLat := minLat + latStep
		if r == rows-1 {
			maxLat = b.MaxLat
		}
		for c := 0; c < cols; c++ {
			minLon := b.MinLon + float64(c)*lonStep
			maxLon := minLon + lonStep
			if c == cols-1 {
				maxLon = b.MaxLon
			}
			parts = append(parts, BBox{MinLat: minLat, MinLon: minLon, MaxLat: maxLat, MaxLon: maxLon})
		}
	}
	return parts
}

func (b BBox) String() string {
	return fmt.Sprintf("(%.6f,%.6f)-(%.6f,%.6f)", b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}
