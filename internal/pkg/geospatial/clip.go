package geospatial

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/go-spatial/geom"
)

// minExtent keeps zero-width parts and point queries valid rtreego rectangles.
const minExtent = 1e-9

// polygonPart is one polygon of a multipolygon together with its bounds.
type polygonPart struct {
	rings                  [][][2]float64
	minX, minY, maxX, maxY float64
}

// Bounds implements rtreego.Spatial.
func (p *polygonPart) Bounds() rtreego.Rect {
	point := rtreego.Point{p.minX, p.minY}
	lengths := []float64{
		math.Max(p.maxX-p.minX, minExtent),
		math.Max(p.maxY-p.minY, minExtent),
	}
	rect, _ := rtreego.NewRect(point, lengths)
	return rect
}

// PolygonIndex answers point-in-polygon queries against a multipolygon.
// Parts are prefiltered by bounding box through an R-tree, then tested with
// the even-odd rule. The first ring of each part is its exterior; the rest are
// holes. Points on an exterior edge count as inside.
type PolygonIndex struct {
	tree  *rtreego.Rtree
	parts int
}

// NewPolygonIndex builds an index over the parts of mp. Parts with no usable
// exterior ring are ignored.
func NewPolygonIndex(mp geom.MultiPolygon) *PolygonIndex {
	tree := rtreego.NewTree(2, 25, 50)
	idx := &PolygonIndex{tree: tree}
	for _, poly := range mp {
		if len(poly) == 0 || len(poly[0]) < 3 {
			continue
		}
		part := &polygonPart{
			rings: poly,
			minX:  math.Inf(1), minY: math.Inf(1),
			maxX: math.Inf(-1), maxY: math.Inf(-1),
		}
		for _, pt := range poly[0] {
			part.minX = math.Min(part.minX, pt[0])
			part.minY = math.Min(part.minY, pt[1])
			part.maxX = math.Max(part.maxX, pt[0])
			part.maxY = math.Max(part.maxY, pt[1])
		}
		tree.Insert(part)
		idx.parts++
	}
	return idx
}

// Len returns the number of indexed parts.
func (idx *PolygonIndex) Len() int { return idx.parts }

// Contains reports whether (lat, lon) lies inside any part of the multipolygon.
func (idx *PolygonIndex) Contains(lat, lon float64) bool {
	if idx.parts == 0 {
		return false
	}
	query := rtreego.Point{lon - minExtent, lat - minExtent}
	rect, err := rtreego.NewRect(query, []float64{2 * minExtent, 2 * minExtent})
	if err != nil {
		return false
	}
	pt := [2]float64{lon, lat}
	for _, s := range idx.tree.SearchIntersect(rect) {
		if pointInPolygon(pt, s.(*polygonPart).rings) {
			return true
		}
	}
	return false
}

func pointInPolygon(pt [2]float64, rings [][][2]float64) bool {
	if !onRingEdge(pt, rings[0]) && !pointInRing(pt, rings[0]) {
		return false
	}
	for _, hole := range rings[1:] {
		if len(hole) >= 3 && pointInRing(pt, hole) && !onRingEdge(pt, hole) {
			return false
		}
	}
	return true
}

// pointInRing is the even-odd ray cast. Closed and open rings are both accepted.
func pointInRing(pt [2]float64, ring [][2]float64) bool {
	n := len(ring)
	if n < 3 {
		return false
	}
	x, y := pt[0], pt[1]
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

func onRingEdge(pt [2]float64, ring [][2]float64) bool {
	n := len(ring)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		if onSegment(pt, ring[j], ring[i]) {
			return true
		}
	}
	return false
}

func onSegment(p, a, b [2]float64) bool {
	const eps = 1e-12
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > eps {
		return false
	}
	return p[0] >= math.Min(a[0], b[0])-eps && p[0] <= math.Max(a[0], b[0])+eps &&
		p[1] >= math.Min(a[1], b[1])-eps && p[1] <= math.Max(a[1], b[1])+eps
}
