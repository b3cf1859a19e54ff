package geospatial

import "github.com/go-spatial/geom"

// Midpoint returns the point halfway along the total great-circle length of the
// line work in mls, interpolated linearly inside the segment that contains it.
// Zero-length line work yields its first vertex. ok is false when mls has no vertices.
func Midpoint(mls geom.MultiLineString) (lat, lon float64, ok bool) {
	var (
		total float64
		first [2]float64
		found bool
	)
	for _, line := range mls {
		for i, pt := range line {
			if !found {
				first, found = pt, true
			}
			if i > 0 {
				total += segmentLength(line[i-1], pt)
			}
		}
	}
	if !found {
		return 0, 0, false
	}
	if total == 0 {
		return first[1], first[0], true
	}

	half := total / 2
	var walked float64
	for _, line := range mls {
		for i := 1; i < len(line); i++ {
			a, b := line[i-1], line[i]
			seg := segmentLength(a, b)
			if seg > 0 && walked+seg >= half {
				f := (half - walked) / seg
				return a[1] + f*(b[1]-a[1]), a[0] + f*(b[0]-a[0]), true
			}
			walked += seg
		}
	}
	// Rounding can leave half marginally past the last segment.
	last := lastVertex(mls)
	return last[1], last[0], true
}

func segmentLength(a, b [2]float64) float64 {
	return Haversine(a[1], a[0], b[1], b[0])
}

func lastVertex(mls geom.MultiLineString) [2]float64 {
	for i := len(mls) - 1; i >= 0; i-- {
		if n := len(mls[i]); n > 0 {
			return mls[i][n-1]
		}
	}
	return [2]float64{}
}
