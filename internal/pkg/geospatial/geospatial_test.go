package geospatial

import (
	"testing"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHaversine(t *testing.T) {
	// London to Manchester, roughly 262 km.
	d := Haversine(51.5074, -0.1278, 53.4808, -2.2426)
	assert.InDelta(t, 262000, d, 3000)
	assert.Zero(t, Haversine(51.5, -0.1, 51.5, -0.1))
}

func TestEnvelope_MapsAxesToLatLon(t *testing.T) {
	mp := geom.MultiPolygon{
		{{{-0.10, 51.50}, {-0.09, 51.50}, {-0.09, 51.51}, {-0.10, 51.51}, {-0.10, 51.50}}},
		{{{-0.20, 51.40}, {-0.15, 51.40}, {-0.15, 51.45}, {-0.20, 51.40}}},
	}
	b, err := Envelope(mp)
	require.NoError(t, err)
	assert.InDelta(t, 51.40, b.MinLat, 1e-12)
	assert.InDelta(t, -0.20, b.MinLon, 1e-12)
	assert.InDelta(t, 51.51, b.MaxLat, 1e-12)
	assert.InDelta(t, -0.09, b.MaxLon, 1e-12)
}

func TestEnvelope_EmptyGeometry(t *testing.T) {
	_, err := Envelope(geom.MultiPolygon{})
	assert.ErrorIs(t, err, ErrNoEnvelope)

	_, err = Envelope(nil)
	assert.ErrorIs(t, err, ErrNoEnvelope)
}

func TestMidpoint_StraightLine(t *testing.T) {
	lat, lon, ok := Midpoint(geom.MultiLineString{{{0, 0}, {0, 2}}})
	require.True(t, ok)
	assert.InDelta(t, 1.0, lat, 1e-9)
	assert.InDelta(t, 0.0, lon, 1e-9)
}

func TestMidpoint_HalfOfTotalLength(t *testing.T) {
	mls := geom.MultiLineString{
		{{10, 10}, {10, 10.001}},
		{{0, 0}, {0, 1}, {0, 3}},
	}
	lat, lon, ok := Midpoint(mls)
	require.True(t, ok)
	assert.InDelta(t, 0.0, lon, 1e-9)
	assert.True(t, lat > 1.4 && lat < 1.6, "midpoint lat %f", lat)
}

func TestMidpoint_Degenerate(t *testing.T) {
	_, _, ok := Midpoint(geom.MultiLineString{})
	assert.False(t, ok)

	_, _, ok = Midpoint(geom.MultiLineString{{}})
	assert.False(t, ok)

	lat, lon, ok := Midpoint(geom.MultiLineString{{{-0.095, 51.505}}})
	require.True(t, ok)
	assert.Equal(t, 51.505, lat)
	assert.Equal(t, -0.095, lon)
}

func squareWithHole() geom.MultiPolygon {
	return geom.MultiPolygon{
		{
			{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}},
			{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}},
		},
		{
			{{20, 20}, {22, 20}, {22, 22}, {20, 22}, {20, 20}},
		},
	}
}

func TestPolygonIndex_Contains(t *testing.T) {
	idx := NewPolygonIndex(squareWithHole())
	require.Equal(t, 2, idx.Len())

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"inside exterior", 2, 2, true},
		{"inside hole", 5, 5, false},
		{"second part", 21, 21, true},
		{"between parts", 15, 15, false},
		{"outside everything", -1, -1, false},
		{"on exterior edge", 0, 5, true},
		{"on hole edge", 4, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.Contains(tt.lat, tt.lon))
		})
	}
}

func TestPolygonIndex_IgnoresUnusableParts(t *testing.T) {
	idx := NewPolygonIndex(geom.MultiPolygon{{}, {{{0, 0}, {1, 1}}}})
	assert.Zero(t, idx.Len())
	assert.False(t, idx.Contains(0.5, 0.5))
}

func TestPointInRing_OpenRing(t *testing.T) {
	ring := [][2]float64{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	assert.True(t, pointInRing([2]float64{2, 2}, ring))
	assert.False(t, pointInRing([2]float64{5, 2}, ring))
}
