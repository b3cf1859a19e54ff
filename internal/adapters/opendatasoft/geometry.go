package opendatasoft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

var errUnsupportedGeometry = errors.New("unsupported shape geometry")

// decodeLines reads a shape field that holds either a GeoJSON Feature or a bare
// geometry and normalises it to a MultiLineString. A null shape decodes to an
// empty MultiLineString.
func decodeLines(raw json.RawMessage) (geom.MultiLineString, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return geom.MultiLineString{}, nil
	}

	var probe struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("shape: %w", err)
	}
	if probe.Type == "Feature" {
		raw = bytes.TrimSpace(probe.Geometry)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return geom.MultiLineString{}, nil
		}
	}

	var g geojson.Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("shape geometry: %w", err)
	}

	switch v := g.Geometry.(type) {
	case geom.MultiLineString:
		return v, nil
	case geom.LineString:
		return geom.MultiLineString{v}, nil
	case geom.Point:
		return geom.MultiLineString{{[2]float64(v)}}, nil
	case geom.MultiPoint:
		mls := make(geom.MultiLineString, 0, len(v))
		for _, pt := range v {
			mls = append(mls, [][2]float64{pt})
		}
		return mls, nil
	default:
		return nil, fmt.Errorf("%w %T", errUnsupportedGeometry, g.Geometry)
	}
}
