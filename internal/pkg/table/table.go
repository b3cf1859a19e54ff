// Package table packages a hex summary as a columnar table with the fixed schema
// hex_id (utf8), pipe_count (int64) and geometry (WKB, EPSG:4326).
package table

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkb"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/classify"
)

const (
	ColHexID     = "hex_id"
	ColPipeCount = "pipe_count"
	ColGeometry  = "geometry"

	CRS = "EPSG:4326"

	ContentTypeArrow   = "application/vnd.apache.arrow.stream"
	ContentTypeGeoJSON = "application/geo+json"
	ContentTypeJSON    = "application/json"
)

// Format selects an output encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatGeoJSON Format = "geojson"
	FormatArrow   Format = "arrow"
)

// ParseFormat validates a format name. Empty selects def.
func ParseFormat(s string, def Format) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return def, nil
	case FormatJSON, FormatGeoJSON, FormatArrow:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want json, geojson or arrow)", s)
	}
}

// ContentType returns the media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatArrow:
		return ContentTypeArrow
	case FormatGeoJSON:
		return ContentTypeGeoJSON
	default:
		return ContentTypeJSON
	}
}

// Table is the packaged result. Columns are parallel slices in row order.
type Table struct {
	Zoom       int
	Skipped    int
	HexIDs     []string
	Counts     []int64
	WKB        [][]byte
	Boundaries []geom.Polygon

	// Set by Classify.
	Breaks  []float64
	Classes []int
	Colors  []string
}

// FromSummary builds a Table from an aggregated summary, preserving row order.
func FromSummary(s *domain.HexSummaryTable) (*Table, error) {
	const op = "package table"
	if s == nil {
		return nil, domain.NewError(domain.KindPackaging, op, fmt.Errorf("nil summary"))
	}

	n := len(s.Rows)
	t := &Table{
		Zoom:       s.Zoom,
		Skipped:    s.Skipped,
		HexIDs:     make([]string, 0, n),
		Counts:     make([]int64, 0, n),
		WKB:        make([][]byte, 0, n),
		Boundaries: make([]geom.Polygon, 0, n),
	}
	for _, row := range s.Rows {
		b, err := wkb.EncodeBytes(row.Boundary)
		if err != nil {
			return nil, domain.NewError(domain.KindPackaging, op, fmt.Errorf("encode %s: %w", row.HexID, err))
		}
		t.HexIDs = append(t.HexIDs, row.HexID)
		t.Counts = append(t.Counts, row.PipeCount)
		t.WKB = append(t.WKB, b)
		t.Boundaries = append(t.Boundaries, row.Boundary)
	}
	return t, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.HexIDs) }

// Classify assigns every row a Jenks class over pipe_count and the matching
// colour from the named palette.
func (t *Table) Classify(nClasses int, palette string) {
	values := make([]float64, t.Len())
	for i, c := range t.Counts {
		values[i] = float64(c)
	}
	ramp := classify.Palette(palette)
	t.Breaks = classify.JenksBreaks(values, nClasses)
	t.Classes = make([]int, t.Len())
	t.Colors = make([]string, t.Len())
	for i, v := range values {
		t.Classes[i] = classify.ClassIndex(t.Breaks, v)
		t.Colors[i] = classify.Color(ramp, t.Classes[i])
	}
}

func (t *Table) classified() bool { return len(t.Classes) == t.Len() && t.Classes != nil }

// Schema returns the Arrow schema. The geometry field is tagged as GeoArrow WKB.
func Schema() *arrow.Schema {
	geoMeta := arrow.NewMetadata(
		[]string{"ARROW:extension:name", "ARROW:extension:metadata"},
		[]string{"geoarrow.wkb", `{"crs":"` + CRS + `"}`},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: ColHexID, Type: arrow.BinaryTypes.String},
		{Name: ColPipeCount, Type: arrow.PrimitiveTypes.Int64},
		{Name: ColGeometry, Type: arrow.BinaryTypes.Binary, Metadata: geoMeta},
	}, nil)
}

// Record builds an Arrow record. The caller must Release it.
func (t *Table) Record(mem memory.Allocator) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema())
	defer b.Release()

	b.Field(0).(*array.StringBuilder).AppendValues(t.HexIDs, nil)
	b.Field(1).(*array.Int64Builder).AppendValues(t.Counts, nil)
	b.Field(2).(*array.BinaryBuilder).AppendValues(t.WKB, nil)
	return b.NewRecord()
}

// WriteArrow writes the table as an Arrow IPC stream.
func (t *Table) WriteArrow(w io.Writer) error {
	mem := memory.NewGoAllocator()
	rec := t.Record(mem)
	defer rec.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err := writer.Write(rec); err != nil {
		_ = writer.Close()
		return domain.NewError(domain.KindPackaging, "write arrow", err)
	}
	if err := writer.Close(); err != nil {
		return domain.NewError(domain.KindPackaging, "write arrow", err)
	}
	return nil
}

// Row is the JSON form of one table row.
type Row struct {
	HexID     string           `json:"hex_id"`
	PipeCount int64            `json:"pipe_count"`
	Class     *int             `json:"class,omitempty"`
	Color     string           `json:"color,omitempty"`
	Geometry  geojson.Geometry `json:"geometry"`
}

// Rows returns the table as JSON-ready rows.
func (t *Table) Rows() []Row {
	rows := make([]Row, t.Len())
	for i := range rows {
		rows[i] = Row{
			HexID:     t.HexIDs[i],
			PipeCount: t.Counts[i],
			Geometry:  geojson.Geometry{Geometry: t.Boundaries[i]},
		}
		if t.classified() {
			class := t.Classes[i]
			rows[i].Class = &class
			rows[i].Color = t.Colors[i]
		}
	}
	return rows
}

// FeatureCollection returns the table as GeoJSON features.
func (t *Table) FeatureCollection() geojson.FeatureCollection {
	fc := geojson.FeatureCollection{Features: make([]geojson.Feature, 0, t.Len())}
	for i := 0; i < t.Len(); i++ {
		props := map[string]interface{}{
			ColHexID:     t.HexIDs[i],
			ColPipeCount: t.Counts[i],
		}
		if t.classified() {
			props["class"] = t.Classes[i]
			props["color"] = t.Colors[i]
		}
		fc.Features = append(fc.Features, geojson.Feature{
			Geometry:   geojson.Geometry{Geometry: t.Boundaries[i]},
			Properties: props,
		})
	}
	return fc
}

// WriteGeoJSON writes the table as a GeoJSON FeatureCollection.
func (t *Table) WriteGeoJSON(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(t.FeatureCollection()); err != nil {
		return domain.NewError(domain.KindPackaging, "write geojson", err)
	}
	return nil
}

// WriteJSON writes the rows as a JSON document.
func (t *Table) WriteJSON(w io.Writer) error {
	doc := struct {
		Zoom    int       `json:"zoom"`
		Skipped int       `json:"skipped"`
		Breaks  []float64 `json:"breaks,omitempty"`
		Rows    []Row     `json:"rows"`
	}{t.Zoom, t.Skipped, t.Breaks, t.Rows()}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return domain.NewError(domain.KindPackaging, "write json", err)
	}
	return nil
}

// Write encodes the table in format f.
func (t *Table) Write(w io.Writer, f Format) error {
	switch f {
	case FormatArrow:
		return t.WriteArrow(w)
	case FormatGeoJSON:
		return t.WriteGeoJSON(w)
	default:
		return t.WriteJSON(w)
	}
}
