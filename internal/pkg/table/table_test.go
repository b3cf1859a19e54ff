package table

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/wkb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

func square(minLon, minLat float64) geom.Polygon {
	return geom.Polygon{{
		{minLon, minLat}, {minLon + 0.01, minLat}, {minLon + 0.01, minLat + 0.01}, {minLon, minLat + 0.01}, {minLon, minLat},
	}}
}

func sampleSummary() *domain.HexSummaryTable {
	return &domain.HexSummaryTable{
		Zoom:    9,
		Skipped: 1,
		Rows: []domain.HexSummaryRow{
			{HexID: "89195da49b7ffff", PipeCount: 5, Boundary: square(-0.10, 51.50)},
			{HexID: "89195da49afffff", PipeCount: 2, Boundary: square(-0.09, 51.50)},
		},
	}
}

func TestFromSummary_PreservesOrder(t *testing.T) {
	tbl, err := FromSummary(sampleSummary())
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())
	assert.Equal(t, []string{"89195da49b7ffff", "89195da49afffff"}, tbl.HexIDs)
	assert.Equal(t, []int64{5, 2}, tbl.Counts)
	assert.Len(t, tbl.WKB, 2)
}

func TestFromSummary_Nil(t *testing.T) {
	_, err := FromSummary(nil)
	assert.Equal(t, domain.KindPackaging, domain.KindOf(err))
}

func TestWriteArrow_RoundTrip(t *testing.T) {
	tbl, err := FromSummary(sampleSummary())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteArrow(&buf))

	rdr, err := ipc.NewReader(&buf, ipc.WithAllocator(memory.NewGoAllocator()))
	require.NoError(t, err)
	defer rdr.Release()

	schema := rdr.Schema()
	require.Equal(t, 3, schema.NumFields())
	assert.Equal(t, ColHexID, schema.Field(0).Name)
	assert.Equal(t, ColPipeCount, schema.Field(1).Name)
	assert.Equal(t, ColGeometry, schema.Field(2).Name)

	md := schema.Field(2).Metadata
	idx := md.FindKey("ARROW:extension:name")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "geoarrow.wkb", md.Values()[idx])

	require.True(t, rdr.Next())
	rec := rdr.Record()
	require.EqualValues(t, 2, rec.NumRows())

	ids := rec.Column(0).(*array.String)
	counts := rec.Column(1).(*array.Int64)
	geoms := rec.Column(2).(*array.Binary)
	assert.Equal(t, "89195da49b7ffff", ids.Value(0))
	assert.EqualValues(t, 5, counts.Value(0))
	assert.EqualValues(t, 2, counts.Value(1))

	g, err := wkb.DecodeBytes(geoms.Value(0))
	require.NoError(t, err)
	poly, ok := g.(geom.Polygon)
	require.True(t, ok, "expected polygon, got %T", g)
	// WKB rings are closed on encode; the decoder strips the repeated vertex.
	ring := square(-0.10, 51.50)[0]
	assert.Equal(t, ring[:len(ring)-1], poly[0])
}

func TestWriteArrow_Empty(t *testing.T) {
	tbl, err := FromSummary(&domain.HexSummaryTable{Zoom: 3})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteArrow(&buf))

	rdr, err := ipc.NewReader(&buf)
	require.NoError(t, err)
	defer rdr.Release()
	assert.Equal(t, 3, rdr.Schema().NumFields())
	if rdr.Next() {
		assert.EqualValues(t, 0, rdr.Record().NumRows())
	}
}

func TestWriteGeoJSON(t *testing.T) {
	tbl, err := FromSummary(sampleSummary())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.WriteGeoJSON(&buf))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			Type     string `json:"type"`
			Geometry struct {
				Type string `json:"type"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)
	assert.Equal(t, "Polygon", doc.Features[0].Geometry.Type)
	assert.Equal(t, "89195da49b7ffff", doc.Features[0].Properties["hex_id"])
	assert.EqualValues(t, 5, doc.Features[0].Properties["pipe_count"])
}

func TestWriteJSON(t *testing.T) {
	tbl, err := FromSummary(sampleSummary())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tbl.Write(&buf, FormatJSON))

	var doc struct {
		Zoom    int `json:"zoom"`
		Skipped int `json:"skipped"`
		Rows    []struct {
			HexID     string          `json:"hex_id"`
			PipeCount int64           `json:"pipe_count"`
			Geometry  json.RawMessage `json:"geometry"`
		} `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, 9, doc.Zoom)
	assert.Equal(t, 1, doc.Skipped)
	require.Len(t, doc.Rows, 2)
	assert.Contains(t, string(doc.Rows[0].Geometry), `"Polygon"`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("", FormatGeoJSON)
	require.NoError(t, err)
	assert.Equal(t, FormatGeoJSON, f)

	f, err = ParseFormat("ARROW", FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, FormatArrow, f)
	assert.Equal(t, ContentTypeArrow, f.ContentType())

	_, err = ParseFormat("parquet", FormatJSON)
	assert.Error(t, err)
}

func TestClassify_AddsClassAndColour(t *testing.T) {
	tbl, err := FromSummary(sampleSummary())
	require.NoError(t, err)

	tbl.Classify(5, "grey_blue")
	assert.Equal(t, []float64{2, 5}, tbl.Breaks)
	assert.Equal(t, []int{0, 0}, tbl.Classes)
	assert.Equal(t, "#e0e0e0", tbl.Colors[0])

	var buf bytes.Buffer
	require.NoError(t, tbl.Write(&buf, FormatGeoJSON))
	assert.Contains(t, buf.String(), `"color":"#e0e0e0"`)

	buf.Reset()
	require.NoError(t, tbl.Write(&buf, FormatJSON))
	assert.Contains(t, buf.String(), `"breaks":[2,5]`)
	assert.Contains(t, buf.String(), `"class":0`)
}

func TestRows_UnclassifiedOmitsClass(t *testing.T) {
	tbl, err := FromSummary(sampleSummary())
	require.NoError(t, err)
	for _, r := range tbl.Rows() {
		assert.Nil(t, r.Class)
		assert.Empty(t, r.Color)
	}
}
