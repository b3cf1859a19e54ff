package domain

import (
	"fmt"
	"time"

	"github.com/go-spatial/geom"
)

// BuiltUpArea is an administratively defined built-up area polygon.
type BuiltUpArea struct {
	ObjectID int64             `json:"object_id"`
	Code     string            `json:"code,omitempty"`
	Name     string            `json:"name,omitempty"`
	Geometry geom.MultiPolygon `json:"-"`
}

// PipeRecord is one linear infrastructure feature returned by the data provider.
// Geometry coordinates are [lon, lat] pairs.
type PipeRecord struct {
	ID         string                 `json:"id"`
	Geometry   geom.MultiLineString   `json:"-"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// FetchError describes one failed partition of a fetch.
type FetchError struct {
	Partition int   `json:"partition"`
	BBox      BBox  `json:"bbox"`
	Err       error `json:"-"`
}

func (e FetchError) Error() string {
	return fmt.Sprintf("partition %d %s: %v", e.Partition, e.BBox, e.Err)
}

func (e FetchError) Unwrap() error { return e.Err }

// FetchResult carries the records of the partitions that succeeded together with
// one FetchError per partition that failed. Both may be non-empty.
type FetchResult struct {
	Records []PipeRecord
	Errors  []FetchError
}

// HexSummaryRow is one occupied hex cell.
type HexSummaryRow struct {
	HexID     string       `json:"hex_id"`
	PipeCount int64        `json:"pipe_count"`
	Boundary  geom.Polygon `json:"-"`
}

// HexSummaryTable is the ordered result of one aggregation.
type HexSummaryTable struct {
	Zoom    int             `json:"zoom"`
	Rows    []HexSummaryRow `json:"rows"`
	Skipped int             `json:"skipped"`
}

// TotalCount returns the sum of pipe_count over all rows.
func (t *HexSummaryTable) TotalCount() int64 {
	var n int64
	for _, r := range t.Rows {
		n += r.PipeCount
	}
	return n
}

// SummaryMode identifies which entry point produced a run.
type SummaryMode string

const (
	ModeBBox SummaryMode = "bbox"
	ModeArea SummaryMode = "area"
)

// SummaryRun is the audit record of one pipeline invocation.
type SummaryRun struct {
	ID          int64         `json:"id,omitempty"`
	Mode        SummaryMode   `json:"mode"`
	ObjectID    *int64        `json:"object_id,omitempty"`
	BBox        BBox          `json:"bbox"`
	Zoom        int           `json:"zoom"`
	Records     int           `json:"records"`
	Rows        int           `json:"rows"`
	Skipped     int           `json:"skipped"`
	FetchErrors int           `json:"fetch_errors"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
	StartedAt   time.Time     `json:"started_at"`
}

// Succeeded reports whether the run produced a table.
func (r SummaryRun) Succeeded() bool { return r.ErrorKind == "" }
