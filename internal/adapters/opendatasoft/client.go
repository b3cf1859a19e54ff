// Package opendatasoft fetches pipe records from an Opendatasoft Explore v2.1 dataset.
package opendatasoft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-spatial/geom"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/metrics"
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	Dataset       string
	APIKey        string
	PointField    string
	ShapeField    string
	IDField       string
	OrderBy       string
	PageSize      int
	MaxOffset     int
	MaxSplitDepth int
	PartitionRows int
	PartitionCols int
	Concurrency   int
	RatePerSecond float64
	MaxRetries    int
	RetryInterval time.Duration
	Timeout       time.Duration
}

// Client implements ports.InfraClient.
type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Dataset == "" {
		return nil, errors.New("dataset is required")
	}
	if cfg.PointField == "" {
		return nil, errors.New("point field is required")
	}
	if cfg.ShapeField == "" {
		cfg.ShapeField = "geo_shape"
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 100 {
		cfg.PageSize = 100
	}
	if cfg.MaxOffset <= 0 {
		cfg.MaxOffset = 10000
	}
	if cfg.OrderBy == "" {
		cfg.OrderBy = cfg.IDField
	}
	if cfg.MaxSplitDepth <= 0 {
		cfg.MaxSplitDepth = 6
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &Client{
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Concurrency),
	}, nil
}

// FetchAllByBBox splits bbox into partitions and fetches them concurrently.
// Records come back in partition order. A record returned by several
// partitions because it sits on a shared edge is kept once; every failed
// partition contributes exactly one FetchError.
func (c *Client) FetchAllByBBox(ctx context.Context, bbox domain.BBox) domain.FetchResult {
	parts := bbox.Partition(c.cfg.PartitionRows, c.cfg.PartitionCols)
	records := make([][]domain.PipeRecord, len(parts))
	failures := make([]error, len(parts))

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Concurrency)
	for i, part := range parts {
		g.Go(func() error {
			recs, err := c.fetchPartition(ctx, part)
			if err != nil {
				failures[i] = err
				metrics.FetchPartitions.WithLabelValues("failed").Inc()
				return nil
			}
			records[i] = recs
			metrics.FetchPartitions.WithLabelValues("ok").Inc()
			return nil
		})
	}
	_ = g.Wait()

	var res domain.FetchResult
	kept := make(map[string]int)
	for i := range parts {
		if failures[i] != nil {
			res.Errors = append(res.Errors, domain.FetchError{Partition: i, BBox: parts[i], Err: failures[i]})
			continue
		}
		res.Records = mergeOverlapping(kept, res.Records, records[i])
	}
	return res
}

// mergeOverlapping appends group to out, skipping records already taken from
// an earlier overlapping group. Records sharing an id lie at the same point, so
// every overlapping group returns all of them and the largest per-group count
// is kept.
func mergeOverlapping(kept map[string]int, out, group []domain.PipeRecord) []domain.PipeRecord {
	occurrences := make(map[string]int, len(group))
	for _, rec := range group {
		n := occurrences[rec.ID]
		occurrences[rec.ID] = n + 1
		if n < kept[rec.ID] {
			continue
		}
		kept[rec.ID] = n + 1
		out = append(out, rec)
	}
	return out
}

type recordsPage struct {
	TotalCount int                          `json:"total_count"`
	Results    []map[string]json.RawMessage `json:"results"`
}

// fetchPartition pages through bbox when a sort key is configured. Without one
// the partition is split until every piece fits in a single page.
func (c *Client) fetchPartition(ctx context.Context, bbox domain.BBox) ([]domain.PipeRecord, error) {
	if c.cfg.OrderBy == "" {
		return c.fetchSplitting(ctx, bbox, 0)
	}
	return c.fetchPaged(ctx, bbox)
}

func (c *Client) fetchSplitting(ctx context.Context, bbox domain.BBox, depth int) ([]domain.PipeRecord, error) {
	page, err := c.fetchPage(ctx, bbox, 0)
	if err != nil {
		return nil, err
	}
	if page.TotalCount <= len(page.Results) {
		out, err := c.decodePage(page)
		if err != nil {
			return nil, err
		}
		slog.Debug("partition fetched", "bbox", bbox.String(), "records", len(out), "depth", depth)
		return out, nil
	}
	if depth >= c.cfg.MaxSplitDepth {
		return nil, fmt.Errorf("%d records in %s do not fit one page after %d splits, configure an order_by field", page.TotalCount, bbox, depth)
	}

	var out []domain.PipeRecord
	kept := make(map[string]int)
	for _, quad := range bbox.Partition(2, 2) {
		recs, err := c.fetchSplitting(ctx, quad, depth+1)
		if err != nil {
			return nil, err
		}
		out = mergeOverlapping(kept, out, recs)
	}
	return out, nil
}

func (c *Client) fetchPaged(ctx context.Context, bbox domain.BBox) ([]domain.PipeRecord, error) {
	var out []domain.PipeRecord
	for offset := 0; ; offset += c.cfg.PageSize {
		page, err := c.fetchPage(ctx, bbox, offset)
		if err != nil {
			return nil, fmt.Errorf("offset %d: %w", offset, err)
		}
		if offset == 0 && page.TotalCount > c.cfg.MaxOffset {
			return nil, fmt.Errorf("%d records exceed the %d record paging window, use more partitions", page.TotalCount, c.cfg.MaxOffset)
		}
		recs, err := c.decodePage(page)
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
		if len(page.Results) < c.cfg.PageSize || offset+c.cfg.PageSize >= page.TotalCount {
			break
		}
	}
	slog.Debug("partition fetched", "bbox", bbox.String(), "records", len(out))
	return out, nil
}

func (c *Client) decodePage(page *recordsPage) ([]domain.PipeRecord, error) {
	out := make([]domain.PipeRecord, 0, len(page.Results))
	for _, row := range page.Results {
		rec, err := c.decodeRecord(row)
		if err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

func (c *Client) fetchPage(ctx context.Context, bbox domain.BBox, offset int) (*recordsPage, error) {
	u := c.base.JoinPath("catalog", "datasets", c.cfg.Dataset, "records")
	q := url.Values{}
	q.Set("where", fmt.Sprintf("in_bbox(%s, %s, %s, %s, %s)", c.cfg.PointField,
		ftoa(bbox.MinLat), ftoa(bbox.MinLon), ftoa(bbox.MaxLat), ftoa(bbox.MaxLon)))
	q.Set("limit", strconv.Itoa(c.cfg.PageSize))
	q.Set("offset", strconv.Itoa(offset))
	if c.cfg.OrderBy != "" {
		q.Set("order_by", c.cfg.OrderBy)
	}
	u.RawQuery = q.Encode()

	var page recordsPage
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Apikey "+c.cfg.APIKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			serr := &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return serr
			}
			return backoff.Permanent(serr)
		}

		page = recordsPage{}
		if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
			return backoff.Permanent(fmt.Errorf("decode page: %w", err))
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	retries := backoff.WithMaxRetries(b, uint64(max(c.cfg.MaxRetries, 0)))
	if err := backoff.Retry(op, backoff.WithContext(retries, ctx)); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) decodeRecord(row map[string]json.RawMessage) (domain.PipeRecord, error) {
	rec := domain.PipeRecord{Properties: make(map[string]interface{}, len(row))}

	shape := row[c.cfg.ShapeField]
	mls, err := decodeLines(shape)
	switch {
	case errors.Is(err, errUnsupportedGeometry):
		slog.Warn("ignoring shape", "error", err)
		rec.Geometry = geom.MultiLineString{}
	case err != nil:
		return rec, err
	default:
		rec.Geometry = mls
	}

	for k, raw := range row {
		if k == c.cfg.ShapeField || k == c.cfg.PointField {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(raw, &v); err == nil {
			rec.Properties[k] = v
		}
	}

	if c.cfg.IDField != "" {
		if v, ok := rec.Properties[c.cfg.IDField]; ok && v != nil {
			rec.ID = fmt.Sprint(v)
		}
	}
	if rec.ID == "" {
		rec.ID = rowHash(row)
	}
	return rec, nil
}

// rowHash identifies a record without a key field by all of its fields.
func rowHash(row map[string]json.RawMessage) string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(row[k])
		h.Write([]byte{0})
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
