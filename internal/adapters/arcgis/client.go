// Package arcgis looks up built-up area polygons on an ArcGIS FeatureServer layer.
package arcgis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"

	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
	"github.com/CHRISCARLON/infra-hex/internal/core/ports"
	"github.com/CHRISCARLON/infra-hex/internal/pkg/metrics"
)

// Config configures a Client.
type Config struct {
	LayerURL      string
	NameField     string
	CodeField     string
	MaxRetries    int
	RetryInterval time.Duration
	Timeout       time.Duration
	CacheTTL      int
}

// Client implements ports.AreaLookup.
type Client struct {
	cfg   Config
	query *url.URL
	http  *http.Client
	cache ports.CacheService
}

// NewClient builds a Client. cache may be nil.
func NewClient(cfg Config, cache ports.CacheService) (*Client, error) {
	layer, err := url.Parse(strings.TrimRight(cfg.LayerURL, "/"))
	if err != nil || layer.Scheme == "" || layer.Host == "" {
		return nil, fmt.Errorf("invalid layer url %q", cfg.LayerURL)
	}
	if cfg.NameField == "" {
		cfg.NameField = "BUA24NM"
	}
	if cfg.CodeField == "" {
		cfg.CodeField = "BUA24CD"
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 86400
	}
	return &Client{
		cfg:   cfg,
		query: layer.JoinPath("query"),
		http:  &http.Client{Timeout: cfg.Timeout},
		cache: cache,
	}, nil
}

// FetchByObjectID returns the built-up area with the given OBJECTID, or an error
// wrapping domain.ErrAreaNotFound when the layer has no such feature.
func (c *Client) FetchByObjectID(ctx context.Context, objectID int64) (*domain.BuiltUpArea, error) {
	key := "bua:" + strconv.FormatInt(objectID, 10)

	if c.cache != nil {
		if data, err := c.cache.Get(ctx, key); err == nil && len(data) > 0 {
			if area, err := c.decodeArea(objectID, data); err == nil {
				metrics.CacheHits.WithLabelValues("area").Inc()
				return area, nil
			}
		}
		metrics.CacheMisses.WithLabelValues("area").Inc()
	}

	feature, err := c.fetchFeature(ctx, objectID)
	if err != nil {
		return nil, err
	}
	area, err := c.decodeArea(objectID, feature)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, feature, c.cfg.CacheTTL); err != nil {
			slog.Warn("failed to cache area", "object_id", objectID, "error", err)
		}
	}
	return area, nil
}

type featureCollection struct {
	Features []json.RawMessage `json:"features"`
	Error    *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) fetchFeature(ctx context.Context, objectID int64) (json.RawMessage, error) {
	u := *c.query
	q := url.Values{}
	q.Set("where", fmt.Sprintf("OBJECTID=%d", objectID))
	q.Set("outFields", "*")
	q.Set("outSR", "4326")
	q.Set("f", "geojson")
	u.RawQuery = q.Encode()

	var fc featureCollection
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/geo+json, application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}

		fc = featureCollection{}
		if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
			return backoff.Permanent(fmt.Errorf("decode features: %w", err))
		}
		// ArcGIS reports query errors in a 200 body.
		if fc.Error != nil {
			err := fmt.Errorf("arcgis error %d: %s", fc.Error.Code, fc.Error.Message)
			if fc.Error.Code >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	retries := backoff.WithMaxRetries(b, uint64(max(c.cfg.MaxRetries, 0)))
	if err := backoff.Retry(op, backoff.WithContext(retries, ctx)); err != nil {
		return nil, fmt.Errorf("query object id %d: %w", objectID, err)
	}

	if len(fc.Features) == 0 {
		return nil, fmt.Errorf("object id %d: %w", objectID, domain.ErrAreaNotFound)
	}
	return fc.Features[0], nil
}

type feature struct {
	Geometry   json.RawMessage        `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

func (c *Client) decodeArea(objectID int64, raw []byte) (*domain.BuiltUpArea, error) {
	var f feature
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode feature: %w", err)
	}

	area := &domain.BuiltUpArea{ObjectID: objectID, Geometry: geom.MultiPolygon{}}
	if v, ok := f.Properties[c.cfg.NameField].(string); ok {
		area.Name = v
	}
	if v, ok := f.Properties[c.cfg.CodeField].(string); ok {
		area.Code = v
	}

	g := bytes.TrimSpace(f.Geometry)
	if len(g) == 0 || bytes.Equal(g, []byte("null")) {
		return area, nil
	}
	var gj geojson.Geometry
	if err := json.Unmarshal(g, &gj); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	switch v := gj.Geometry.(type) {
	case geom.MultiPolygon:
		area.Geometry = v
	case geom.Polygon:
		area.Geometry = geom.MultiPolygon{v}
	default:
		return nil, fmt.Errorf("%w: got %T", domain.ErrNoPolygon, gj.Geometry)
	}
	return area, nil
}
