package arcgis_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-spatial/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CHRISCARLON/infra-hex/internal/adapters/arcgis"
	"github.com/CHRISCARLON/infra-hex/internal/core/domain"
)

const polygonFeature = `{"type":"Feature","id":42,"geometry":{"type":"Polygon","coordinates":[[[-0.10,51.50],[-0.09,51.50],[-0.09,51.51],[-0.10,51.51],[-0.10,51.50]]]},"properties":{"OBJECTID":42,"BUA24CD":"E63004843","BUA24NM":"Test Town"}}`

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttl  map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttl: map[string]int{}}
}

func (m *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errors.New("miss")
	}
	return v, nil
}

func (m *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttl[key] = ttlSeconds
	return nil
}

func (m *memCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func newServer(t *testing.T, calls *atomic.Int32, body func(r *http.Request) (int, string)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		status, payload := body(r)
		w.Header().Set("Content-Type", "application/geo+json")
		w.WriteHeader(status)
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func config(url string) arcgis.Config {
	return arcgis.Config{LayerURL: url + "/FeatureServer/0", MaxRetries: 1, RetryInterval: time.Millisecond}
}

func TestClient_FetchByObjectID(t *testing.T) {
	var calls atomic.Int32
	var query string
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		query = r.URL.Path + "?" + r.URL.RawQuery
		return http.StatusOK, `{"type":"FeatureCollection","features":[` + polygonFeature + `]}`
	})

	c, err := arcgis.NewClient(config(srv.URL), nil)
	require.NoError(t, err)

	area, err := c.FetchByObjectID(context.Background(), 42)
	require.NoError(t, err)
	assert.EqualValues(t, 42, area.ObjectID)
	assert.Equal(t, "Test Town", area.Name)
	assert.Equal(t, "E63004843", area.Code)
	require.Len(t, area.Geometry, 1)
	assert.Len(t, area.Geometry[0][0], 5)

	assert.Contains(t, query, "/FeatureServer/0/query?")
	assert.Contains(t, query, "where=OBJECTID%3D42")
	assert.Contains(t, query, "outSR=4326")
	assert.Contains(t, query, "f=geojson")
}

func TestClient_FetchByObjectID_NotFound(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"type":"FeatureCollection","features":[]}`
	})

	c, err := arcgis.NewClient(config(srv.URL), nil)
	require.NoError(t, err)

	_, err = c.FetchByObjectID(context.Background(), 999999)
	assert.ErrorIs(t, err, domain.ErrAreaNotFound)
}

func TestClient_FetchByObjectID_MultiPolygon(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]],[[[2,2],[3,2],[3,3],[2,2]]]]},"properties":{}}]}`
	})

	c, err := arcgis.NewClient(config(srv.URL), nil)
	require.NoError(t, err)

	area, err := c.FetchByObjectID(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, area.Geometry, 2)
	assert.IsType(t, geom.MultiPolygon{}, area.Geometry)
}

func TestClient_FetchByObjectID_NonPolygon(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[-0.1,51.5]},"properties":{}}]}`
	})

	c, err := arcgis.NewClient(config(srv.URL), nil)
	require.NoError(t, err)

	_, err = c.FetchByObjectID(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrNoPolygon)
}

func TestClient_FetchByObjectID_ErrorBody(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"error":{"code":400,"message":"Invalid query parameters"}}`
	})

	c, err := arcgis.NewClient(config(srv.URL), nil)
	require.NoError(t, err)

	_, err = c.FetchByObjectID(context.Background(), 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrAreaNotFound)
	assert.Contains(t, err.Error(), "Invalid query parameters")
	assert.EqualValues(t, 1, calls.Load())
}

func TestClient_FetchByObjectID_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		if calls.Load() == 1 {
			return http.StatusBadGateway, "bad gateway"
		}
		return http.StatusOK, `{"features":[` + polygonFeature + `]}`
	})

	c, err := arcgis.NewClient(config(srv.URL), nil)
	require.NoError(t, err)

	_, err = c.FetchByObjectID(context.Background(), 42)
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestClient_FetchByObjectID_UsesCache(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, &calls, func(r *http.Request) (int, string) {
		return http.StatusOK, `{"features":[` + polygonFeature + `]}`
	})

	cache := newMemCache()
	cfg := config(srv.URL)
	cfg.CacheTTL = 60
	c, err := arcgis.NewClient(cfg, cache)
	require.NoError(t, err)

	first, err := c.FetchByObjectID(context.Background(), 42)
	require.NoError(t, err)
	second, err := c.FetchByObjectID(context.Background(), 42)
	require.NoError(t, err)

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, first, second)
	assert.Equal(t, 60, cache.ttl["bua:42"])
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := arcgis.NewClient(arcgis.Config{LayerURL: "::"}, nil)
	assert.Error(t, err)
}
