package boundary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/flipfinder/internal/config"
)

// unitSquare is a polygon covering (0,0)-(10,10) with a hole over
// (4,4)-(6,6).
func unitSquare(t *testing.T) *geom.MultiPolygon {
	t.Helper()
	poly := geom.NewPolygon(geom.XY)
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		0, 0, 10, 0, 10, 10, 0, 10, 0, 0,
	})))
	require.NoError(t, poly.Push(geom.NewLinearRingFlat(geom.XY, []float64{
		4, 4, 6, 4, 6, 6, 4, 6, 4, 4,
	})))
	mp := geom.NewMultiPolygon(geom.XY)
	require.NoError(t, mp.Push(poly))
	return mp
}

func TestContains(t *testing.T) {
	mp := unitSquare(t)

	assert.True(t, Contains(mp, 2, 2), "interior point")
	assert.False(t, Contains(mp, 5, 5), "point inside hole")
	assert.False(t, Contains(mp, 20, 20), "exterior point")
	assert.False(t, Contains(nil, 2, 2), "nil polygon")
}

const tractFeature = `{
	"type": "FeatureCollection",
	"features": [{
		"type": "Feature",
		"properties": {"GEOID": "18097010100"},
		"geometry": {
			"type": "Polygon",
			"coordinates": [[[-86.2,39.7],[-86.0,39.7],[-86.0,39.9],[-86.2,39.9],[-86.2,39.7]]]
		}
	}]
}`

func newTestService(url string) *Service {
	s := NewService(config.BoundaryConfig{TigerwebURL: url, CacheTTLDays: 30})
	s.retry.InitialBackoff = time.Millisecond
	return s
}

func TestTractPolygonFetchAndCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "GEOID='18097010100'", r.URL.Query().Get("where"))
		assert.Equal(t, "geojson", r.URL.Query().Get("f"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tractFeature))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)

	poly, err := s.TractPolygon(context.Background(), "18097010100")
	require.NoError(t, err)
	require.NotNil(t, poly)
	assert.True(t, Contains(poly, -86.1, 39.8))
	assert.False(t, Contains(poly, -86.5, 39.8))

	_, err = s.TractPolygon(context.Background(), "18097010100")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "second lookup must come from cache")
}

func TestTractPolygonAbsenceCached(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[]}`))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)

	poly, err := s.TractPolygon(context.Background(), "18097999999")
	require.NoError(t, err)
	assert.Nil(t, poly)

	_, err = s.TractPolygon(context.Background(), "18097999999")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTractPolygonRetriesTransient(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(tractFeature))
	}))
	defer srv.Close()

	s := newTestService(srv.URL)

	poly, err := s.TractPolygon(context.Background(), "18097010100")
	require.NoError(t, err)
	require.NotNil(t, poly)
	assert.Equal(t, 2, calls)
}

func TestTractPolygonEmptyGeoid(t *testing.T) {
	s := newTestService("http://unused.invalid")
	_, err := s.TractPolygon(context.Background(), "")
	assert.Error(t, err)
}

func TestPreload(t *testing.T) {
	s := newTestService("http://unused.invalid")
	s.Preload(map[string]*geom.MultiPolygon{"18097010100": unitSquare(t)})

	poly, err := s.TractPolygon(context.Background(), "18097010100")
	require.NoError(t, err)
	assert.True(t, Contains(poly, 2, 2))
}

func TestShpToMultiPolygon(t *testing.T) {
	p := &shp.Polygon{
		NumParts: 1,
		Parts:    []int32{0},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}, {X: 0, Y: 0},
		},
	}

	mp := shpToMultiPolygon(p)
	require.NotNil(t, mp)
	assert.Equal(t, 1, mp.NumPolygons())
	assert.True(t, Contains(mp, 5, 5))

	assert.Nil(t, shpToMultiPolygon(nil))
	assert.Nil(t, shpToMultiPolygon(&shp.Polygon{}))
}
