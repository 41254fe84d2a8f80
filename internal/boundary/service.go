// Package boundary fetches census tract polygons and answers point
// containment. Polygons are used only to filter listings geographically;
// nothing downstream scores on geometry.
package boundary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/sells-group/flipfinder/internal/cache"
	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/resilience"
)

// Service resolves tract boundary polygons from the TIGERweb ArcGIS
// query endpoint. Boundaries change once a decade, so the cache TTL is
// long (30 days by default).
type Service struct {
	httpClient *http.Client
	queryURL   string

	cache *cache.Cache[*geom.MultiPolygon]
	retry resilience.RetryConfig
}

// NewService builds a boundary service from config.
func NewService(cfg config.BoundaryConfig) *Service {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("tigerweb", "tract_polygon")

	return &Service{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		queryURL:   cfg.TigerwebURL,
		cache:      cache.New[*geom.MultiPolygon](time.Duration(cfg.CacheTTLDays) * 24 * time.Hour),
		retry:      retry,
	}
}

// CacheStats exposes the polygon cache statistics.
func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

// Preload seeds the polygon cache, e.g. from a shapefile bulk load.
func (s *Service) Preload(polygons map[string]*geom.MultiPolygon) {
	for geoid, poly := range polygons {
		s.cache.Set(geoid, poly)
	}
}

// TractPolygon returns the boundary polygon for an 11-digit tract GEOID.
// Unknown tracts yield (nil, nil); the absence is cached like any other
// answer.
func (s *Service) TractPolygon(ctx context.Context, geoid string) (*geom.MultiPolygon, error) {
	if geoid == "" {
		return nil, eris.New("boundary: empty geoid")
	}
	if cached, ok := s.cache.Get(geoid); ok {
		return cached, nil
	}

	poly, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) (*geom.MultiPolygon, error) {
		return s.fetchPolygon(ctx, geoid)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: fetch tract %s", geoid)
	}

	s.cache.Set(geoid, poly)
	return poly, nil
}

func (s *Service) fetchPolygon(ctx context.Context, geoid string) (*geom.MultiPolygon, error) {
	q := url.Values{}
	q.Set("where", fmt.Sprintf("GEOID='%s'", geoid))
	q.Set("outFields", "GEOID")
	q.Set("returnGeometry", "true")
	q.Set("outSR", "4326")
	q.Set("f", "geojson")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.queryURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: build request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := eris.Errorf("boundary: tigerweb status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var fc geojson.FeatureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "boundary: decode geojson")
	}
	if len(fc.Features) == 0 {
		zap.L().Info("boundary: no polygon for tract", zap.String("geoid", geoid))
		return nil, nil
	}

	poly := toMultiPolygon(fc.Features[0].Geometry)
	if poly == nil {
		return nil, eris.Errorf("boundary: tract %s geometry is not polygonal", geoid)
	}
	return poly, nil
}

// toMultiPolygon normalizes a decoded geometry to a MultiPolygon.
func toMultiPolygon(g geom.T) *geom.MultiPolygon {
	switch t := g.(type) {
	case *geom.MultiPolygon:
		return t
	case *geom.Polygon:
		mp := geom.NewMultiPolygon(geom.XY)
		if err := mp.Push(t); err != nil {
			return nil
		}
		return mp
	default:
		return nil
	}
}

// Contains reports whether a point falls inside the polygon: within any
// member polygon's exterior ring and outside all of its holes. A nil
// polygon contains nothing.
func Contains(mp *geom.MultiPolygon, lng, lat float64) bool {
	if mp == nil {
		return false
	}
	pt := geom.Coord{lng, lat}
	for i := 0; i < mp.NumPolygons(); i++ {
		poly := mp.Polygon(i)
		if poly.NumLinearRings() == 0 {
			continue
		}
		if !xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(0).FlatCoords()) {
			continue
		}
		inHole := false
		for r := 1; r < poly.NumLinearRings(); r++ {
			if xy.IsPointInRing(poly.Layout(), pt, poly.LinearRing(r).FlatCoords()) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}
