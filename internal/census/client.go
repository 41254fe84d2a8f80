// Package census fetches ACS tract-level demographic data, shielding the
// pipeline from upstream instability with a TTL cache, bounded retries
// with growing per-attempt timeouts, and single-flight deduplication.
package census

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/sells-group/flipfinder/internal/cache"
	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/lookup"
	"github.com/sells-group/flipfinder/internal/resilience"
)

// acsVariables are the ACS 5-year estimate columns the pipeline consumes,
// in request order.
var acsVariables = []string{
	"B01003_001E", // total population
	"B25001_001E", // housing units
	"B25002_003E", // vacant units
	"B25077_001E", // median home value
	"B19013_001E", // median household income
	"B25064_001E", // median gross rent
}

// Client reads tract demographics for one region at a time.
type Client struct {
	httpClient *http.Client
	baseURL    string
	year       string
	apiKey     string

	cache   *cache.Cache[[]flip.TractRecord]
	retry   resilience.RetryConfig
	limiter *rate.Limiter
	group   singleflight.Group
	tables  *lookup.Tables
}

// NewClient builds a census client from config. The regions cache keeps
// results for the configured TTL (24h by default) across requests.
func NewClient(cfg config.CensusConfig, tables *lookup.Tables) *Client {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.BackoffBaseSecs > 0 {
		retry.InitialBackoff = time.Duration(cfg.BackoffBaseSecs) * time.Second
	}
	if cfg.AttemptTimeoutSecs > 0 {
		retry.AttemptTimeout = time.Duration(cfg.AttemptTimeoutSecs) * time.Second
	}
	retry.OnRetry = resilience.RetryLogger("census", "fetch_region")

	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		year:       cfg.Year,
		apiKey:     cfg.APIKey,
		cache:      cache.New[[]flip.TractRecord](time.Duration(cfg.CacheTTLHours) * time.Hour),
		retry:      retry,
		limiter:    rate.NewLimiter(5, 5),
		tables:     tables,
	}
}

// CacheStats exposes the region cache statistics.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// FetchRegion returns the scored-ready tract records for one region.
// A cache hit returns immediately. A definitive empty upstream response
// yields (nil, nil) — absence, not an error — and is cached so the next
// request does not repeat the call. Only exhausted transient retries
// surface an error; the caller logs it and continues with other regions.
func (c *Client) FetchRegion(ctx context.Context, region flip.Region) ([]flip.TractRecord, error) {
	if cached, ok := c.cache.Get(region.Key()); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(region.Key(), func() (any, error) {
		// Re-check under the flight lock: a concurrent caller may have
		// just populated the cache.
		if cached, ok := c.cache.Get(region.Key()); ok {
			return cached, nil
		}

		matrix, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([][]string, error) {
			return c.fetchMatrix(ctx, region)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "census: fetch %s county", region.CountyName)
		}

		records := c.buildRecords(region, matrix)
		if len(records) == 0 {
			zap.L().Info("census: region has no data rows",
				zap.String("county", region.CountyName),
			)
		}
		c.cache.Set(region.Key(), records)
		return records, nil
	})
	if err != nil {
		return nil, err
	}
	records, _ := v.([]flip.TractRecord)
	return records, nil
}

// fetchMatrix performs one network read. It returns nil for a definitive
// absence (404 or a response with no data rows) and a transient error for
// anything worth retrying.
func (c *Client) fetchMatrix(ctx context.Context, region flip.Region) ([][]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "census: rate limiter wait")
	}

	q := url.Values{}
	q.Set("get", strings.Join(acsVariables, ","))
	q.Set("for", "tract:*")
	q.Set("in", "state:"+region.StateFIPS+" county:"+region.CountyFIPS)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	reqURL := c.baseURL + "/" + c.year + "/acs/acs5?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "census: create request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures are all retryable here.
		return nil, resilience.NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// The source publishes nothing for this region. Definitive.
		return nil, nil
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(
			eris.Errorf("census: http %d for %s county", resp.StatusCode, region.CountyName),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("census: http %d for %s county", resp.StatusCode, region.CountyName)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "census: read body"), 0)
	}

	var matrix [][]string
	if err := json.Unmarshal(body, &matrix); err != nil {
		return nil, eris.Wrap(err, "census: decode response")
	}

	// Header row only (or nothing at all): no data, and retrying a
	// well-formed empty response would not change the answer.
	if len(matrix) < 2 {
		return nil, nil
	}
	return matrix, nil
}

// buildRecords converts the header-aligned string matrix into typed tract
// records, normalizing ACS missing-value sentinels exactly once.
func (c *Client) buildRecords(region flip.Region, matrix [][]string) []flip.TractRecord {
	if len(matrix) < 2 {
		return nil
	}

	col := make(map[string]int, len(matrix[0]))
	for i, name := range matrix[0] {
		col[name] = i
	}
	cell := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	records := make([]flip.TractRecord, 0, len(matrix)-1)
	for _, row := range matrix[1:] {
		tract := cell(row, "tract")
		housingUnits := flip.ParseACSInt(cell(row, "B25001_001E"))
		vacant := flip.ParseACSInt(cell(row, "B25002_003E"))

		rec := flip.TractRecord{
			State:           cell(row, "state"),
			County:          cell(row, "county"),
			CountyName:      region.CountyName,
			Tract:           tract,
			TractID:         flip.TractIDHuman(tract),
			Neighborhood:    c.tables.NeighborhoodLabel(region.CountyName, tract),
			TotalPop:        flip.ParseACSInt(cell(row, "B01003_001E")),
			HousingUnits:    housingUnits,
			HousingVacant:   vacant,
			MedianHomeValue: flip.ParseACSInt(cell(row, "B25077_001E")),
			MedianIncome:    flip.ParseACSInt(cell(row, "B19013_001E")),
			MedianGrossRent: flip.ParseACSInt(cell(row, "B25064_001E")),
			VacancyPct:      flip.VacancyPercent(housingUnits, vacant),
		}
		records = append(records, rec)
	}
	return records
}
