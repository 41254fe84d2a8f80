// Package market reads live listing data for a postal area and derives
// the days-on-market velocity signal. All calls are best-effort: the
// client memoizes velocity results permanently (including "no data"),
// snapshots listings for a few hours, and trips a breaker on the first
// rate-limit signal so one request never hammers the upstream.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/flipfinder/internal/cache"
	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/resilience"
)

// Client queries the realty listings API.
type Client struct {
	httpClient *http.Client
	apiKey     string
	apiHost    string
	listURL    string
	pageSize   int

	domCache      *cache.Cache[*int]
	snapshotCache *cache.Cache[[]flip.Listing]
	limiter       *rate.Limiter
	breaker       *resilience.CircuitBreaker
}

// NewClient builds a market client from config.
func NewClient(cfg config.MarketConfig) *Client {
	timeout := 30 * time.Second
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     cfg.APIKey,
		apiHost:    cfg.APIHost,
		listURL:    cfg.ListURL,
		pageSize:   pageSize,
		// Velocity results never expire: a computed median (or a
		// definitive "no data") holds for the process lifetime.
		domCache:      cache.New[*int](0),
		snapshotCache: cache.New[[]flip.Listing](time.Duration(cfg.SnapshotTTLHours) * time.Hour),
		limiter:       rate.NewLimiter(2, 2),
		breaker:       resilience.NewCircuitBreaker(resilience.RateLimitBreakerConfig(time.Minute)),
	}
}

// Enabled reports whether the client is configured with credentials.
func (c *Client) Enabled() bool {
	return c.apiKey != "" && c.apiHost != "" && c.listURL != ""
}

// VelocityCacheStats exposes the permanent velocity memo statistics.
func (c *Client) VelocityCacheStats() cache.Stats {
	return c.domCache.Stats()
}

// MedianDaysOnMarket returns the median DOM over current listings in the
// postal area, or nil when the area reports no usable listings. Both
// outcomes are memoized permanently. A rate-limit signal is returned as a
// RateLimitError so callers stop enriching for the current request.
func (c *Client) MedianDaysOnMarket(ctx context.Context, zip string) (*int, error) {
	if zip == "" || !c.Enabled() {
		return nil, nil
	}

	if dom, ok := c.domCache.Get(zip); ok {
		return dom, nil
	}

	listings, err := c.Listings(ctx, zip)
	if err != nil {
		if IsNoListings(err) {
			c.domCache.Set(zip, nil)
			return nil, nil
		}
		return nil, err
	}

	dom := medianDOM(listings)
	c.domCache.Set(zip, dom)
	return dom, nil
}

// Listings returns the normalized current listings for a postal area,
// serving from the snapshot cache within its TTL.
func (c *Client) Listings(ctx context.Context, zip string) ([]flip.Listing, error) {
	if snapshot, ok := c.snapshotCache.Get(zip); ok {
		return snapshot, nil
	}

	listings, err := resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]flip.Listing, error) {
		return c.fetchListings(ctx, zip)
	})
	if err != nil {
		return nil, err
	}

	c.snapshotCache.Set(zip, listings)
	return listings, nil
}

// errNoListings marks a definitive empty answer from the upstream.
var errNoListings = eris.New("market: no listings for postal area")

// IsNoListings reports whether an error marks a definitive "no listings"
// answer, which callers should render as an empty result rather than a
// failure.
func IsNoListings(err error) bool {
	return errors.Is(err, errNoListings)
}

// fetchListings performs one POST query and normalizes the nested
// response into flat listing records.
func (c *Client) fetchListings(ctx context.Context, zip string) ([]flip.Listing, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "market: rate limiter wait")
	}

	payload := map[string]any{
		"limit":       c.pageSize,
		"offset":      0,
		"postal_code": zip,
		"status":      []string{"for_sale", "under_contract"},
		"sort": map[string]string{
			"direction": "desc",
			"field":     "list_date",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "market: encode query")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.listURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "market: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", c.apiHost)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(err, 0)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNoListings
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.NewRateLimitError(eris.Errorf("market: http 429 for zip %s", zip))
	case resp.StatusCode >= 500:
		return nil, resilience.NewTransientError(
			eris.Errorf("market: http %d for zip %s", resp.StatusCode, zip),
			resp.StatusCode,
		)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("market: http %d for zip %s", resp.StatusCode, zip)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "market: read body"), 0)
	}

	var envelope listEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, eris.Wrap(err, "market: decode response")
	}

	results := envelope.Data.HomeSearch.Results
	listings := make([]flip.Listing, 0, len(results))
	for _, r := range results {
		listings = append(listings, r.normalize())
	}

	zap.L().Debug("market: fetched listings",
		zap.String("zip", zip),
		zap.Int("count", len(listings)),
	)
	return listings, nil
}

// medianDOM returns the median of the known, non-negative days-on-market
// figures, or nil when no listing reports one.
func medianDOM(listings []flip.Listing) *int {
	var days []int
	for _, l := range listings {
		if l.DaysOnMarket != nil && *l.DaysOnMarket >= 0 {
			days = append(days, *l.DaysOnMarket)
		}
	}
	if len(days) == 0 {
		return nil
	}
	sort.Ints(days)
	m := days[len(days)/2]
	return &m
}

// listEnvelope mirrors the nested upstream response shape.
type listEnvelope struct {
	Data struct {
		HomeSearch struct {
			Results []listingResult `json:"results"`
		} `json:"home_search"`
	} `json:"data"`
}

// listingResult is one raw property record. The days-on-market figure
// appears under several names depending on the listing's age and source.
type listingResult struct {
	PropertyID       string `json:"property_id"`
	Status           string `json:"status"`
	ListPrice        *int   `json:"list_price"`
	Href             string `json:"href"`
	DaysOnMarket     *int   `json:"days_on_market"`
	ListDaysOnMarket *int   `json:"list_days_on_market"`
	DOM              *int   `json:"dom"`

	Description struct {
		Beds  *int     `json:"beds"`
		Baths *float64 `json:"baths"`
		Sqft  *int     `json:"sqft"`
	} `json:"description"`

	Location struct {
		Address struct {
			Line       string `json:"line"`
			City       string `json:"city"`
			StateCode  string `json:"state_code"`
			PostalCode string `json:"postal_code"`
			Coordinate *struct {
				Lat *float64 `json:"lat"`
				Lon *float64 `json:"lon"`
			} `json:"coordinate"`
		} `json:"address"`
	} `json:"location"`
}

func (r listingResult) normalize() flip.Listing {
	l := flip.Listing{
		PropertyID:   r.PropertyID,
		Status:       r.Status,
		ListPrice:    r.ListPrice,
		Street:       r.Location.Address.Line,
		City:         r.Location.Address.City,
		StateCode:    r.Location.Address.StateCode,
		PostalCode:   r.Location.Address.PostalCode,
		Beds:         r.Description.Beds,
		Baths:        r.Description.Baths,
		Sqft:         r.Description.Sqft,
		DaysOnMarket: firstInt(r.DaysOnMarket, r.ListDaysOnMarket, r.DOM),
		URL:          r.Href,
	}
	if coord := r.Location.Address.Coordinate; coord != nil {
		l.Latitude = coord.Lat
		l.Longitude = coord.Lon
	}
	return l
}

func firstInt(candidates ...*int) *int {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
