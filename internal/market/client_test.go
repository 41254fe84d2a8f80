package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/resilience"
)

func intp(v int) *int { return &v }

func newTestClient(url string) *Client {
	return NewClient(config.MarketConfig{
		APIKey:           "test-key",
		APIHost:          "test-host",
		ListURL:          url,
		SnapshotTTLHours: 6,
		PageSize:         25,
	})
}

func resultsBody(doms ...map[string]any) string {
	results := make([]map[string]any, 0, len(doms))
	for i, extra := range doms {
		r := map[string]any{
			"property_id": fmt.Sprintf("P%d", i),
			"status":      "for_sale",
			"list_price":  150000 + i,
			"location": map[string]any{
				"address": map[string]any{
					"line":        "123 Main St",
					"city":        "Indianapolis",
					"state_code":  "IN",
					"postal_code": "46219",
					"coordinate":  map[string]any{"lat": 39.78, "lon": -86.10},
				},
			},
			"description": map[string]any{"beds": 3, "baths": 1.5, "sqft": 1100},
		}
		for k, v := range extra {
			r[k] = v
		}
		results = append(results, r)
	}
	body, _ := json.Marshal(map[string]any{
		"data": map[string]any{"home_search": map[string]any{"results": results}},
	})
	return string(body)
}

func TestMedianDaysOnMarket_MedianOfKnownValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "46219", payload["postal_code"])

		fmt.Fprint(w, resultsBody(
			map[string]any{"days_on_market": 10},
			map[string]any{"list_days_on_market": 40}, // alternate field name
			map[string]any{"dom": 90},                 // another alternate
			map[string]any{},                          // no DOM at all
		))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	dom, err := c.MedianDaysOnMarket(context.Background(), "46219")
	require.NoError(t, err)
	require.NotNil(t, dom)
	// sorted [10 40 90], middle element
	assert.Equal(t, 40, *dom)
}

func TestMedianDaysOnMarket_PermanentMemo(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, resultsBody(map[string]any{"days_on_market": 33}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 3; i++ {
		dom, err := c.MedianDaysOnMarket(context.Background(), "46219")
		require.NoError(t, err)
		require.NotNil(t, dom)
		assert.Equal(t, 33, *dom)
	}
	assert.Equal(t, int64(1), calls.Load())
}

func TestMedianDaysOnMarket_NoUsableListingsMemoizedNil(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, resultsBody(map[string]any{})) // listings without DOM
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	dom, err := c.MedianDaysOnMarket(context.Background(), "46219")
	require.NoError(t, err)
	assert.Nil(t, dom)

	// The "no data" answer is memoized; the snapshot cache would also
	// serve, but even after it expires the memo short-circuits.
	dom, err = c.MedianDaysOnMarket(context.Background(), "46219")
	require.NoError(t, err)
	assert.Nil(t, dom)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMedianDaysOnMarket_404MemoizedNil(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	dom, err := c.MedianDaysOnMarket(context.Background(), "46219")
	require.NoError(t, err)
	assert.Nil(t, dom)

	_, _ = c.MedianDaysOnMarket(context.Background(), "46219")
	assert.Equal(t, int64(1), calls.Load())
}

func TestMedianDaysOnMarket_429TripsBreaker(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.MedianDaysOnMarket(context.Background(), "46219")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))

	// Further lookups are rejected by the breaker without a network call.
	_, err = c.MedianDaysOnMarket(context.Background(), "46016")
	require.Error(t, err)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMedianDaysOnMarket_UnconfiguredIsAbsent(t *testing.T) {
	c := NewClient(config.MarketConfig{})
	assert.False(t, c.Enabled())

	dom, err := c.MedianDaysOnMarket(context.Background(), "46219")
	require.NoError(t, err)
	assert.Nil(t, dom)
}

func TestMedianDaysOnMarket_EmptyZip(t *testing.T) {
	c := newTestClient("http://unused")
	dom, err := c.MedianDaysOnMarket(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, dom)
}

func TestListings_NormalizedSnapshot(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, resultsBody(map[string]any{"days_on_market": 18}))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	listings, err := c.Listings(context.Background(), "46219")
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.Equal(t, "P0", l.PropertyID)
	assert.Equal(t, "123 Main St", l.Street)
	assert.Equal(t, "46219", l.PostalCode)
	require.NotNil(t, l.ListPrice)
	assert.Equal(t, 150000, *l.ListPrice)
	require.NotNil(t, l.DaysOnMarket)
	assert.Equal(t, 18, *l.DaysOnMarket)
	require.NotNil(t, l.Latitude)
	assert.InDelta(t, 39.78, *l.Latitude, 0.001)

	// Snapshot cache serves the repeat.
	_, err = c.Listings(context.Background(), "46219")
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestMedianDOM_IgnoresNegative(t *testing.T) {
	neg := -4
	listings := []flip.Listing{
		{DaysOnMarket: &neg},
		{DaysOnMarket: intp(12)},
	}
	dom := medianDOM(listings)
	require.NotNil(t, dom)
	assert.Equal(t, 12, *dom)
}

func TestMedianDOM_EmptyIsNil(t *testing.T) {
	assert.Nil(t, medianDOM(nil))
	assert.Nil(t, medianDOM([]flip.Listing{{}}))
}
