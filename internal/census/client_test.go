package census

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/lookup"
)

var marion = flip.Region{StateFIPS: "18", CountyFIPS: "097", CountyName: "Marion"}

func acsMatrix() [][]string {
	return [][]string{
		{"B01003_001E", "B25001_001E", "B25002_003E", "B25077_001E", "B19013_001E", "B25064_001E", "state", "county", "tract"},
		{"4200", "1000", "115", "260000", "61000", "950", "18", "097", "350102"},
		{"1800", "600", "30", "-666666666", "48000", "800", "18", "097", "090100"},
	}
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	tables, err := lookup.Load()
	require.NoError(t, err)

	c := NewClient(config.CensusConfig{
		BaseURL:       baseURL,
		Year:          "2023",
		CacheTTLHours: 24,
		MaxAttempts:   3,
	}, tables)
	// Keep retries fast in tests.
	c.retry.InitialBackoff = time.Millisecond
	c.retry.MaxBackoff = 5 * time.Millisecond
	return c
}

func TestFetchRegion_BuildsTypedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tract:*", r.URL.Query().Get("for"))
		assert.Equal(t, "state:18 county:097", r.URL.Query().Get("in"))
		json.NewEncoder(w).Encode(acsMatrix())
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "3501.02", first.TractID)
	assert.Equal(t, "Marion", first.CountyName)
	assert.Equal(t, "Indianapolis – Near Eastside/Downtown", first.Neighborhood)
	require.NotNil(t, first.MedianHomeValue)
	assert.Equal(t, 260000, *first.MedianHomeValue)
	assert.InDelta(t, 11.5, first.VacancyPct, 0.001)

	// ACS sentinel became absent, not a negative quantity.
	assert.Nil(t, records[1].MedianHomeValue)
}

func TestFetchRegion_CachesWithinTTL(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(acsMatrix())
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)
	_, err = c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
}

func TestFetchRegion_RetriesThrough503(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(acsMatrix())
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int64(3), calls.Load())
}

func TestFetchRegion_ExhaustedRetriesIsError(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchRegion(context.Background(), marion)
	assert.Error(t, err)
	assert.Equal(t, int64(3), calls.Load())

	// Failures are not cached: the next call tries the network again.
	_, _ = c.FetchRegion(context.Background(), marion)
	assert.Equal(t, int64(6), calls.Load())
}

func TestFetchRegion_HeaderOnlyIsAbsenceNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode([][]string{{"B01003_001E", "state", "county", "tract"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(1), calls.Load())

	// Absence is cached too.
	_, err = c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestFetchRegion_404IsAbsence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	records, err := c.FetchRegion(context.Background(), marion)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchRegion_BadRequestNotRetried(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.FetchRegion(context.Background(), marion)
	assert.Error(t, err)
	assert.Equal(t, int64(1), calls.Load())
}

func TestBuildRecords_ShortRowTolerated(t *testing.T) {
	tables, err := lookup.Load()
	require.NoError(t, err)
	c := NewClient(config.CensusConfig{BaseURL: "http://unused", Year: "2023"}, tables)

	matrix := [][]string{
		{"B01003_001E", "B25077_001E", "state", "county", "tract"},
		{"1200"}, // truncated row: everything else missing
	}
	records := c.buildRecords(marion, matrix)
	require.Len(t, records, 1)
	require.NotNil(t, records[0].TotalPop)
	assert.Equal(t, 1200, *records[0].TotalPop)
	assert.Nil(t, records[0].MedianHomeValue)
	assert.Equal(t, 0.0, records[0].VacancyPct)
}
