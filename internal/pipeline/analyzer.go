package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/lookup"
	"github.com/sells-group/flipfinder/internal/resilience"
	"github.com/sells-group/flipfinder/internal/scoring"
)

// DemographicSource supplies tract demographics for a region.
type DemographicSource interface {
	FetchRegion(ctx context.Context, region flip.Region) ([]flip.TractRecord, error)
}

// VelocitySource supplies market velocity by postal area. Enabled
// reports whether the source is configured at all.
type VelocitySource interface {
	Enabled() bool
	MedianDaysOnMarket(ctx context.Context, zip string) (*int, error)
}

// Request is one analysis run's parameters. Zero values fall back to
// configured defaults during normalization.
type Request struct {
	PriceMin            int     `json:"price_min"`
	PriceMax            int     `json:"price_max"`
	MinScore            float64 `json:"min_score"`
	TopN                int     `json:"top_n"`
	GroupByNeighborhood bool    `json:"group_by_neighborhood"`
	IncludeMarketData   bool    `json:"include_market_data"`
	MaxMarketLookups    int     `json:"max_market_lookups"`
}

// PriceBand is the effective acquisition budget band of a run.
type PriceBand struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Summary carries headline statistics for a run.
type Summary struct {
	TopScore             float64 `json:"top_score"`
	AvgScore             float64 `json:"avg_score"`
	TotalMeetingCriteria int     `json:"total_meeting_criteria"`
}

// Result is the full outcome of one analysis run. Exactly one of
// Opportunities or Neighborhoods is populated, per the grouping flag.
type Result struct {
	AnalysisID          string `json:"analysis_id"`
	Status              string `json:"status"`
	TotalTractsAnalyzed int    `json:"total_tracts_analyzed"`

	Opportunities []*flip.TractRecord          `json:"opportunities,omitempty"`
	Neighborhoods []flip.NeighborhoodAggregate `json:"neighborhoods,omitempty"`

	GroupedByNeighborhood bool      `json:"grouped_by_neighborhood"`
	Summary               Summary   `json:"summary"`
	MarketDataEnabled     bool      `json:"market_data_enabled"`
	PriceBand             PriceBand `json:"price_band"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Analyzer runs the fetch, score, enrich, rank cycle over the
// configured region set.
type Analyzer struct {
	census DemographicSource
	market VelocitySource
	tables *lookup.Tables
	cfg    *config.Config

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration)
}

// NewAnalyzer wires an analyzer over the given data sources.
func NewAnalyzer(census DemographicSource, market VelocitySource, tables *lookup.Tables, cfg *config.Config) *Analyzer {
	return &Analyzer{
		census: census,
		market: market,
		tables: tables,
		cfg:    cfg,
		sleep:  sleepCtx,
	}
}

// Run executes one analysis. Per-region fetch failures degrade to
// entries in Result.Errors; Run itself fails only on invalid input.
func (a *Analyzer) Run(ctx context.Context, req Request) (*Result, error) {
	req = a.normalize(req)
	log := zap.L().With(zap.String("analysis", "flip"))

	res := &Result{
		AnalysisID:            uuid.NewString(),
		Status:                "success",
		GroupedByNeighborhood: req.GroupByNeighborhood,
		PriceBand:             PriceBand{Min: req.PriceMin, Max: req.PriceMax},
	}

	var scored []*flip.TractRecord
	for _, region := range a.tables.Counties() {
		records, err := a.census.FetchRegion(ctx, region)
		if err != nil {
			log.Warn("region fetch failed",
				zap.String("county", region.CountyName),
				zap.Error(err))
			res.Errors = append(res.Errors, fmt.Sprintf("Error fetching %s County: %v", region.CountyName, err))
			continue
		}
		for i := range records {
			t := &records[i]
			t.Score = scoring.Score(t, req.PriceMin, req.PriceMax, a.cfg.Score.Weights, a.bonuses(t))
			scored = append(scored, t)
		}
	}
	res.TotalTractsAnalyzed = len(scored)

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].CompositeScore() > scored[j].CompositeScore()
	})

	var qualifying []*flip.TractRecord
	for _, t := range scored {
		if t.CompositeScore() >= req.MinScore {
			qualifying = append(qualifying, t)
		}
	}

	res.MarketDataEnabled = a.enrich(ctx, req, qualifying, res)

	if req.GroupByNeighborhood {
		aggs := a.group(qualifying)
		res.Summary = neighborhoodSummary(aggs)
		if req.TopN > 0 && len(aggs) > req.TopN {
			aggs = aggs[:req.TopN]
		}
		res.Neighborhoods = aggs
	} else {
		res.Summary = tractSummary(qualifying)
		if req.TopN > 0 && len(qualifying) > req.TopN {
			qualifying = qualifying[:req.TopN]
		}
		res.Opportunities = qualifying
	}

	log.Info("analysis complete",
		zap.String("analysis_id", res.AnalysisID),
		zap.Int("tracts", res.TotalTractsAnalyzed),
		zap.Int("qualifying", res.Summary.TotalMeetingCriteria),
		zap.Bool("market_data", res.MarketDataEnabled))

	return res, nil
}

// normalize applies configured defaults and repairs degenerate inputs.
func (a *Analyzer) normalize(req Request) Request {
	if req.PriceMin == 0 && req.PriceMax == 0 {
		req.PriceMin = a.cfg.Analyze.PriceMin
		req.PriceMax = a.cfg.Analyze.PriceMax
	}
	// An inverted band is treated as a transposition, not an error.
	if req.PriceMin > req.PriceMax {
		req.PriceMin, req.PriceMax = req.PriceMax, req.PriceMin
	}
	if req.MaxMarketLookups <= 0 {
		req.MaxMarketLookups = a.cfg.Analyze.MaxMarketLookups
	}
	if limit := a.cfg.Analyze.MaxMarketLookupsCap; limit > 0 && req.MaxMarketLookups > limit {
		req.MaxMarketLookups = limit
	}
	return req
}

func (a *Analyzer) bonuses(t *flip.TractRecord) scoring.Bonuses {
	var b scoring.Bonuses
	if a.cfg.Score.SchoolBonuses {
		if zip := a.tables.ZipForTract(t.County, t.Tract); zip != "" {
			b.SchoolRating = a.tables.SchoolRating(zip)
		}
	}
	if a.cfg.Score.RetailBonus {
		b.RecentRetail = a.tables.HasRecentRetail(t.Neighborhood)
	}
	return b
}

// enrich overlays live market velocity onto the top qualifying tracts,
// re-scoring each enriched entry so its insight text reflects the new
// figure. Returns whether market data was effectively in play.
func (a *Analyzer) enrich(ctx context.Context, req Request, qualifying []*flip.TractRecord, res *Result) bool {
	if !req.IncludeMarketData || !a.market.Enabled() {
		return false
	}
	if th := a.cfg.Analyze.MarketDisableThreshold; th > 0 && len(qualifying) > th {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("market data disabled: %d qualifying tracts exceed the %d lookup threshold", len(qualifying), th))
		return false
	}

	log := zap.L()
	delay := time.Duration(a.cfg.Market.LookupDelayMs) * time.Millisecond
	looked := 0
	for _, t := range qualifying {
		if looked >= req.MaxMarketLookups {
			break
		}
		zip := a.tables.ZipForTract(t.County, t.Tract)
		if zip == "" {
			continue
		}
		if looked > 0 {
			a.sleep(ctx, delay)
		}
		dom, err := a.market.MedianDaysOnMarket(ctx, zip)
		looked++
		if err != nil {
			if resilience.IsRateLimited(err) || errors.Is(err, resilience.ErrCircuitOpen) {
				res.Warnings = append(res.Warnings, "market data rate limited; remaining tracts scored without velocity")
				break
			}
			log.Warn("market lookup failed", zap.String("zip", zip), zap.Error(err))
			continue
		}
		if dom == nil {
			continue
		}
		t.ZipCode = zip
		t.DaysOnMarket = dom
		t.Score = scoring.Score(t, req.PriceMin, req.PriceMax, a.cfg.Score.Weights, a.bonuses(t))
	}
	return true
}

// group buckets qualifying tracts by (county, neighborhood) in first-seen
// order, aggregates each bucket, and re-ranks by aggregate score.
func (a *Analyzer) group(qualifying []*flip.TractRecord) []flip.NeighborhoodAggregate {
	index := make(map[string]int)
	var buckets [][]*flip.TractRecord
	for _, t := range qualifying {
		key := t.CountyName + "|" + t.Neighborhood
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], t)
	}

	aggs := make([]flip.NeighborhoodAggregate, 0, len(buckets))
	for _, members := range buckets {
		aggs = append(aggs, AggregateGroup(members, a.tables.ZipForTract))
	}
	sort.SliceStable(aggs, func(i, j int) bool {
		return aggs[i].Score > aggs[j].Score
	})
	return aggs
}

func tractSummary(qualifying []*flip.TractRecord) Summary {
	s := Summary{TotalMeetingCriteria: len(qualifying)}
	if len(qualifying) == 0 {
		return s
	}
	var sum float64
	for _, t := range qualifying {
		sum += t.CompositeScore()
	}
	s.TopScore = qualifying[0].CompositeScore()
	s.AvgScore = math.Round(sum/float64(len(qualifying))*10) / 10
	return s
}

func neighborhoodSummary(aggs []flip.NeighborhoodAggregate) Summary {
	s := Summary{TotalMeetingCriteria: len(aggs)}
	if len(aggs) == 0 {
		return s
	}
	var sum float64
	for _, g := range aggs {
		sum += g.Score
	}
	s.TopScore = aggs[0].Score
	s.AvgScore = math.Round(sum/float64(len(aggs))*10) / 10
	return s
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
