package flip

// MemberTract is the traceability entry an aggregate keeps for each of
// its member tracts.
type MemberTract struct {
	TractID string  `json:"tract_id"`
	ZipCode string  `json:"zip_code,omitempty"`
	Score   float64 `json:"score"`
}

// NeighborhoodAggregate is the population-weighted roll-up of all scored
// tracts sharing a (county, neighborhood label) key. Numeric metrics are
// weighted means over the member tracts that report them; nil means no
// member had a known value. Insights and warnings are re-derived from
// the aggregate metrics, never unioned from members.
type NeighborhoodAggregate struct {
	CountyName   string `json:"county_name"`
	Neighborhood string `json:"neighborhood"`

	MedianHomeValue *float64 `json:"median_home_value"`
	MedianIncome    *float64 `json:"median_income"`
	VacancyPct      *float64 `json:"vacancy_pct"`
	DaysOnMarket    *int     `json:"days_on_market"`
	GapRatio        *float64 `json:"gap_ratio"`

	Score    float64  `json:"score"`
	Insights []string `json:"insights"`
	Warnings []string `json:"warnings"`

	TotalPop     int           `json:"total_pop"`
	TractsCount  int           `json:"tracts_count"`
	MemberTracts []MemberTract `json:"member_tracts"`

	// LabelHint narrows generic "Subarea" labels to a tract-id range
	// when no member resolved a ZIP.
	LabelHint string `json:"label_hint,omitempty"`

	// ZipGuess is the plurality ZIP across members with its share of
	// the vote, filled only when no member carries a resolved ZIP.
	ZipGuess      string  `json:"zip_guess,omitempty"`
	ZipConfidence float64 `json:"zip_confidence,omitempty"`
}
