package flip

import (
	"fmt"
	"math"
	"strconv"
)

// acsMissingSentinel is the threshold below which ACS numeric values are
// annotation codes (e.g. -666666666 "estimate not available"), not data.
const acsMissingSentinel = -666666

// TractRecord is one census tract's raw demographic attributes plus
// derived fields. Records are created per fetch cycle, never mutated
// after scoring (other than best-effort market enrichment), and owned by
// the request that created them.
type TractRecord struct {
	State      string `json:"state"`
	County     string `json:"county"`
	CountyName string `json:"county_name"`
	Tract      string `json:"tract"`

	// Derived identifiers.
	TractID      string `json:"tract_id"`
	Neighborhood string `json:"neighborhood"`
	ZipCode      string `json:"zip_code,omitempty"`

	// Raw attributes; nil means the source reported no estimate.
	TotalPop        *int `json:"total_pop"`
	HousingUnits    *int `json:"housing_units"`
	HousingVacant   *int `json:"housing_vacant"`
	MedianHomeValue *int `json:"median_home_value"`
	MedianIncome    *int `json:"median_income"`
	MedianGrossRent *int `json:"median_gross_rent"`

	VacancyPct float64 `json:"vacancy_pct"`

	// DaysOnMarket is filled by market enrichment when available.
	DaysOnMarket *int `json:"days_on_market,omitempty"`

	Score *ScoreBreakdown `json:"scoring,omitempty"`
}

// Population returns the tract population, 0 when unknown.
func (t *TractRecord) Population() int {
	if t.TotalPop == nil {
		return 0
	}
	return *t.TotalPop
}

// CompositeScore returns the composite score, 0 when unscored.
func (t *TractRecord) CompositeScore() float64 {
	if t.Score == nil {
		return 0
	}
	return t.Score.Score
}

// ParseACSInt converts one ACS string cell to an optional int. Unparsable
// cells and negative annotation sentinels both map to nil ("missing"),
// never to a literal negative quantity.
func ParseACSInt(s string) *int {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	if f <= acsMissingSentinel {
		return nil
	}
	n := int(f)
	return &n
}

// TractIDHuman formats a 6-digit tract code as the human "0000.00" form.
func TractIDHuman(tract string) string {
	if tract == "" {
		return ""
	}
	for len(tract) < 6 {
		tract = "0" + tract
	}
	return fmt.Sprintf("%s.%s", tract[:4], tract[4:])
}

// VacancyPercent derives the vacancy percentage from unit counts,
// rounded to one decimal. Unknown or zero housing units yield 0.
func VacancyPercent(housingUnits, vacant *int) float64 {
	if housingUnits == nil || vacant == nil || *housingUnits <= 0 {
		return 0
	}
	pct := float64(*vacant) / float64(*housingUnits) * 100.0
	return math.Round(pct*10) / 10
}
