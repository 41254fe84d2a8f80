// Package flip holds the typed domain model for the flip-potential
// analysis pipeline: regions, tract records, score breakdowns,
// neighborhood aggregates, and normalized market listings.
package flip

// Region identifies one upstream demographic query unit: a state+county
// FIPS pair. Regions are immutable and come from static configuration.
type Region struct {
	StateFIPS  string `json:"state_fips"`
	CountyFIPS string `json:"county_fips"`
	CountyName string `json:"county_name"`
}

// Key returns the cache key for the region.
func (r Region) Key() string {
	return r.StateFIPS + ":" + r.CountyFIPS
}
