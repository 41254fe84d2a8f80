// Package lookup serves the static tables the pipeline treats as opaque
// data: the analysis-area counties, tract-prefix neighborhood labels,
// representative ZIPs, school ratings, and retail-investment flags. The
// tables are generated offline and embedded at build time.
package lookup

import (
	_ "embed"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/flipfinder/internal/flip"
)

//go:embed tables.yaml
var tablesYAML []byte

type prefixRule struct {
	MaxPrefix int    `yaml:"max_prefix"`
	Label     string `yaml:"label"`
}

type zipRule struct {
	CountyFIPS string `yaml:"county_fips"`
	MaxPrefix  int    `yaml:"max_prefix"`
	Zip        string `yaml:"zip"`
}

type countyEntry struct {
	StateFIPS  string `yaml:"state_fips"`
	CountyFIPS string `yaml:"county_fips"`
	Name       string `yaml:"name"`
}

type tableData struct {
	Counties      []countyEntry           `yaml:"counties"`
	Neighborhoods map[string][]prefixRule `yaml:"neighborhoods"`
	Zips          []zipRule               `yaml:"zips"`
	SchoolRatings map[string]float64      `yaml:"school_ratings"`
	RecentRetail  []string                `yaml:"recent_retail"`
}

// Tables provides lookups over the embedded static data.
type Tables struct {
	counties     []flip.Region
	labels       map[string][]prefixRule
	zips         []zipRule
	schoolByZip  map[string]float64
	retailByName map[string]bool
}

// Load parses the embedded tables.
func Load() (*Tables, error) {
	return parse(tablesYAML)
}

func parse(raw []byte) (*Tables, error) {
	var data tableData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, eris.Wrap(err, "lookup: parse tables")
	}
	if len(data.Counties) == 0 {
		return nil, eris.New("lookup: no counties in tables")
	}

	t := &Tables{
		labels:       data.Neighborhoods,
		zips:         data.Zips,
		schoolByZip:  data.SchoolRatings,
		retailByName: make(map[string]bool, len(data.RecentRetail)),
	}
	for _, c := range data.Counties {
		t.counties = append(t.counties, flip.Region{
			StateFIPS:  c.StateFIPS,
			CountyFIPS: c.CountyFIPS,
			CountyName: c.Name,
		})
	}
	for _, n := range data.RecentRetail {
		t.retailByName[n] = true
	}
	return t, nil
}

// Counties returns the regions of the analysis area.
func (t *Tables) Counties() []flip.Region {
	return t.counties
}

// NeighborhoodLabel assigns a human label to a tract from its county name
// and two-digit tract prefix. Counties without label rules get a generic
// subarea label.
func (t *Tables) NeighborhoodLabel(countyName, tract string) string {
	head := tractPrefix(tract)
	for _, rule := range t.labels[countyName] {
		if head <= rule.MaxPrefix {
			return rule.Label
		}
	}
	return fmt.Sprintf("%s County – Outlying Areas Subarea", countyName)
}

// ZipForTract returns the representative postal area for a tract, or ""
// when the county has no ZIP mapping.
func (t *Tables) ZipForTract(countyFIPS, tract string) string {
	head := tractPrefix(tract)
	for _, rule := range t.zips {
		if rule.CountyFIPS == countyFIPS && head <= rule.MaxPrefix {
			return rule.Zip
		}
	}
	return ""
}

// SchoolRating returns the school-quality rating for a ZIP, nil when
// unknown.
func (t *Tables) SchoolRating(zip string) *float64 {
	r, ok := t.schoolByZip[zip]
	if !ok {
		return nil
	}
	return &r
}

// HasRecentRetail reports whether a neighborhood is flagged for notable
// recent retail investment.
func (t *Tables) HasRecentRetail(neighborhood string) bool {
	return t.retailByName[neighborhood]
}

// tractPrefix extracts the leading two digits of a zero-padded tract code.
func tractPrefix(tract string) int {
	for len(tract) < 6 {
		tract = "0" + tract
	}
	head, err := strconv.Atoi(tract[:2])
	if err != nil {
		return 0
	}
	return head
}
