package pipeline

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/scoring"
)

// maxAggregateNotes caps the insight and warning lists on an aggregate.
const maxAggregateNotes = 3

// Weighted pairs an optional metric value with its population weight.
type Weighted struct {
	Value  *float64
	Weight int
}

// WeightedAvg computes a population-weighted mean over the entries whose
// value is known. An entry's weight joins the denominator only when its
// value contributes to the numerator, so unknown values dilute nothing.
// Returns nil when no entry has a known value.
func WeightedAvg(values []Weighted) *float64 {
	var num float64
	var den int
	for _, v := range values {
		if v.Value == nil {
			continue
		}
		num += *v.Value * float64(v.Weight)
		den += v.Weight
	}
	if den == 0 {
		return nil
	}
	avg := num / float64(den)
	return &avg
}

// AggregateGroup rolls a non-empty set of scored tracts sharing a
// neighborhood label into one population-weighted summary. Insights and
// warnings are re-derived from the aggregate metrics through the same
// rule table used per tract, never unioned from member strings. zipFor
// resolves a representative postal area for a member tract and may be
// nil.
func AggregateGroup(tracts []*flip.TractRecord, zipFor func(countyFIPS, tract string) string) flip.NeighborhoodAggregate {
	agg := flip.NeighborhoodAggregate{
		TractsCount: len(tracts),
	}
	if len(tracts) == 0 {
		return agg
	}
	agg.CountyName = tracts[0].CountyName
	agg.Neighborhood = tracts[0].Neighborhood

	var mhv, income, vacancy, dom, gapRatio, score []Weighted
	for _, t := range tracts {
		pop := t.Population()
		agg.TotalPop += pop

		mhv = append(mhv, Weighted{intValue(t.MedianHomeValue), pop})
		income = append(income, Weighted{intValue(t.MedianIncome), pop})
		vacancy = append(vacancy, Weighted{floatValue(t.VacancyPct), pop})
		dom = append(dom, Weighted{intValue(t.DaysOnMarket), pop})
		if t.Score != nil {
			gapRatio = append(gapRatio, Weighted{floatValue(t.Score.GapRatio), pop})
			score = append(score, Weighted{floatValue(t.Score.Score), pop})
		}

		agg.MemberTracts = append(agg.MemberTracts, flip.MemberTract{
			TractID: t.TractID,
			ZipCode: t.ZipCode,
			Score:   t.CompositeScore(),
		})
	}

	agg.MedianHomeValue = round1p(WeightedAvg(mhv))
	agg.MedianIncome = round1p(WeightedAvg(income))
	agg.VacancyPct = round1p(WeightedAvg(vacancy))
	agg.GapRatio = round2p(WeightedAvg(gapRatio))
	if avg := WeightedAvg(score); avg != nil {
		agg.Score = math.Round(*avg*10) / 10
	}
	// A group where no member reports live market data has no velocity
	// figure at all, not zero.
	if avg := WeightedAvg(dom); avg != nil {
		d := int(*avg)
		agg.DaysOnMarket = &d
	}

	agg.Insights, agg.Warnings = aggregateNotes(agg)

	if strings.Contains(agg.Neighborhood, "Subarea") && !anyMemberZip(agg.MemberTracts) {
		agg.LabelHint = labelHint(agg.MemberTracts)
	}
	if !anyMemberZip(agg.MemberTracts) && zipFor != nil {
		agg.ZipGuess, agg.ZipConfidence = guessZip(tracts, zipFor)
	}

	return agg
}

// aggregateNotes re-applies the shared threshold rules over the
// aggregate metrics, capped in rule-evaluation order.
func aggregateNotes(agg flip.NeighborhoodAggregate) (insights, warnings []string) {
	var gapRatio, vacancyPct, incomeRatio float64
	if agg.GapRatio != nil {
		gapRatio = *agg.GapRatio
	}
	if agg.VacancyPct != nil {
		vacancyPct = *agg.VacancyPct
	}
	if agg.MedianHomeValue != nil && *agg.MedianHomeValue > 0 && agg.MedianIncome != nil {
		incomeRatio = *agg.MedianIncome / (*agg.MedianHomeValue / 3.5)
	}

	insights, warnings = scoring.DeriveInsights(gapRatio, vacancyPct, incomeRatio, agg.DaysOnMarket)
	if len(insights) > maxAggregateNotes {
		insights = insights[:maxAggregateNotes]
	}
	if len(warnings) > maxAggregateNotes {
		warnings = warnings[:maxAggregateNotes]
	}
	return insights, warnings
}

// guessZip picks the plurality representative ZIP across members, with
// the share of members agreeing as confidence.
func guessZip(tracts []*flip.TractRecord, zipFor func(countyFIPS, tract string) string) (string, float64) {
	counts := make(map[string]int)
	total := 0
	for _, t := range tracts {
		if z := zipFor(t.County, t.Tract); z != "" {
			counts[z]++
			total++
		}
	}
	if total == 0 {
		return "", 0
	}

	zips := make([]string, 0, len(counts))
	for z := range counts {
		zips = append(zips, z)
	}
	// Deterministic tie-break.
	sort.Strings(zips)

	best := zips[0]
	for _, z := range zips[1:] {
		if counts[z] > counts[best] {
			best = z
		}
	}
	conf := float64(counts[best]) / float64(total)
	return best, math.Round(conf*1000) / 1000
}

// labelHint summarizes a generic subarea label as a tract-id range.
func labelHint(members []flip.MemberTract) string {
	var ids []string
	for _, m := range members {
		if m.TractID != "" {
			ids = append(ids, m.TractID)
		}
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	first, _, _ := strings.Cut(ids[0], ".")
	last, _, _ := strings.Cut(ids[len(ids)-1], ".")
	return fmt.Sprintf("Tracts %sxx–%sxx", first, last)
}

func anyMemberZip(members []flip.MemberTract) bool {
	for _, m := range members {
		if m.ZipCode != "" {
			return true
		}
	}
	return false
}

func intValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}

func floatValue(v float64) *float64 {
	return &v
}

func round1p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*10) / 10
	return &r
}

func round2p(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v*100) / 100
	return &r
}
