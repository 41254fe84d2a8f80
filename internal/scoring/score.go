// Package scoring maps one tract's raw attributes and a price band into
// a flip-potential score breakdown. Scoring is pure and total: any input
// produces a breakdown, with missing attributes scoring neutral or zero.
package scoring

import (
	"math"

	"github.com/sells-group/flipfinder/internal/config"
	"github.com/sells-group/flipfinder/internal/flip"
)

// Gap score shape: zero below the entry ratio, a triangular peak at the
// ideal ratio inside [entry, exit], then linear decay past the exit.
const (
	gapEntryRatio = 1.1
	gapExitRatio  = 1.6
	gapIdealRatio = 1.35
	gapPeakWidth  = 0.25
	gapTailSlope  = 0.5
)

// Vacancy plateau: the healthy-turnover band.
const (
	vacancyBandLow  = 8.0
	vacancyBandHigh = 15.0
	vacancyFalloff  = 15.0
)

// Income: ideal buyer income is home value / affordability multiple.
const (
	affordabilityMultiple = 3.5
	incomePlateauLow      = 0.8
	incomePlateauHigh     = 1.2
)

// Bonuses are the optional post-composite adjustments for a tract's
// neighborhood context. Nil rating / false retail mean no adjustment.
type Bonuses struct {
	SchoolRating *float64
	RecentRetail bool
}

// Score computes the full breakdown for one tract against a price band.
// It never mutates the tract.
func Score(t *flip.TractRecord, priceMin, priceMax int, w config.ScoreWeights, b Bonuses) *flip.ScoreBreakdown {
	_ = priceMin // the band minimum shapes candidate selection, not the score

	mhv := 0
	if t.MedianHomeValue != nil {
		mhv = *t.MedianHomeValue
	}
	income := 0
	if t.MedianIncome != nil {
		income = *t.MedianIncome
	}

	gapRatio, gapScore := gap(mhv, priceMax)
	vacScore := vacancy(t.VacancyPct)
	incomeRatio, incScore := incomeFit(mhv, income)
	velScore := velocity(t.DaysOnMarket)

	totalWeight := w.Gap + w.Vacancy + w.Income + w.Velocity
	var composite float64
	if totalWeight == 0 {
		// Degenerate config: fall back to the gap signal alone.
		composite = gapScore
	} else {
		composite = (w.Gap*gapScore + w.Vacancy*vacScore + w.Income*incScore + w.Velocity*velScore) / totalWeight
	}

	bonus := bonusPoints(b)
	score := clamp(round1(composite*100)+bonus, 0, 100)

	insights, warnings := DeriveInsights(gapRatio, t.VacancyPct, incomeRatio, t.DaysOnMarket)

	return &flip.ScoreBreakdown{
		Score:         score,
		GapRatio:      round2(gapRatio),
		GapScore:      round1(gapScore * 100),
		VacancyScore:  round1(vacScore * 100),
		IncomeScore:   round1(incScore * 100),
		VelocityScore: round1(velScore * 100),
		Bonus:         bonus,
		Insights:      insights,
		Warnings:      warnings,
	}
}

// gap returns the value-to-budget ratio and its [0,1] score.
func gap(medianHomeValue, priceMax int) (ratio, score float64) {
	if medianHomeValue <= 0 || priceMax <= 0 {
		return 0, 0
	}
	ratio = float64(medianHomeValue) / float64(priceMax)

	switch {
	case ratio < gapEntryRatio:
		score = 0
	case ratio <= gapExitRatio:
		score = clamp01(1.0 - math.Abs(ratio-gapIdealRatio)/gapPeakWidth)
	default:
		score = clamp01(1.0 - (ratio-gapExitRatio)*gapTailSlope)
	}
	return ratio, score
}

// vacancy scores 1.0 inside the healthy band, decaying with distance to
// the nearer edge.
func vacancy(pct float64) float64 {
	if pct >= vacancyBandLow && pct <= vacancyBandHigh {
		return 1.0
	}
	distance := math.Min(math.Abs(pct-vacancyBandLow), math.Abs(pct-vacancyBandHigh))
	return clamp01(1.0 - distance/vacancyFalloff)
}

// incomeFit returns the actual-to-ideal income ratio and its score:
// a plateau around 1.0 with symmetric linear falloff.
func incomeFit(medianHomeValue, medianIncome int) (ratio, score float64) {
	if medianHomeValue <= 0 {
		return 0, 0
	}
	ideal := float64(medianHomeValue) / affordabilityMultiple
	ratio = float64(medianIncome) / ideal

	switch {
	case ratio >= incomePlateauLow && ratio <= incomePlateauHigh:
		score = 1.0
	case ratio < incomePlateauLow:
		score = clamp01(ratio)
	default:
		score = clamp01(2.0 - ratio)
	}
	return ratio, score
}

// velocity maps days-on-market bands to a score; unknown DOM is neutral,
// never a penalty.
func velocity(dom *int) float64 {
	if dom == nil || *dom <= 0 {
		return 0.5
	}
	switch d := *dom; {
	case d < 30:
		return 1.0
	case d <= 60:
		return 0.7
	case d <= 90:
		return 0.4
	default:
		return 0.2
	}
}

// bonusPoints converts neighborhood context into a net score adjustment.
// School tiers: ≥8 large, ≥7 medium, ≥6 small bonus; ≤5 penalty.
func bonusPoints(b Bonuses) float64 {
	var pts float64
	if b.SchoolRating != nil {
		switch r := *b.SchoolRating; {
		case r >= 8:
			pts += 6
		case r >= 7:
			pts += 4
		case r >= 6:
			pts += 2
		case r <= 5:
			pts -= 3
		}
	}
	if b.RecentRetail {
		pts += 3
	}
	return pts
}

func clamp01(x float64) float64 {
	return clamp(x, 0, 1)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
