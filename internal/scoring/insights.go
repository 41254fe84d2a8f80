package scoring

import "fmt"

// Income-ratio rule thresholds, expressed against the ideal income
// (home value / affordability multiple). The warning fires when buyer
// income falls below what a 4.5x multiple would require.
const (
	incomeStrongRatio = 1.0
	incomeWeakRatio   = affordabilityMultiple / 4.5
)

// DeriveInsights applies the fixed, ordered threshold rules over the four
// core metrics and returns the narrative insight and warning strings.
// It is the single source of insight text for both per-tract scoring and
// neighborhood aggregation, so the two can never drift. Rules are
// independent; the lists are not deduplicated or capped here.
func DeriveInsights(gapRatio, vacancyPct, incomeRatio float64, daysOnMarket *int) (insights, warnings []string) {
	switch {
	case gapRatio >= 1.3 && gapRatio <= 1.4:
		insights = append(insights, "Perfect buy-sell gap for profitable flips")
	case gapRatio > 0 && gapRatio < 1.1:
		warnings = append(warnings, "Limited profit potential - median too close to budget")
	case gapRatio > 1.7:
		warnings = append(warnings, "Median significantly above budget - verify distressed inventory exists")
	}

	switch {
	case vacancyPct >= 10 && vacancyPct <= 13:
		insights = append(insights, "Healthy inventory levels")
	case vacancyPct > 0 && vacancyPct < 5:
		warnings = append(warnings, "Very low vacancy - limited deal flow")
	case vacancyPct > 20:
		warnings = append(warnings, "High vacancy may indicate declining area")
	}

	if incomeRatio >= incomeStrongRatio {
		insights = append(insights, "Strong buyer income for resale")
	} else if incomeRatio > 0 && incomeRatio < incomeWeakRatio {
		warnings = append(warnings, "Buyer income may limit resale market")
	}

	if daysOnMarket != nil {
		if d := *daysOnMarket; d > 0 && d < 40 {
			insights = append(insights, fmt.Sprintf("Fast-moving market (%d days)", d))
		} else if d > 90 {
			warnings = append(warnings, fmt.Sprintf("Slower market (%d days to sell)", d))
		}
	}

	return insights, warnings
}
