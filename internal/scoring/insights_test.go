package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveInsights_PerfectGap(t *testing.T) {
	insights, warnings := DeriveInsights(1.35, 11.0, 1.0, nil)
	assert.Contains(t, insights, "Perfect buy-sell gap for profitable flips")
	assert.Contains(t, insights, "Healthy inventory levels")
	assert.Contains(t, insights, "Strong buyer income for resale")
	assert.Empty(t, warnings)
}

func TestDeriveInsights_TightGapWarning(t *testing.T) {
	_, warnings := DeriveInsights(1.05, 11.0, 1.0, nil)
	assert.Contains(t, warnings, "Limited profit potential - median too close to budget")
}

func TestDeriveInsights_HighGapWarning(t *testing.T) {
	_, warnings := DeriveInsights(1.8, 11.0, 1.0, nil)
	assert.Contains(t, warnings, "Median significantly above budget - verify distressed inventory exists")
}

func TestDeriveInsights_ZeroGapSilent(t *testing.T) {
	// Unknown home value (ratio 0) fires neither the gap insight nor warnings.
	insights, warnings := DeriveInsights(0, 11.0, 1.0, nil)
	assert.NotContains(t, insights, "Perfect buy-sell gap for profitable flips")
	assert.NotContains(t, warnings, "Limited profit potential - median too close to budget")
}

func TestDeriveInsights_VacancyRules(t *testing.T) {
	_, warnings := DeriveInsights(1.35, 3.0, 1.0, nil)
	assert.Contains(t, warnings, "Very low vacancy - limited deal flow")

	_, warnings = DeriveInsights(1.35, 25.0, 1.0, nil)
	assert.Contains(t, warnings, "High vacancy may indicate declining area")

	// Vacancy 0 means missing unit counts, not a hot market: no warning.
	_, warnings = DeriveInsights(1.35, 0, 1.0, nil)
	assert.NotContains(t, warnings, "Very low vacancy - limited deal flow")
}

func TestDeriveInsights_IncomeRules(t *testing.T) {
	insights, warnings := DeriveInsights(1.35, 11.0, 1.1, nil)
	assert.Contains(t, insights, "Strong buyer income for resale")
	assert.Empty(t, warnings)

	// Below the 3.5/4.5 ratio: warning.
	_, warnings = DeriveInsights(1.35, 11.0, 0.7, nil)
	assert.Contains(t, warnings, "Buyer income may limit resale market")

	// In between: neither.
	insights, warnings = DeriveInsights(1.35, 11.0, 0.9, nil)
	assert.NotContains(t, insights, "Strong buyer income for resale")
	assert.NotContains(t, warnings, "Buyer income may limit resale market")
}

func TestDeriveInsights_DomRules(t *testing.T) {
	dom := 25
	insights, _ := DeriveInsights(1.35, 11.0, 1.0, &dom)
	assert.Contains(t, insights, "Fast-moving market (25 days)")

	dom = 120
	_, warnings := DeriveInsights(1.35, 11.0, 1.0, &dom)
	assert.Contains(t, warnings, "Slower market (120 days to sell)")

	dom = 60
	insights, warnings = DeriveInsights(1.35, 11.0, 1.0, &dom)
	for _, s := range append(insights, warnings...) {
		assert.NotContains(t, s, "market (")
	}
}

func TestDeriveInsights_MultipleRulesFire(t *testing.T) {
	dom := 150
	insights, warnings := DeriveInsights(1.8, 25.0, 0.5, &dom)
	assert.Empty(t, insights)
	assert.Len(t, warnings, 4)
}

func TestDeriveInsights_OrderIsStable(t *testing.T) {
	dom := 25
	insights, _ := DeriveInsights(1.35, 11.0, 1.0, &dom)
	// Gap rule first, then vacancy, income, velocity.
	assert.Equal(t, []string{
		"Perfect buy-sell gap for profitable flips",
		"Healthy inventory levels",
		"Strong buyer income for resale",
		"Fast-moving market (25 days)",
	}, insights)
}
