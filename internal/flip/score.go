package flip

// ScoreBreakdown holds the composite flip-potential score, its four
// sub-scores (normalized to [0,1] internally, scaled to [0,100] for
// display), optional bonus adjustments, and the derived narrative
// insight/warning strings.
type ScoreBreakdown struct {
	// Score is the weighted composite plus bonuses, clamped to [0,100].
	Score float64 `json:"score"`

	// GapRatio is median home value / price_max, rounded to 2 decimals.
	GapRatio float64 `json:"gap_ratio"`

	// Sub-scores scaled to [0,100], one decimal.
	GapScore      float64 `json:"gap_score"`
	VacancyScore  float64 `json:"vacancy_score"`
	IncomeScore   float64 `json:"income_score"`
	VelocityScore float64 `json:"velocity_score"`

	// Bonus is the net school/retail adjustment applied after the
	// weighted composite, before clamping. Zero when bonuses are off.
	Bonus float64 `json:"bonus,omitempty"`

	Insights []string `json:"insights"`
	Warnings []string `json:"warnings"`
}
