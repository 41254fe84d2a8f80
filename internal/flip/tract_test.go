package flip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseACSInt(t *testing.T) {
	got := ParseACSInt("260000")
	require.NotNil(t, got)
	assert.Equal(t, 260000, *got)

	// Float-typed cells still parse to ints.
	got = ParseACSInt("1234.0")
	require.NotNil(t, got)
	assert.Equal(t, 1234, *got)
}

func TestParseACSInt_Missing(t *testing.T) {
	assert.Nil(t, ParseACSInt(""))
	assert.Nil(t, ParseACSInt("n/a"))
	assert.Nil(t, ParseACSInt("-666666666"))
	assert.Nil(t, ParseACSInt("-999999999"))
}

func TestParseACSInt_SmallNegativesKept(t *testing.T) {
	// Only deep-negative annotation codes mean missing.
	got := ParseACSInt("-5")
	require.NotNil(t, got)
	assert.Equal(t, -5, *got)
}

func TestTractIDHuman(t *testing.T) {
	assert.Equal(t, "3101.02", TractIDHuman("310102"))
	assert.Equal(t, "0001.00", TractIDHuman("100"))
	assert.Equal(t, "", TractIDHuman(""))
}

func TestVacancyPercent(t *testing.T) {
	units := 1000
	vacant := 115
	assert.InDelta(t, 11.5, VacancyPercent(&units, &vacant), 0.001)
}

func TestVacancyPercent_Unknown(t *testing.T) {
	units := 1000
	zero := 0
	assert.Equal(t, 0.0, VacancyPercent(nil, &units))
	assert.Equal(t, 0.0, VacancyPercent(&units, nil))
	assert.Equal(t, 0.0, VacancyPercent(&zero, &units))
}

func TestTractAccessors(t *testing.T) {
	pop := 4200
	tr := &TractRecord{TotalPop: &pop, Score: &ScoreBreakdown{Score: 61.5}}
	assert.Equal(t, 4200, tr.Population())
	assert.Equal(t, 61.5, tr.CompositeScore())

	empty := &TractRecord{}
	assert.Equal(t, 0, empty.Population())
	assert.Equal(t, 0.0, empty.CompositeScore())
}

func TestRegionKey(t *testing.T) {
	r := Region{StateFIPS: "18", CountyFIPS: "097", CountyName: "Marion"}
	assert.Equal(t, "18:097", r.Key())
}
