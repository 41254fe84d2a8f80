// Package export writes analysis results to spreadsheet files.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/pipeline"
)

var tractHeader = []string{
	"Rank", "Tract", "County", "Neighborhood", "ZIP", "Score",
	"Gap Ratio", "Median Home Value", "Median Income", "Vacancy %",
	"Days on Market", "Population", "Insights", "Warnings",
}

var neighborhoodHeader = []string{
	"Rank", "Neighborhood", "County", "Score", "Gap Ratio",
	"Median Home Value", "Median Income", "Vacancy %", "Days on Market",
	"Population", "Tracts", "ZIP Guess", "Insights", "Warnings",
}

// WriteXLSX writes one workbook with a single sheet holding the ranked
// opportunities (or neighborhood aggregates, when the run was grouped).
func WriteXLSX(path string, res *pipeline.Result) error {
	f := xlsx.NewFile()

	if res.GroupedByNeighborhood {
		if err := writeNeighborhoods(f, res.Neighborhoods); err != nil {
			return err
		}
	} else {
		if err := writeTracts(f, res.Opportunities); err != nil {
			return err
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func writeTracts(f *xlsx.File, tracts []*flip.TractRecord) error {
	sheet, err := f.AddSheet("Opportunities")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addStringRow(sheet, tractHeader)

	for i, t := range tracts {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(t.TractID)
		row.AddCell().SetString(t.CountyName)
		row.AddCell().SetString(t.Neighborhood)
		row.AddCell().SetString(t.ZipCode)
		row.AddCell().SetFloat(t.CompositeScore())
		if t.Score != nil {
			row.AddCell().SetFloat(t.Score.GapRatio)
		} else {
			row.AddCell().SetString("")
		}
		setOptInt(row, t.MedianHomeValue)
		setOptInt(row, t.MedianIncome)
		row.AddCell().SetFloat(t.VacancyPct)
		setOptInt(row, t.DaysOnMarket)
		row.AddCell().SetInt(t.Population())
		if t.Score != nil {
			row.AddCell().SetString(joinNotes(t.Score.Insights))
			row.AddCell().SetString(joinNotes(t.Score.Warnings))
		} else {
			row.AddCell().SetString("")
			row.AddCell().SetString("")
		}
	}
	return nil
}

func writeNeighborhoods(f *xlsx.File, aggs []flip.NeighborhoodAggregate) error {
	sheet, err := f.AddSheet("Neighborhoods")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}
	addStringRow(sheet, neighborhoodHeader)

	for i, g := range aggs {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(g.Neighborhood)
		row.AddCell().SetString(g.CountyName)
		row.AddCell().SetFloat(g.Score)
		setOptFloat(row, g.GapRatio)
		setOptFloat(row, g.MedianHomeValue)
		setOptFloat(row, g.MedianIncome)
		setOptFloat(row, g.VacancyPct)
		setOptInt(row, g.DaysOnMarket)
		row.AddCell().SetInt(g.TotalPop)
		row.AddCell().SetInt(g.TractsCount)
		row.AddCell().SetString(g.ZipGuess)
		row.AddCell().SetString(joinNotes(g.Insights))
		row.AddCell().SetString(joinNotes(g.Warnings))
	}
	return nil
}

func addStringRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func setOptInt(row *xlsx.Row, v *int) {
	if v == nil {
		row.AddCell().SetString("")
		return
	}
	row.AddCell().SetInt(*v)
}

func setOptFloat(row *xlsx.Row, v *float64) {
	if v == nil {
		row.AddCell().SetString("")
		return
	}
	row.AddCell().SetFloat(*v)
}

func joinNotes(notes []string) string {
	return strings.Join(notes, "; ")
}
