package main

import (
	"encoding/json"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/flipfinder/internal/export"
	"github.com/sells-group/flipfinder/internal/pipeline"
)

var analyzeOpts struct {
	top              int
	minScore         float64
	group            bool
	marketData       bool
	priceMin         int
	priceMax         int
	maxMarketLookups int
	jsonOut          bool
	xlsxPath         string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score and rank tracts across the analysis area",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}

		res, err := a.analyzer.Run(cmd.Context(), pipeline.Request{
			PriceMin:            analyzeOpts.priceMin,
			PriceMax:            analyzeOpts.priceMax,
			MinScore:            analyzeOpts.minScore,
			TopN:                analyzeOpts.top,
			GroupByNeighborhood: analyzeOpts.group,
			IncludeMarketData:   analyzeOpts.marketData,
			MaxMarketLookups:    analyzeOpts.maxMarketLookups,
		})
		if err != nil {
			return err
		}

		if analyzeOpts.xlsxPath != "" {
			if err := export.WriteXLSX(analyzeOpts.xlsxPath, res); err != nil {
				return err
			}
			zap.L().Info("wrote spreadsheet", zap.String("path", analyzeOpts.xlsxPath))
		}

		if analyzeOpts.jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}

		printResult(cmd, res)
		return nil
	},
}

func printResult(cmd *cobra.Command, res *pipeline.Result) {
	p := message.NewPrinter(language.AmericanEnglish)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)

	p.Fprintf(w, "Analyzed %d tracts, %d meeting criteria (price band $%d–$%d)\n\n",
		res.TotalTractsAnalyzed, res.Summary.TotalMeetingCriteria,
		res.PriceBand.Min, res.PriceBand.Max)

	if res.GroupedByNeighborhood {
		p.Fprintf(w, "RANK\tNEIGHBORHOOD\tCOUNTY\tSCORE\tHOME VALUE\tTRACTS\tPOP\n")
		for i, g := range res.Neighborhoods {
			p.Fprintf(w, "%d\t%s\t%s\t%.1f\t%s\t%d\t%d\n",
				i+1, g.Neighborhood, g.CountyName, g.Score,
				money(p, g.MedianHomeValue), g.TractsCount, g.TotalPop)
		}
	} else {
		p.Fprintf(w, "RANK\tTRACT\tCOUNTY\tNEIGHBORHOOD\tSCORE\tHOME VALUE\tDOM\n")
		for i, t := range res.Opportunities {
			p.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%s\t%s\n",
				i+1, t.TractID, t.CountyName, t.Neighborhood, t.CompositeScore(),
				moneyInt(p, t.MedianHomeValue), optInt(t.DaysOnMarket))
		}
	}
	_ = w.Flush()

	for _, e := range res.Errors {
		p.Fprintf(cmd.OutOrStdout(), "warning: %s\n", e)
	}
	for _, warn := range res.Warnings {
		p.Fprintf(cmd.OutOrStdout(), "note: %s\n", warn)
	}
}

func money(p *message.Printer, v *float64) string {
	if v == nil {
		return "-"
	}
	return p.Sprintf("$%.0f", *v)
}

func moneyInt(p *message.Printer, v *int) string {
	if v == nil {
		return "-"
	}
	return p.Sprintf("$%d", *v)
}

func optInt(v *int) string {
	if v == nil {
		return "-"
	}
	return message.NewPrinter(language.AmericanEnglish).Sprintf("%d", *v)
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeOpts.top, "top", 0, "limit output to the top N results (0 = all)")
	analyzeCmd.Flags().Float64Var(&analyzeOpts.minScore, "min-score", 0, "minimum composite score to include")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.group, "group", false, "aggregate results by neighborhood")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.marketData, "market-data", false, "enrich top results with live market velocity")
	analyzeCmd.Flags().IntVar(&analyzeOpts.priceMin, "price-min", 0, "acquisition band lower bound (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeOpts.priceMax, "price-max", 0, "acquisition band upper bound (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeOpts.maxMarketLookups, "max-market-lookups", 0, "cap on market API lookups (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeOpts.jsonOut, "json", false, "print the full result envelope as JSON")
	analyzeCmd.Flags().StringVar(&analyzeOpts.xlsxPath, "xlsx", "", "also write results to an XLSX file")
	rootCmd.AddCommand(analyzeCmd)
}
