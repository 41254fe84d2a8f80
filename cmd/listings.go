package main

import (
	"encoding/json"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/flipfinder/internal/market"
)

var listingsOpts struct {
	zip     string
	tract   string
	jsonOut bool
}

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Show current listings for a postal area",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := initApp()
		if err != nil {
			return err
		}

		listings, err := a.market.Listings(cmd.Context(), listingsOpts.zip)
		if market.IsNoListings(err) {
			listings = nil
		} else if err != nil {
			return err
		}

		if listingsOpts.tract != "" {
			poly, err := a.boundary.TractPolygon(cmd.Context(), listingsOpts.tract)
			if err != nil {
				return err
			}
			listings = filterByTract(listings, poly)
		}

		if listingsOpts.jsonOut {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(listings)
		}

		p := message.NewPrinter(language.AmericanEnglish)
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		p.Fprintf(w, "ADDRESS\tSTATUS\tPRICE\tBEDS\tBATHS\tDOM\n")
		for _, l := range listings {
			p.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				l.Street, l.Status, moneyInt(p, l.ListPrice),
				optInt(l.Beds), optFloat(p, l.Baths), optInt(l.DaysOnMarket))
		}
		p.Fprintf(w, "\n%d listings\n", len(listings))
		return w.Flush()
	},
}

func optFloat(p *message.Printer, v *float64) string {
	if v == nil {
		return "-"
	}
	return p.Sprintf("%g", *v)
}

func init() {
	listingsCmd.Flags().StringVar(&listingsOpts.zip, "zip", "", "postal area to query (required)")
	listingsCmd.Flags().StringVar(&listingsOpts.tract, "tract", "", "11-digit tract GEOID to filter by boundary")
	listingsCmd.Flags().BoolVar(&listingsOpts.jsonOut, "json", false, "print listings as JSON")
	_ = listingsCmd.MarkFlagRequired("zip")
	rootCmd.AddCommand(listingsCmd)
}
