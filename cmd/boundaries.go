package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/flipfinder/internal/boundary"
)

var boundariesCmd = &cobra.Command{
	Use:   "boundaries <shapefile>",
	Short: "Validate a TIGER tract shapefile",
	Long:  "Parses a local TIGER/Line tract shapefile and reports how many tract polygons it yields. Pass the same file to 'serve --shapefile' to answer boundary filters without TIGERweb queries.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		polygons, err := boundary.LoadShapefile(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("%s: %d tract polygons\n", args[0], len(polygons))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(boundariesCmd)
}
