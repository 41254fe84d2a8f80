package main

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/flipfinder/internal/boundary"
	"github.com/sells-group/flipfinder/internal/census"
	"github.com/sells-group/flipfinder/internal/lookup"
	"github.com/sells-group/flipfinder/internal/market"
	"github.com/sells-group/flipfinder/internal/pipeline"
)

// app bundles the wired clients every command works against.
type app struct {
	tables   *lookup.Tables
	census   *census.Client
	market   *market.Client
	boundary *boundary.Service
	analyzer *pipeline.Analyzer
}

func initApp() (*app, error) {
	tables, err := lookup.Load()
	if err != nil {
		return nil, eris.Wrap(err, "load lookup tables")
	}

	censusClient := census.NewClient(cfg.Census, tables)
	marketClient := market.NewClient(cfg.Market)

	return &app{
		tables:   tables,
		census:   censusClient,
		market:   marketClient,
		boundary: boundary.NewService(cfg.Boundary),
		analyzer: pipeline.NewAnalyzer(censusClient, marketClient, tables, cfg),
	}, nil
}
