package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/flipfinder/internal/boundary"
	"github.com/sells-group/flipfinder/internal/flip"
	"github.com/sells-group/flipfinder/internal/market"
	"github.com/sells-group/flipfinder/internal/pipeline"
	"github.com/sells-group/flipfinder/internal/resilience"
)

var (
	servePort      int
	serveShapefile string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := initApp()
		if err != nil {
			return err
		}

		if serveShapefile != "" {
			polygons, err := boundary.LoadShapefile(serveShapefile)
			if err != nil {
				return err
			}
			a.boundary.Preload(polygons)
			zap.L().Info("preloaded tract boundaries",
				zap.String("shapefile", serveShapefile),
				zap.Int("tracts", len(polygons)),
			)
		}

		r := chi.NewRouter()
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/api/health", a.handleHealth)
		r.Get("/api/analyze", a.handleAnalyze)
		r.Post("/api/analyze", a.handleAnalyze)
		r.Get("/api/listings", a.handleListings)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func (a *app) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ts":     time.Now().UTC().Format(time.RFC3339),
		"caches": map[string]any{
			"census_regions":   a.census.CacheStats(),
			"market_velocity":  a.market.VelocityCacheStats(),
			"tract_boundaries": a.boundary.CacheStats(),
		},
	})
}

// handleAnalyze serves both GET and POST; parameters travel as query
// values either way.
func (a *app) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, err := parseAnalyzeRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := a.analyzer.Run(r.Context(), req)
	if err != nil {
		zap.L().Error("analysis failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, errors.New("analysis failed"))
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func parseAnalyzeRequest(r *http.Request) (pipeline.Request, error) {
	var req pipeline.Request

	// A POST may carry the request as a JSON body instead of query
	// parameters; query values still win when both are present.
	if r.Method == http.MethodPost && r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, eris.New("invalid request body")
		}
	}

	q := r.URL.Query()
	var err error

	if req.TopN, err = queryInt(q.Get("top"), req.TopN); err != nil {
		return req, eris.New("invalid 'top' parameter")
	}
	if req.PriceMin, err = queryInt(q.Get("price_min"), req.PriceMin); err != nil {
		return req, eris.New("invalid 'price_min' parameter")
	}
	if req.PriceMax, err = queryInt(q.Get("price_max"), req.PriceMax); err != nil {
		return req, eris.New("invalid 'price_max' parameter")
	}
	if req.MaxMarketLookups, err = queryInt(q.Get("max_market_lookups"), req.MaxMarketLookups); err != nil {
		return req, eris.New("invalid 'max_market_lookups' parameter")
	}
	if s := q.Get("min_score"); s != "" {
		if req.MinScore, err = strconv.ParseFloat(s, 64); err != nil {
			return req, eris.New("invalid 'min_score' parameter")
		}
	}

	if q.Has("market_data") {
		req.IncludeMarketData = strings.EqualFold(q.Get("market_data"), "true")
	}
	if q.Has("group") {
		req.GroupByNeighborhood = strings.EqualFold(q.Get("group"), "neighborhood")
	}
	if req.TopN <= 0 {
		req.TopN = 999
	}

	return req, nil
}

// handleListings returns current normalized listings for a postal area,
// optionally filtered to points inside one tract's boundary.
func (a *app) handleListings(w http.ResponseWriter, r *http.Request) {
	zip := r.URL.Query().Get("zip")
	if zip == "" {
		writeError(w, http.StatusBadRequest, errors.New("'zip' parameter is required"))
		return
	}

	listings, err := a.market.Listings(r.Context(), zip)
	switch {
	case market.IsNoListings(err):
		listings = nil
	case errors.Is(err, resilience.ErrCircuitOpen) || resilience.IsRateLimited(err):
		writeError(w, http.StatusServiceUnavailable, errors.New("listing source is rate limited"))
		return
	case err != nil:
		zap.L().Error("listings fetch failed", zap.String("zip", zip), zap.Error(err))
		writeError(w, http.StatusBadGateway, errors.New("listing source unavailable"))
		return
	}

	resp := map[string]any{
		"status": "success",
		"zip":    zip,
	}

	if geoid := r.URL.Query().Get("tract"); geoid != "" {
		poly, err := a.boundary.TractPolygon(r.Context(), geoid)
		if err != nil {
			zap.L().Error("tract boundary fetch failed", zap.String("geoid", geoid), zap.Error(err))
			writeError(w, http.StatusBadGateway, errors.New("boundary source unavailable"))
			return
		}
		listings = filterByTract(listings, poly)
		resp["tract_filter"] = geoid
	}

	resp["count"] = len(listings)
	resp["listings"] = listings
	writeJSON(w, http.StatusOK, resp)
}

// filterByTract keeps listings whose coordinates fall inside the
// polygon. Listings without coordinates are dropped when filtering.
func filterByTract(listings []flip.Listing, poly *geom.MultiPolygon) []flip.Listing {
	if poly == nil {
		return nil
	}
	var kept []flip.Listing
	for _, l := range listings {
		if l.Latitude == nil || l.Longitude == nil {
			continue
		}
		if boundary.Contains(poly, *l.Longitude, *l.Latitude) {
			kept = append(kept, l)
		}
	}
	return kept
}

func queryInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{
		"status":  "error",
		"message": err.Error(),
	})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveShapefile, "shapefile", "", "TIGER tract shapefile to preload into the boundary cache")
	rootCmd.AddCommand(serveCmd)
}
