// Package api provides the HTTP API for CheckTheBay.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/checkthebay/checkthebay/internal/api/handler"
	"github.com/checkthebay/checkthebay/internal/api/middleware"
	"github.com/checkthebay/checkthebay/internal/conditions"
	"github.com/checkthebay/checkthebay/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Store serves the persisted snapshot. Required.
	Store handler.SnapshotReader
	// Refresher backs POST /v1/conditions/refresh (optional).
	Refresher handler.Refresher
	// Registry reports per-feed health on /v1/ops/status (optional).
	Registry *resilience.Registry

	Stations         []conditions.Station
	PrimaryStationID string

	TideSeries    handler.TideSeriesFetcher
	TidePredictor handler.TidePredictor

	// ReefsPath defaults to handler.DefaultReefsPath.
	ReefsPath string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "checkthebay-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	stations := cfg.Stations
	if stations == nil {
		stations = conditions.DefaultStations()
	}
	primaryID := cfg.PrimaryStationID
	if primaryID == "" {
		primaryID = conditions.PrimaryStationID
	}

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry, cfg.Store)
	conditionsHandler := handler.NewConditionsHandler(cfg.Store, cfg.Refresher, cfg.Logger)
	stationsHandler := handler.NewStationsHandler(stations, primaryID)
	tidesHandler := handler.NewTidesHandler(handler.TidesConfig{
		Series:    cfg.TideSeries,
		Predictor: cfg.TidePredictor,
		Stations:  stations,
		Logger:    cfg.Logger,
	})
	reefsHandler := handler.NewReefsHandler(cfg.ReefsPath, cfg.Logger)

	refreshRateLimit := middleware.RateLimitByIP(middleware.RefreshRateLimit)   // 6 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/conditions", func(r chi.Router) {
			r.With(standardRateLimit).Get("/", conditionsHandler.GetConditions)
			r.With(standardRateLimit).Get("/tides", conditionsHandler.GetTides)
			r.With(standardRateLimit).Get("/stations", conditionsHandler.GetStations)
			r.With(standardRateLimit).Get("/wind-field", conditionsHandler.GetWindField)
			r.With(standardRateLimit).Get("/summary", conditionsHandler.GetSummary)

			// Refresh hits every upstream feed.
			r.With(refreshRateLimit).Post("/refresh", conditionsHandler.Refresh)
		})

		r.With(standardRateLimit).Get("/stations", stationsHandler.ListStations)
		r.With(standardRateLimit).Get("/tides", tidesHandler.GetTides)
		r.With(standardRateLimit).Get("/reefs/inshore", reefsHandler.ListInshore)
	})

	return r
}
