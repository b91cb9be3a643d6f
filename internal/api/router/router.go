// Package router assembles the HTTP surface of the insights API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bjmnh/chatinsights/internal/http/handlers"
	httpmiddleware "github.com/bjmnh/chatinsights/internal/http/middleware"
	"github.com/bjmnh/chatinsights/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger             *logging.Logger
	Insights           *handlers.InsightsHandler
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", cfg.Insights.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/v1", func(v1 chi.Router) {
		// Starting an analysis is expensive; cap per-IP bursts.
		v1.With(httpmiddleware.RateLimit(1, 5)).Post("/users/{userID}/jobs/{jobID}/insights", cfg.Insights.StartAnalysis)
		v1.Get("/jobs/{jobID}", cfg.Insights.GetJob)
		v1.Get("/jobs/{jobID}/bundle", cfg.Insights.GetBundle)
	})

	return r
}
