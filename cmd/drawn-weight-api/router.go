package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical/drawn-weight/cmd/drawn-weight-api/handlers"
	"github.com/spherical/drawn-weight/cmd/drawn-weight-api/middleware"
	"github.com/spherical/drawn-weight/internal/config"
	"github.com/spherical/drawn-weight/internal/observability"
)

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg *config.Config, analyzer handlers.Analyzer) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	if cfg.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.Server.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"drawn-weight"}`))
	})

	analysis := handlers.NewAnalysisHandler(logger, analyzer, cfg.Preprocess.TempDir, cfg.Server.MaxUploadMB)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{
			Enabled: cfg.Auth.Enabled,
			Tokens:  cfg.Auth.Tokens,
		}))

		r.Route("/analysis", func(r chi.Router) {
			r.Post("/analyze", analysis.Analyze)
			r.Get("/history", analysis.History)
			r.Get("/history/export", analysis.Export)
		})
	})

	return r
}
