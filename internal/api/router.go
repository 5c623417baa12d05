// GPS Realtime Tracker - Fleet Dashboard and Traccar Session Relay
// Copyright 2026 8Technologia
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/8technologia/gps-realtime-tracker

package api

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/8technologia/gps-realtime-tracker/internal/config"
	"github.com/8technologia/gps-realtime-tracker/internal/metrics"
	"github.com/8technologia/gps-realtime-tracker/internal/middleware"
)

// chiMiddleware adapts http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler shape.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// NewRouter wires all HTTP routes.
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware(middleware.RequestID))
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(httprate.Limit(
			cfg.Server.RateLimitReqs,
			cfg.Server.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(rateLimitExceeded),
		))
		r.Use(chiMiddleware(middleware.PrometheusMetrics))

		r.Get("/devices", h.Devices)
		r.Get("/positions", h.Positions)
		r.Get("/reports/route", h.RouteReport)
		r.Get("/health", h.Health)
		r.Get("/config", h.AppConfig)
	})

	// The bridge endpoint skips the metrics wrapper: hijacked
	// connections cannot go through a recording ResponseWriter.
	r.Get("/ws", h.WebSocket)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Dashboard assets with index fallback for client-side routes.
	r.NotFound(staticHandler(cfg.Server.StaticDir))

	return r
}

func rateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.WithLabelValues(r.URL.Path).Inc()
	http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
}

// staticHandler serves the dashboard bundle. Unknown non-API paths
// fall back to index.html so deep links into the frontend work.
func staticHandler(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
