package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(g.requestMetrics)

	// Probe and scrape endpoints stay outside the auth gate.
	r.Get("/healthz", g.handleHealthz())
	r.Get("/readyz", g.handleReadyz())
	r.Handle("/metrics", promhttp.HandlerFor(g.deps.Prometheus, promhttp.HandlerOpts{}))

	// The API. Unauthenticated only when no token is configured.
	r.Route("/v1", func(r chi.Router) {
		if g.config.AuthConfigured() {
			r.Use(authMiddleware(g.config.AuthToken))
		}
		r.Post("/consult", g.handleConsult())
		r.Get("/tools", g.handleToolPreview())
		r.Patch("/tools/{id}", g.handlePatchTool())
		r.Get("/history", g.handleHistory())
		r.Get("/events", g.handleEvents())
	})

	return r
}
