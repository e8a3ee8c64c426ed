package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public — no auth required.
	r.Get("/health", g.handleHealth())

	// Everything else requires the bearer token when one is configured.
	r.Group(func(r chi.Router) {
		if g.authToken != "" {
			r.Use(authMiddleware(g.authToken))
		}
		r.Get("/status", g.handleStatus())
		r.Handle("/metrics", promhttp.HandlerFor(g.metrics.registry, promhttp.HandlerOpts{}))
		r.Get("/ws/progress", g.hub.handleProgress)
	})

	return r
}
