package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
)

// NewRouter builds and returns the Chi router with all routes configured.
// The health endpoint and the unlock form are never gated; everything else
// goes through the password gate. Rate limiting is applied globally per IP.
func NewRouter(handlers *Handlers, store cachePinger, requestsPerMinute int, log *slog.Logger) *chi.Mux {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(httprate.LimitByIP(requestsPerMinute, time.Minute))

	r.Get("/api/v1/health", HealthHandlerFunc(store, log))
	r.Post("/unlock", handlers.Unlock)

	r.Group(func(r chi.Router) {
		r.Use(handlers.gate.Require)
		r.Get("/", handlers.Dashboard)
		r.Get("/api/v1/report", handlers.Report)
		r.Get("/api/v1/geocode", handlers.Geocode)
	})

	return r
}

// Ensure chi.Mux implements http.Handler.
var _ http.Handler = (*chi.Mux)(nil)
