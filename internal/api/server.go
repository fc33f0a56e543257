// Package api provides the HTTP RPC surface of the sync commands.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/possync/possync/internal/service"
)

// ServerOption configures NewServer
type ServerOption func(*serverOptions)

type serverOptions struct {
	middlewares    []func(http.Handler) http.Handler
	metricsHandler http.Handler
}

// WithMiddlewares appends router middlewares, applied in the given order
func WithMiddlewares(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(o *serverOptions) {
		o.middlewares = append(o.middlewares, mw...)
	}
}

// WithMetricsHandler exposes handler as GET /metrics
func WithMetricsHandler(handler http.Handler) ServerOption {
	return func(o *serverOptions) {
		o.metricsHandler = handler
	}
}

// NewServer routes the probes, the version document and the command surface
// onto a single chi mux.
func NewServer(svc service.Service, opts ...ServerOption) *chi.Mux {
	o := &serverOptions{}
	for _, opt := range opts {
		opt(o)
	}

	r := chi.NewRouter()
	r.Use(o.middlewares...)

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)
	if o.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", o.metricsHandler)
	}
	r.Mount("/commands", CommandRouter(svc))

	return r
}

// LoggingMiddleware writes one debug line per request once the response is sent
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)

		slog.Debug("Served request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(began),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
