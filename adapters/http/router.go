package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/artpar/tablegate/adapters/metrics"
	"github.com/artpar/tablegate/domain/route"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// UsersEntity is the entity served by the users collaborator when enabled.
const UsersEntity = "users"

// Handlers are the endpoint handlers a router dispatches to.
type Handlers struct {
	Types    *TypesHandler
	Entities *EntityHandler
	Health   *HealthHandler
	Users    *UsersHandler // nil serves users like any other entity
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics       *metrics.Collector
	MetricsPath   string // default /metrics
	EnableOpenAPI bool
	Version       string
}

// NewRouter creates the router for one listener from table.
//
// Every binding of the table is mounted. When a users handler is present,
// the users binding dispatches to it and the rest of the users CRUD
// endpoints are mounted alongside.
func NewRouter(table route.Table, h Handlers, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, cfg.MetricsPath))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	for _, b := range table.Bindings {
		switch {
		case b.Target == route.TargetTypes:
			r.Method(b.Method, b.Path, h.Types)
		case h.Users != nil && b.Entity == UsersEntity:
			mountUsers(r, h.Users)
		default:
			r.Method(b.Method, b.Path, h.Entities.For(b.Entity))
		}
	}

	// Health endpoints
	r.Get("/health", h.Health.Liveness)
	r.Get("/health/live", h.Health.Liveness)
	r.Get("/health/ready", h.Health.Readiness)

	r.Get("/version", Version(cfg.Version))
	r.Get("/routes", routesHandler(table))

	if cfg.Metrics != nil {
		r.Get(cfg.MetricsPath, promhttp.HandlerFor(cfg.Metrics.Gatherer(), promhttp.HandlerOpts{}).ServeHTTP)
	}

	// OpenAPI/Swagger endpoints (if enabled)
	if cfg.EnableOpenAPI {
		doc := OpenAPIDocument(table, cfg.Version, h.Users != nil)
		r.Get("/openapi.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			writeJSON(w, http.StatusOK, doc)
		})
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/openapi.json"),
		))
	}

	return r
}

func mountUsers(r chi.Router, h *UsersHandler) {
	r.Post("/"+UsersEntity, h.Create)
	r.Get("/"+UsersEntity, h.List)
	r.Get("/"+UsersEntity+"/{id}", h.Get)
	r.Put("/"+UsersEntity+"/{id}", h.Update)
	r.Delete("/"+UsersEntity+"/{id}", h.Delete)
}

// RouteInfo is one binding as reported by GET /routes.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Target string `json:"target"`
	Entity string `json:"entity,omitempty"`
}

// RoutesResponse is the body of GET /routes.
type RoutesResponse struct {
	Bindings []RouteInfo      `json:"bindings"`
	Rejected []RejectedEntity `json:"rejected"`
}

// RejectedEntity is a discovered entity that was not bound.
type RejectedEntity struct {
	Entity string `json:"entity"`
	Reason string `json:"reason"`
}

// NewRoutesResponse reports table in the GET /routes shape.
func NewRoutesResponse(table route.Table) RoutesResponse {
	resp := RoutesResponse{
		Bindings: make([]RouteInfo, 0, len(table.Bindings)),
		Rejected: make([]RejectedEntity, 0, len(table.Rejected)),
	}
	for _, b := range table.Bindings {
		resp.Bindings = append(resp.Bindings, RouteInfo{
			Method: b.Method,
			Path:   b.Path,
			Target: string(b.Target),
			Entity: b.Entity,
		})
	}
	for _, rej := range table.Rejected {
		resp.Rejected = append(resp.Rejected, RejectedEntity{Entity: rej.Entity, Reason: rej.Reason})
	}
	return resp
}

func routesHandler(table route.Table) http.HandlerFunc {
	resp := NewRoutesResponse(table)
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, resp)
	}
}

// isInternalPath reports paths excluded from access logs and request metrics.
func isInternalPath(path, metricsPath string) bool {
	return strings.HasPrefix(path, "/health") || path == metricsPath ||
		strings.HasPrefix(path, "/swagger")
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isInternalPath(r.URL.Path, metricsPath) {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := statusLabel(ww.Status())
			// The pattern is only known once chi has routed the request.
			var pattern string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				pattern = rctx.RoutePattern()
			}
			path := metrics.RouteLabel(pattern)

			m.RequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			m.RequestDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates middleware that logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			if isInternalPath(r.URL.Path, metricsPath) {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
