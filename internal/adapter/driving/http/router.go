package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/orchestrix/orchestrix-alerts/internal/core/port"
	"github.com/orchestrix/orchestrix-alerts/pkg/apperror"
	"github.com/orchestrix/orchestrix-alerts/pkg/observability"
)

// RouterConfig wires the services behind the HTTP API
type RouterConfig struct {
	Commands  port.AlertCommandService
	Queries   port.AlertQueryService
	Ingest    port.IngestService
	Rebuilder port.ProjectionRebuilder
	Checks    map[string]ReadinessCheck

	Logger         *slog.Logger
	Metrics        *observability.Metrics
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter builds the chi router for the alert API
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	errHandler := apperror.NewHandler(cfg.Logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestContext)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(observability.HTTPMiddleware(cfg.Metrics))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", ActorHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := NewHealthHandler(cfg.Checks)
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Handle("/metrics", observability.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/alerts", NewAlertHandler(cfg.Commands, cfg.Queries, errHandler).Routes())
		r.Mount("/ingest", NewIngestHandler(cfg.Ingest, errHandler).Routes())
		r.Mount("/admin", NewAdminHandler(cfg.Rebuilder, errHandler).Routes())
	})

	return r
}

// requestContext copies the request id and actor into the context for log
// correlation and writes one access log line per request
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := observability.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		if a := r.Header.Get(ActorHeader); a != "" {
			ctx = observability.ContextWithActor(ctx, a)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		observability.LogDebug(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
