package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/tinylink-io/tinylink/internal/config"
	"github.com/tinylink-io/tinylink/internal/infrastructure/telemetry"
	"github.com/tinylink-io/tinylink/internal/processing/links"
	"github.com/tinylink-io/tinylink/internal/transport/http/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var spanNames = map[string]string{
	"GET /health":              "health",
	"GET /metrics":             "metrics",
	"POST /api/links":          "links.create",
	"GET /api/links":           "links.list",
	"GET /api/links/{code}":    "links.get",
	"DELETE /api/links/{code}": "links.delete",
	"GET /{code}":              "links.redirect",
}

type RouterOptions struct {
	EnableCORS    bool
	EnableLogging bool
	EnableMetrics bool

	// RateLimiter guards POST /api/links. Nil disables rate limiting.
	RateLimiter *middleware.FixedWindowLimiter

	LinksHandlerOptions LinksHandlerOptions
}

func DefaultRouterOptions() RouterOptions {
	return RouterOptions{
		EnableCORS:    true,
		EnableLogging: true,
		EnableMetrics: true,
		LinksHandlerOptions: LinksHandlerOptions{
			AsyncClick:   true,
			ClickTimeout: 2 * time.Second,
		},
	}
}

func NewRouter(cfg *config.Config, linkService *links.Service) http.Handler {
	return NewRouterWithOptions(cfg, linkService, DefaultRouterOptions())
}

func NewRouterWithOptions(cfg *config.Config, linkService *links.Service, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	healthHandler := NewHealthHandler()
	linksHandler := NewLinksHandlerWithOptions(cfg, linkService, opts.LinksHandlerOptions)

	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.Handle("GET /metrics", healthHandler.Metrics())

	apiKeyMiddleware := middleware.APIKeyMiddleware(cfg.Security.APIKeys)

	createMiddlewares := []func(http.Handler) http.Handler{apiKeyMiddleware}
	if opts.RateLimiter != nil {
		createMiddlewares = append(createMiddlewares, middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Handle("POST /api/links", middleware.Chain(
		http.HandlerFunc(linksHandler.Create),
		createMiddlewares...,
	))
	mux.HandleFunc("GET /api/links", linksHandler.List)
	mux.HandleFunc("GET /api/links/{code}", linksHandler.Get)
	mux.Handle("DELETE /api/links/{code}", middleware.Chain(
		http.HandlerFunc(linksHandler.Delete),
		apiKeyMiddleware,
	))
	mux.HandleFunc("GET /{code}", linksHandler.Redirect)

	var innerHandler http.Handler = mux
	if opts.EnableCORS {
		innerHandler = middleware.CORSMiddleware(innerHandler)
	}
	if opts.EnableLogging {
		innerHandler = middleware.LoggingMiddleware(innerHandler)
	}
	if opts.EnableMetrics {
		innerHandler = middleware.MetricsMiddleware(innerHandler)
	}

	otelOptions := []otelhttp.Option{
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			key := r.Method + " " + r.Pattern
			if name, ok := spanNames[key]; ok {
				return name
			}
			if r.Pattern != "" {
				return r.Pattern
			}
			path := strings.TrimSpace(r.URL.Path)
			if path == "" {
				path = "/"
			}
			return path
		}),
	}

	if telemetry.TracerProvider != nil {
		otelOptions = append(otelOptions, otelhttp.WithTracerProvider(telemetry.TracerProvider))
	}

	return otelhttp.NewHandler(innerHandler, cfg.App.Name, otelOptions...)
}
