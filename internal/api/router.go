// Package api provides the HTTP API for the HealthyCity analytics gateway.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/healthycity/healthycity/internal/api/handler"
	"github.com/healthycity/healthycity/internal/api/middleware"
	"github.com/healthycity/healthycity/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics
	Analyzer    handler.Analyzer
	Registry    *resilience.Registry
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "healthycity-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	// The dashboard may be served from a different origin.
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.ContentTypeJSON) // JSON content type

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Registry)
	analysisHandler := handler.NewAnalysisHandler(cfg.Analyzer, cfg.Logger)

	analysisRateLimit := middleware.RateLimitByIP(middleware.AnalysisRateLimit) // 30 req/min
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit) // 100 req/min

	r.Get("/", opsHandler.Root)

	r.With(standardRateLimit).Get("/capabilities", analysisHandler.Capabilities)

	r.Route("/ops", func(r chi.Router) {
		r.Get("/health", opsHandler.HealthCheck)
		r.Get("/status", opsHandler.SystemStatus)
	})

	// Analysis endpoints fan out to slow collaborators - strict rate limiting
	r.Route("/city/{city}", func(r chi.Router) {
		r.Use(analysisRateLimit)
		r.Get("/{kind}", analysisHandler.CityAnalysis)
	})

	return r
}
