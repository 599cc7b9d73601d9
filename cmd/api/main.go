// Package main provides the entrypoint for the HealthyCity analytics gateway.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/healthycity/healthycity/internal/analysis"
	"github.com/healthycity/healthycity/internal/analysis/earthengine"
	"github.com/healthycity/healthycity/internal/api"
	"github.com/healthycity/healthycity/internal/api/middleware"
	"github.com/healthycity/healthycity/internal/config"
	"github.com/healthycity/healthycity/internal/geocode/openweathermap"
	"github.com/healthycity/healthycity/internal/provider/resilience"
	"github.com/healthycity/healthycity/internal/telemetry"
)

const earthEngineScope = "https://www.googleapis.com/auth/earthengine"

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "healthycity-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting HealthyCity analytics gateway")

	cfg, err := config.LoadGateway()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TelemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.TelemetryEnabled {
		log.Info().
			Str("otlp_endpoint", cfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Provider health registry feeds /ops/status
	registry := resilience.NewRegistry()

	geocoder := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:   cfg.OpenWeatherAPIKey,
		BaseURL:  cfg.GeocoderBaseURL,
		Registry: registry,
		Logger:   log,
	})
	log.Info().Msg("geocoding client initialized")

	tokenSource, err := earthEngineTokenSource(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Earth Engine credentials")
	}

	scenes := earthengine.NewClient(earthengine.ClientConfig{
		ProjectID:   cfg.GoogleCloudProject,
		BaseURL:     cfg.EarthEngineBaseURL,
		TokenSource: tokenSource,
		Registry:    registry,
		Logger:      log,
	})
	log.Info().
		Str("project", cfg.GoogleCloudProject).
		Msg("Earth Engine client initialized")

	analyzer := analysis.NewService(analysis.ServiceConfig{
		Geocoder: geocoder,
		Scenes:   scenes,
		Logger:   log,
		Window:   cfg.SceneWindow,
	})
	log.Info().Msg("analysis service initialized")

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Analyzer:    analyzer,
		Registry:    registry,
	})

	// Create HTTP server. The write timeout must cover a full imagery
	// round trip, which can take well over a minute.
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// earthEngineTokenSource prefers a static token from the environment and
// falls back to application default credentials.
func earthEngineTokenSource(ctx context.Context, cfg *config.Gateway) (oauth2.TokenSource, error) {
	if cfg.EarthEngineToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.EarthEngineToken}), nil
	}
	return google.DefaultTokenSource(ctx, earthEngineScope)
}
