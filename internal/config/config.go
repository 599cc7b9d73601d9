// Package config loads gateway and dashboard configuration from the
// environment, with optional .env file support.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// ErrUnconfigured is returned when a required credential or identifier is
// missing. The binaries refuse to start rather than degrade silently.
var ErrUnconfigured = errors.New("missing required configuration")

// Gateway holds configuration for the analytics gateway (cmd/api).
type Gateway struct {
	// Port the HTTP server listens on.
	Port string

	// Environment name for telemetry (development, production, ...).
	Environment string

	// OpenWeatherAPIKey authenticates geocoding calls (required).
	OpenWeatherAPIKey string

	// GoogleCloudProject is billed for Earth Engine computation (required).
	GoogleCloudProject string

	// GeocoderBaseURL overrides the geocoding API base URL (tests, proxies).
	GeocoderBaseURL string

	// EarthEngineBaseURL overrides the Earth Engine API base URL.
	EarthEngineBaseURL string

	// EarthEngineToken is a static OAuth2 access token. When empty,
	// application default credentials are used.
	EarthEngineToken string

	// SceneWindow is the scene search window ending at now.
	SceneWindow time.Duration

	// OTLPEndpoint receives traces and metrics when telemetry is enabled.
	OTLPEndpoint string

	// TelemetryEnabled toggles OTLP export.
	TelemetryEnabled bool
}

// LoadGateway reads gateway configuration from the environment.
// Missing required values fail with ErrUnconfigured.
func LoadGateway() (*Gateway, error) {
	loadDotenv()

	cfg := &Gateway{
		Port:               getenvDefault("APP_PORT", "8000"),
		Environment:        getenvDefault("APP_ENV", "development"),
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		GoogleCloudProject: os.Getenv("GOOGLE_CLOUD_PROJECT"),
		GeocoderBaseURL:    os.Getenv("GEOCODER_BASE_URL"),
		EarthEngineBaseURL: os.Getenv("EARTHENGINE_BASE_URL"),
		EarthEngineToken:   os.Getenv("EARTHENGINE_ACCESS_TOKEN"),
		OTLPEndpoint:       getenvDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		TelemetryEnabled:   os.Getenv("OTEL_ENABLED") == "true",
	}

	if cfg.OpenWeatherAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENWEATHER_API_KEY must be set for geocoding", ErrUnconfigured)
	}
	if cfg.GoogleCloudProject == "" {
		return nil, fmt.Errorf("%w: GOOGLE_CLOUD_PROJECT must be set for Earth Engine", ErrUnconfigured)
	}

	window, err := time.ParseDuration(getenvDefault("SCENE_WINDOW", "8760h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCENE_WINDOW: %w", err)
	}
	cfg.SceneWindow = window

	return cfg, nil
}

// Dashboard holds configuration for the dashboard server (cmd/dashboard).
type Dashboard struct {
	// Port the HTTP server listens on.
	Port string

	// APIBaseURL is the analytics gateway address.
	APIBaseURL string

	// RequestTimeout bounds one gateway call. The upstream imagery pipeline
	// can be slow, so the ceiling is generous.
	RequestTimeout time.Duration
}

// LoadDashboard reads dashboard configuration from the environment.
func LoadDashboard() (*Dashboard, error) {
	loadDotenv()

	cfg := &Dashboard{
		Port:       getenvDefault("DASHBOARD_PORT", "8501"),
		APIBaseURL: getenvDefault("API_BASE_URL", "http://127.0.0.1:8000"),
	}

	timeout, err := time.ParseDuration(getenvDefault("API_TIMEOUT", "120s"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_TIMEOUT: %w", err)
	}
	cfg.RequestTimeout = timeout

	return cfg, nil
}

// loadDotenv is best-effort; a missing .env file is normal outside
// development.
func loadDotenv() {
	_ = godotenv.Load()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
