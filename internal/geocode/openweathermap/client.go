// Package openweathermap provides a client for the OpenWeatherMap direct-geocoding API.
package openweathermap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/healthycity/healthycity/internal/geocode"
	"github.com/healthycity/healthycity/internal/provider/resilience"
)

const (
	// ProviderName identifies this geocoding provider.
	ProviderName = "openweathermap-geo"

	// DefaultBaseURL is the OpenWeatherMap geocoding API base URL.
	DefaultBaseURL = "http://api.openweathermap.org/geo/1.0"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	// APIKey is the OpenWeatherMap API key (required).
	APIKey string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client without retries is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 10s).
	Timeout time.Duration

	// Registry receives success/failure records for ops reporting.
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client resolves city names via the OpenWeatherMap direct-geocoding endpoint,
// limited to a single best-guess result.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	logger     zerolog.Logger
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		// Failures surface immediately to the caller; only the circuit
		// breaker stands between us and a struggling provider.
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:       ProviderName,
			Timeout:    timeout,
			MaxRetries: resilience.NoRetries,
		})
	}

	if cfg.Registry != nil {
		rc, _ := httpClient.(*resilience.Client)
		cfg.Registry.Register(ProviderName, rc)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		registry:   cfg.Registry,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// geoResult is a single entry from the direct-geocoding endpoint.
type geoResult struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

// Resolve returns the best-guess location for a city name.
func (c *Client) Resolve(ctx context.Context, city string) (geocode.Location, error) {
	loc, err := c.resolve(ctx, city)
	if c.registry != nil {
		// Only transport-level failures count against the provider.
		if err != nil && !errors.Is(err, geocode.ErrCityNotFound) {
			c.registry.RecordFailure(ProviderName, err)
		} else if err == nil {
			c.registry.RecordSuccess(ProviderName)
		}
	}
	return loc, err
}

func (c *Client) resolve(ctx context.Context, city string) (geocode.Location, error) {
	reqURL := fmt.Sprintf("%s/direct?q=%s&limit=1&appid=%s",
		c.baseURL, url.QueryEscape(city), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return geocode.Location{}, fmt.Errorf("%w: %w", geocode.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geocode.Location{}, fmt.Errorf("%w: unexpected status %d",
			geocode.ErrProviderUnavailable, resp.StatusCode)
	}

	var results []geoResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return geocode.Location{}, fmt.Errorf("%w: decode response: %v",
			geocode.ErrProviderUnavailable, err)
	}

	if len(results) == 0 {
		return geocode.Location{}, fmt.Errorf("%w: %q", geocode.ErrCityNotFound, city)
	}

	c.logger.Debug().
		Str("city", city).
		Str("match", results[0].Name).
		Str("country", results[0].Country).
		Msg("city resolved")

	return geocode.Location{Lat: results[0].Lat, Lon: results[0].Lon}, nil
}
