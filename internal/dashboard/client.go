package dashboard

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

	"github.com/healthycity/healthycity/internal/analysis"
	"github.com/healthycity/healthycity/internal/api/models"
)

// DefaultTimeout bounds one gateway call. The imagery pipeline behind the
// gateway can be slow.
const DefaultTimeout = 120 * time.Second

// FetchError carries the banner message for a failed gateway call.
type FetchError struct {
	Message string
}

func (e *FetchError) Error() string {
	return e.Message
}

// BannerMessage extracts the user-facing message from a client error.
func BannerMessage(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	return "An unexpected error occurred. Please try again."
}

// ClientConfig holds configuration for the gateway client.
type ClientConfig struct {
	// BaseURL is the analytics gateway address (required).
	BaseURL string

	// Timeout bounds one request (default: DefaultTimeout).
	Timeout time.Duration

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is the dashboard's view of the analytics gateway. Every call is
// synchronous with a bounded wait and no retries; the user resubmits manually.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a new gateway client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

// Capabilities fetches the gateway's declared analysis kinds.
func (c *Client) Capabilities(ctx context.Context) ([]models.Capability, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capabilities", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Message: fmt.Sprintf("API error: unexpected status %d from capabilities endpoint.", resp.StatusCode)}
	}

	var caps models.Capabilities
	if err := json.NewDecoder(resp.Body).Decode(&caps); err != nil {
		return nil, &FetchError{Message: "API error: malformed capabilities response."}
	}
	return caps.Kinds, nil
}

// Analyze runs one analysis round trip and decodes the kind-specific result.
func (c *Client) Analyze(ctx context.Context, city string, kind analysis.Kind) (*Result, error) {
	reqURL := fmt.Sprintf("%s/city/%s/%s", c.baseURL, url.PathEscape(city), kind)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.problemError(resp)
	}

	return decodeResult(resp, kind)
}

// transportError folds connection and timeout failures into banner messages.
func (c *Client) transportError(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.Timeout() {
		return &FetchError{Message: "The request to the backend timed out. The server might be busy or the request is complex."}
	}
	c.logger.Warn().Err(err).Str("base_url", c.baseURL).Msg("gateway unreachable")
	return &FetchError{Message: fmt.Sprintf(
		"Connection error: could not reach the backend at %s. Please ensure the server is running.", c.baseURL)}
}

// problemError extracts the detail from a problem+json error body.
func (c *Client) problemError(resp *http.Response) error {
	var problem models.Problem
	if err := json.NewDecoder(resp.Body).Decode(&problem); err != nil || problem.Detail == "" {
		return &FetchError{Message: fmt.Sprintf("API error: unexpected status %d.", resp.StatusCode)}
	}
	return &FetchError{Message: "API error: " + problem.Detail}
}

// decodeResult decodes the response once, at the boundary, into the explicit
// per-kind shape.
func decodeResult(resp *http.Response, kind analysis.Kind) (*Result, error) {
	switch kind {
	case analysis.KindGreen:
		var report models.GreenCoverReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return nil, &FetchError{Message: "API error: malformed response body."}
		}
		return &Result{
			Kind:       kind,
			City:       report.City,
			Lat:        report.Location.Lat,
			Lon:        report.Location.Lon,
			DataSource: report.DataSource,
			Metrics: []Metric{
				{Label: "Average Green Cover", Value: fmt.Sprintf("%.2f%%", report.GreenCoverPercentage)},
				{Label: "Average NDVI", Value: fmt.Sprintf("%.4f", report.AvgNDVI)},
			},
		}, nil
	case analysis.KindHeatmap:
		var report models.HeatMapReport
		if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
			return nil, &FetchError{Message: "API error: malformed response body."}
		}
		return &Result{
			Kind:       kind,
			City:       report.City,
			Lat:        report.Location.Lat,
			Lon:        report.Location.Lon,
			DataSource: report.DataSource,
			Metrics: []Metric{
				{Label: "Average Surface Temp.", Value: fmt.Sprintf("%.2f °C", report.AvgLSTCelsius)},
			},
		}, nil
	default:
		return nil, &FetchError{Message: fmt.Sprintf("API error: no result decoder for kind %q.", kind)}
	}
}
