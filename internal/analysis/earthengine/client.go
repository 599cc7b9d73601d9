// Package earthengine provides a client for the Google Earth Engine REST API.
// Scene selection uses assets:listImages; the spatial reduction runs remotely
// via value:compute with a serialized expression graph.
package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/healthycity/healthycity/internal/analysis"
	"github.com/healthycity/healthycity/internal/provider/resilience"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "earthengine"

	// DefaultBaseURL is the Earth Engine REST API base URL.
	DefaultBaseURL = "https://earthengine.googleapis.com/v1"

	// publicCatalogProject hosts the public image collections.
	publicCatalogProject = "earthengine-public"

	// listPageSize bounds one page of scene listings.
	listPageSize = 100
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Earth Engine client.
type ClientConfig struct {
	// ProjectID is the Google Cloud project billed for computation (required).
	ProjectID string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// TokenSource supplies OAuth2 bearer tokens. May be nil when the
	// HTTPClient already handles authentication (tests).
	TokenSource oauth2.TokenSource

	// HTTPClient is the HTTP client to use.
	// If nil, a default resilient client without retries is created.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 60s; reductions are slow).
	Timeout time.Duration

	// Registry receives success/failure records for ops reporting.
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client computes regional scene reductions via the Earth Engine REST API.
// It implements analysis.SceneReducer.
type Client struct {
	projectID   string
	baseURL     string
	tokenSource oauth2.TokenSource
	httpClient  HTTPDoer
	registry    *resilience.Registry
	logger      zerolog.Logger
}

// NewClient creates a new Earth Engine client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
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
		projectID:   cfg.ProjectID,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		tokenSource: cfg.TokenSource,
		httpClient:  httpClient,
		registry:    cfg.Registry,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// ReduceMean selects the least-cloudy scene in the window and reduces the band
// expression to its regional mean.
func (c *Client) ReduceMean(ctx context.Context, req analysis.ReduceRequest) (float64, error) {
	value, err := c.reduceMean(ctx, req)
	if c.registry != nil {
		if err != nil {
			c.registry.RecordFailure(ProviderName, err)
		} else {
			c.registry.RecordSuccess(ProviderName)
		}
	}
	return value, err
}

func (c *Client) reduceMean(ctx context.Context, req analysis.ReduceRequest) (float64, error) {
	scene, err := c.clearestScene(ctx, req)
	if err != nil {
		return 0, err
	}

	c.logger.Debug().
		Str("scene", scene.Name).
		Float64("cloud_cover", scene.CloudCover).
		Msg("scene selected")

	return c.computeRegionMean(ctx, scene.Name, req)
}

// scene is one catalog entry surviving the cloud filter.
type scene struct {
	Name       string
	CloudCover float64
}

type listImagesResponse struct {
	Images []struct {
		Name       string                 `json:"name"`
		Properties map[string]interface{} `json:"properties"`
	} `json:"images"`
	NextPageToken string `json:"nextPageToken"`
}

// clearestScene lists scenes intersecting the buffered region within the
// window and returns the one with the lowest cloud cover.
func (c *Client) clearestScene(ctx context.Context, req analysis.ReduceRequest) (*scene, error) {
	region := bufferedRegion(req.Center.Lat, req.Center.Lon, req.RadiusMeters)
	filter := fmt.Sprintf("%s < %v", req.CloudProperty, req.MaxCloudCover)

	var scenes []scene
	pageToken := ""

	for {
		q := url.Values{}
		q.Set("region", region)
		q.Set("filter", filter)
		q.Set("startTime", req.Start.UTC().Format(time.RFC3339))
		q.Set("endTime", req.End.UTC().Format(time.RFC3339))
		q.Set("pageSize", fmt.Sprint(listPageSize))
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}

		reqURL := fmt.Sprintf("%s/projects/%s/assets/%s:listImages?%s",
			c.baseURL, publicCatalogProject, req.Collection, q.Encode())

		var result listImagesResponse
		if err := c.getJSON(ctx, reqURL, &result); err != nil {
			return nil, err
		}

		for _, img := range result.Images {
			cover, ok := img.Properties[req.CloudProperty].(float64)
			if !ok {
				continue
			}
			scenes = append(scenes, scene{Name: img.Name, CloudCover: cover})
		}

		pageToken = result.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(scenes) == 0 {
		return nil, fmt.Errorf("%w: collection %s in window %s..%s",
			analysis.ErrNoImagery, req.Collection,
			req.Start.UTC().Format("2006-01-02"), req.End.UTC().Format("2006-01-02"))
	}

	sort.Slice(scenes, func(i, j int) bool {
		return scenes[i].CloudCover < scenes[j].CloudCover
	})
	return &scenes[0], nil
}

// bufferedRegion returns the bounding box of the buffer around the center as
// a GeoJSON polygon. listImages only runs an intersection test, so the box
// keeps scenes that overlap the buffer's edge in the candidate set.
func bufferedRegion(lat, lon, radiusMeters float64) string {
	const metersPerDegree = 111320.0

	dLat := radiusMeters / metersPerDegree
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	dLon := radiusMeters / (metersPerDegree * cosLat)

	w, e := lon-dLon, lon+dLon
	s, n := lat-dLat, lat+dLat
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%v,%v],[%v,%v],[%v,%v],[%v,%v],[%v,%v]]]}`,
		w, s, e, s, e, n, w, n, w, s)
}

type computeValueResponse struct {
	Result map[string]*float64 `json:"result"`
}

// computeRegionMean runs the reduction expression for one scene.
func (c *Client) computeRegionMean(ctx context.Context, sceneName string, req analysis.ReduceRequest) (float64, error) {
	expr := buildReduceExpression(sceneName, req)

	body, err := json.Marshal(map[string]interface{}{"expression": expr})
	if err != nil {
		return 0, fmt.Errorf("encode expression: %w", err)
	}

	reqURL := fmt.Sprintf("%s/projects/%s/value:compute", c.baseURL, c.projectID)

	var result computeValueResponse
	if err := c.postJSON(ctx, reqURL, body, &result); err != nil {
		return 0, err
	}

	for _, v := range result.Result {
		if v == nil {
			break
		}
		return *v, nil
	}

	return 0, fmt.Errorf("%w: reduction over scene %s returned no value",
		analysis.ErrNoData, sceneName)
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, reqURL string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return fmt.Errorf("%w: token: %v", analysis.ErrProviderUnavailable, err)
		}
		token.SetAuthHeader(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", analysis.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d",
			analysis.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", analysis.ErrProviderUnavailable, err)
	}
	return nil
}
