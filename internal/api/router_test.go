package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthycity/healthycity/internal/analysis"
	"github.com/healthycity/healthycity/internal/api"
	"github.com/healthycity/healthycity/internal/api/models"
	"github.com/healthycity/healthycity/internal/geocode"
	"github.com/healthycity/healthycity/internal/provider/resilience"
)

// stubAnalyzer returns a canned report or error.
type stubAnalyzer struct {
	report *analysis.Report
	err    error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string, _ analysis.Kind) (*analysis.Report, error) {
	return s.report, s.err
}

func greenReport() *analysis.Report {
	return &analysis.Report{
		Kind:       analysis.KindGreen,
		City:       "Paris",
		Location:   geocode.Location{Lat: 48.8589, Lon: 2.3469},
		DataSource: "Copernicus Sentinel-2",
		Vegetation: &analysis.VegetationMetrics{
			AvgNDVI:              0.35,
			GreenCoverPercentage: 67.5,
		},
	}
}

func heatReport() *analysis.Report {
	return &analysis.Report{
		Kind:       analysis.KindHeatmap,
		City:       "Paris",
		Location:   geocode.Location{Lat: 48.8589, Lon: 2.3469},
		DataSource: "USGS Landsat 8",
		Thermal:    &analysis.ThermalMetrics{AvgLSTCelsius: 29.66},
	}
}

func newTestRouter(cfg api.RouterConfig) http.Handler {
	cfg.Version = "test"
	cfg.BuildTime = "2024-01-01T00:00:00Z"
	cfg.Logger = zerolog.New(io.Discard)
	if cfg.Registry == nil {
		cfg.Registry = resilience.NewRegistry()
	}
	return api.NewRouter(cfg)
}

func doRequest(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	var problem models.Problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &problem))
	return problem
}

func TestRouter_RootBanner(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{}})

	w := doRequest(router, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var banner models.Banner
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &banner))
	assert.Contains(t, banner.Message, "HealthyCity")
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{}})

	w := doRequest(router, http.MethodGet, "/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var health models.Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
}

func TestRouter_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("openweathermap-geo", nil)
	registry.Register("earthengine", nil)
	registry.RecordSuccess("openweathermap-geo")
	registry.RecordFailure("earthengine", errors.New("quota exceeded"))

	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{}, Registry: registry})

	w := doRequest(router, http.MethodGet, "/ops/status")

	assert.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	require.Len(t, status.Providers, 2)
}

func TestRouter_Capabilities(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{}})

	w := doRequest(router, http.MethodGet, "/capabilities")

	assert.Equal(t, http.StatusOK, w.Code)

	var caps models.Capabilities
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &caps))
	require.Len(t, caps.Kinds, 5)

	implemented := map[string]bool{}
	for _, c := range caps.Kinds {
		implemented[c.Kind] = c.Implemented
		assert.NotEmpty(t, c.Title)
	}
	assert.True(t, implemented["green"])
	assert.True(t, implemented["heatmap"])
	assert.False(t, implemented["flood"])
	assert.False(t, implemented["airquality"])
	assert.False(t, implemented["reportcard"])
}

func TestRouter_GreenCoverAnalysis(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{report: greenReport()}})

	w := doRequest(router, http.MethodGet, "/city/Paris/green")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var report models.GreenCoverReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "Paris", report.City)
	assert.InDelta(t, 48.8589, report.Location.Lat, 1e-9)
	assert.InDelta(t, 2.3469, report.Location.Lon, 1e-9)
	assert.InDelta(t, 0.35, report.AvgNDVI, 1e-9)
	assert.InDelta(t, 67.5, report.GreenCoverPercentage, 1e-9)
	assert.Equal(t, "Copernicus Sentinel-2", report.DataSource)
}

func TestRouter_HeatMapAnalysis(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{report: heatReport()}})

	w := doRequest(router, http.MethodGet, "/city/Paris/heatmap")

	assert.Equal(t, http.StatusOK, w.Code)

	var report models.HeatMapReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "Paris", report.City)
	assert.InDelta(t, 29.66, report.AvgLSTCelsius, 1e-9)
	assert.Equal(t, "USGS Landsat 8", report.DataSource)
}

func TestRouter_CityNotFound(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		Analyzer: &stubAnalyzer{err: geocode.ErrCityNotFound},
	})

	w := doRequest(router, http.MethodGet, "/city/Atlantis/green")

	assert.Equal(t, http.StatusNotFound, w.Code)
	problem := decodeProblem(t, w)
	assert.Contains(t, problem.Detail, `City "Atlantis" not found.`)
	assert.NotEmpty(t, problem.TraceID)
}

func TestRouter_NoImagery(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		Analyzer: &stubAnalyzer{err: analysis.ErrNoImagery},
	})

	w := doRequest(router, http.MethodGet, "/city/Tromso/green")

	assert.Equal(t, http.StatusNotFound, w.Code)
	problem := decodeProblem(t, w)
	assert.Contains(t, problem.Detail, "No clear satellite imagery")
	assert.Contains(t, problem.Detail, "Green Cover")
}

func TestRouter_DeclaredButNotImplemented(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		Analyzer: &stubAnalyzer{err: analysis.ErrNotImplemented},
	})

	for _, kind := range []string{"flood", "airquality", "reportcard"} {
		w := doRequest(router, http.MethodGet, "/city/Paris/"+kind)

		assert.Equal(t, http.StatusNotImplemented, w.Code)
		problem := decodeProblem(t, w)
		assert.Contains(t, problem.Detail, "not implemented")
	}
}

func TestRouter_UnknownKind(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{}})

	w := doRequest(router, http.MethodGet, "/city/Paris/sunshine")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	assert.Contains(t, problem.Detail, "sunshine")
}

func TestRouter_UpstreamFailureIsOpaque(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		Analyzer: &stubAnalyzer{err: errors.New("earthengine: quota exceeded for project secret-name")},
	})

	w := doRequest(router, http.MethodGet, "/city/Paris/green")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	problem := decodeProblem(t, w)
	// Internal details must not leak to the client.
	assert.NotContains(t, problem.Detail, "quota")
	assert.NotContains(t, problem.Detail, "secret-name")
	assert.Contains(t, problem.Detail, "upstream")
}

func TestRouter_EmptyCity(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		Analyzer: &stubAnalyzer{err: analysis.ErrEmptyCity},
	})

	w := doRequest(router, http.MethodGet, "/city/%20/green")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	problem := decodeProblem(t, w)
	assert.Contains(t, problem.Detail, "must not be empty")
}

func TestRouter_CircuitOpenReturns503(t *testing.T) {
	router := newTestRouter(api.RouterConfig{
		Analyzer: &stubAnalyzer{
			err: fmt.Errorf("geocoding provider unavailable: %w", resilience.ErrCircuitOpen),
		},
	})

	w := doRequest(router, http.MethodGet, "/city/Paris/green")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	problem := decodeProblem(t, w)
	assert.Contains(t, problem.Detail, "temporarily unavailable")
}

func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(api.RouterConfig{Analyzer: &stubAnalyzer{}})

	w := doRequest(router, http.MethodGet, "/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}
