package dashboard

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthycity/healthycity/internal/api/models"
)

// newTestServer wires a dashboard server against a fake gateway and returns
// both, plus a counter of gateway requests.
func newTestServer(t *testing.T, gateway http.HandlerFunc) (*Server, *atomic.Int64) {
	t.Helper()

	var calls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gateway(w, r)
	}))
	t.Cleanup(upstream.Close)

	client := NewClient(ClientConfig{BaseURL: upstream.URL, Logger: zerolog.Nop()})
	srv, err := NewServer(ServerConfig{Client: client, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return srv, &calls
}

func postForm(t *testing.T, srv *Server, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)
	return w
}

func TestIndex_RendersIdleForm(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `name="city"`)
	assert.Contains(t, body, "Green Cover")
	assert.Contains(t, body, "Report Card")
	assert.Contains(t, body, "Search for a city to see its metrics.")
	assert.Contains(t, body, "Map will be displayed here once data is loaded.")
	assert.Equal(t, int64(0), calls.Load())
}

func TestAnalyze_RendersMetricsAndMap(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/city/Paris/green", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"city": "Paris",
			"location": {"lat": 48.8589, "lon": 2.3469},
			"avg_ndvi": 0.35,
			"green_cover_percentage": 67.5,
			"data_source": "Copernicus Sentinel-2"
		}`))
	})

	w := postForm(t, srv, url.Values{"city": {"Paris"}, "kind": {"green"}})

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "67.50%")
	assert.Contains(t, body, "0.3500")
	assert.Contains(t, body, "Copernicus Sentinel-2")
	assert.Contains(t, body, `id="map"`)
	assert.Contains(t, body, "48.8589")
}

func TestAnalyze_RendersErrorBanner(t *testing.T) {
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/problem+json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"about:blank","title":"Not found","status":404,"detail":"City \"Atlantis\" not found.","traceId":"req_x"}`))
	})

	w := postForm(t, srv, url.Values{"city": {"Atlantis"}, "kind": {"green"}})

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "API error")
	assert.Contains(t, body, "Atlantis")
	assert.NotContains(t, body, `id="map"`)
}

func TestAnalyze_UnimplementedKindSkipsGateway(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called for unimplemented kinds")
	})

	for _, kind := range []string{"flood", "airquality", "reportcard"} {
		w := postForm(t, srv, url.Values{"city": {"Paris"}, "kind": {kind}})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "under construction")
	}
	assert.Equal(t, int64(0), calls.Load())
}

func TestAnalyze_UnknownKindSkipsGateway(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called for an undeclared kind")
	})

	w := postForm(t, srv, url.Values{"city": {"Paris"}, "kind": {"sunshine"}})

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Invalid analysis type selected.")
	assert.NotContains(t, body, `id="map"`)
	assert.Equal(t, int64(0), calls.Load())
}

func TestAnalyze_EmptyCitySkipsGateway(t *testing.T) {
	srv, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("gateway must not be called for an empty submission")
	})

	w := postForm(t, srv, url.Values{"city": {"   "}, "kind": {"green"}})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Please enter a city name.")
	assert.Equal(t, int64(0), calls.Load())
}

func TestAnalyze_ResubmitAfterFailureRecovers(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	srv, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"city":"Paris","location":{"lat":48.85,"lon":2.35},"avg_ndvi":0.3,"green_cover_percentage":65,"data_source":"Copernicus Sentinel-2"}`))
	})

	w := postForm(t, srv, url.Values{"city": {"Paris"}, "kind": {"green"}})
	assert.Contains(t, w.Body.String(), "API error")

	fail.Store(false)
	w = postForm(t, srv, url.Values{"city": {"Paris"}, "kind": {"green"}})
	body := w.Body.String()
	assert.NotContains(t, body, "API error")
	assert.Contains(t, body, "65.00%")
}

func TestNewServer_GatewayCapabilitiesOverrideDefaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", Logger: zerolog.Nop()})
	srv, err := NewServer(ServerConfig{
		Client: client,
		Capabilities: []models.Capability{
			{Kind: "green", Title: "Green Cover", Implemented: true},
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	w := httptest.NewRecorder()
	srv.Routes().ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, "Green Cover")
	assert.NotContains(t, body, "Report Card")
}
