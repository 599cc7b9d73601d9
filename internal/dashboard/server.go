package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/healthycity/healthycity/internal/analysis"
	"github.com/healthycity/healthycity/internal/api/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// ServerConfig holds configuration for the dashboard server.
type ServerConfig struct {
	// Client is the gateway client (required).
	Client *Client

	// Capabilities is the gateway's declared kind list, fetched once at
	// startup. When nil, the locally declared kinds are used as a fallback
	// so the form still renders while the gateway is down.
	Capabilities []models.Capability

	// Logger for server operations.
	Logger zerolog.Logger
}

// Server renders the dashboard. Each submission is one synchronous gateway
// round trip; the page is a pure function of the resulting ViewState.
type Server struct {
	client       *Client
	capabilities []models.Capability
	implemented  map[analysis.Kind]bool
	logger       zerolog.Logger
	tmpl         *template.Template
}

// NewServer creates a new dashboard server.
func NewServer(cfg ServerConfig) (*Server, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	caps := cfg.Capabilities
	if caps == nil {
		for _, k := range analysis.DeclaredKinds() {
			caps = append(caps, models.Capability{
				Kind:        string(k),
				Title:       k.Title(),
				Implemented: k.Implemented(),
			})
		}
	}

	implemented := make(map[analysis.Kind]bool, len(caps))
	for _, c := range caps {
		implemented[analysis.Kind(c.Kind)] = c.Implemented
	}

	return &Server{
		client:       cfg.Client,
		capabilities: caps,
		implemented:  implemented,
		logger:       cfg.Logger,
		tmpl:         tmpl,
	}, nil
}

// Routes returns the dashboard router.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/", s.Index)
	r.Post("/analyze", s.Analyze)
	return r
}

// page is the template input.
type page struct {
	State       ViewState
	Kinds       []models.Capability
	Heading     string
	Subtitle    string
	Placeholder bool
}

// Index handles GET / - the idle dashboard.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	st := ViewState{Phase: PhaseIdle, Kind: analysis.KindGreen}
	s.render(w, st, false)
}

// Analyze handles POST /analyze - one submission round trip.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	city := strings.TrimSpace(r.PostFormValue("city"))
	kind, err := analysis.ParseKind(r.PostFormValue("kind"))
	if err != nil {
		// A kind outside the declared set never reaches the network layer.
		st := Reduce(ViewState{Phase: PhaseIdle}, Submit{City: city, Kind: analysis.KindGreen})
		st = Reduce(st, Failure{Message: "Invalid analysis type selected."})
		s.render(w, st, false)
		return
	}

	st := Reduce(ViewState{Phase: PhaseIdle}, Submit{City: city, Kind: kind})

	if city == "" {
		st = Reduce(st, Failure{Message: "Please enter a city name."})
		s.render(w, st, false)
		return
	}

	// Kinds the gateway has not implemented never reach the network layer.
	if !s.implemented[kind] {
		s.render(w, st, true)
		return
	}

	result, err := s.client.Analyze(r.Context(), city, kind)
	if err != nil {
		st = Reduce(st, Failure{Message: BannerMessage(err)})
	} else {
		st = Reduce(st, Success{Result: result})
	}

	s.render(w, st, false)
}

func (s *Server) render(w http.ResponseWriter, st ViewState, placeholder bool) {
	heading, subtitle := headingFor(st.Kind)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.tmpl.ExecuteTemplate(w, "index.html.tmpl", page{
		State:       st,
		Kinds:       s.capabilities,
		Heading:     heading,
		Subtitle:    subtitle,
		Placeholder: placeholder,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("template render failed")
	}
}

func headingFor(kind analysis.Kind) (heading, subtitle string) {
	switch kind {
	case analysis.KindGreen:
		return "🌳 Urban Green Cover",
			"Normalized Difference Vegetation Index (NDVI) from Sentinel-2 imagery, averaged over the city center."
	case analysis.KindHeatmap:
		return "🔥 Urban Heat Map",
			"Land Surface Temperature (LST) from Landsat 8 thermal bands, averaged over the city center."
	default:
		return "📊 " + kind.Title(), ""
	}
}
