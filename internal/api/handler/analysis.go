// Package handler provides HTTP handlers for the HealthyCity API.
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/healthycity/healthycity/internal/analysis"
	"github.com/healthycity/healthycity/internal/api/models"
	"github.com/healthycity/healthycity/internal/api/response"
	"github.com/healthycity/healthycity/internal/geocode"
	"github.com/healthycity/healthycity/internal/provider/resilience"
)

// Analyzer runs one city analysis.
type Analyzer interface {
	Analyze(ctx context.Context, city string, kind analysis.Kind) (*analysis.Report, error)
}

// AnalysisHandler handles the city analysis endpoints.
type AnalysisHandler struct {
	analyzer Analyzer
	logger   zerolog.Logger
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analyzer Analyzer, logger zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analyzer: analyzer,
		logger:   logger,
	}
}

// CityAnalysis handles GET /city/{city}/{kind}.
func (h *AnalysisHandler) CityAnalysis(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	kindParam := chi.URLParam(r, "kind")

	kind, err := analysis.ParseKind(kindParam)
	if err != nil {
		response.BadRequest(w, r, fmt.Sprintf("unsupported analysis kind %q", kindParam))
		return
	}

	report, err := h.analyzer.Analyze(r.Context(), city, kind)
	if err != nil {
		h.writeAnalysisError(w, r, city, kind, err)
		return
	}

	location := models.Point{Lat: report.Location.Lat, Lon: report.Location.Lon}

	switch kind {
	case analysis.KindGreen:
		response.JSON(w, r, http.StatusOK, models.GreenCoverReport{
			City:                 report.City,
			Location:             location,
			AvgNDVI:              report.Vegetation.AvgNDVI,
			GreenCoverPercentage: report.Vegetation.GreenCoverPercentage,
			DataSource:           report.DataSource,
		})
	case analysis.KindHeatmap:
		response.JSON(w, r, http.StatusOK, models.HeatMapReport{
			City:          report.City,
			Location:      location,
			AvgLSTCelsius: report.Thermal.AvgLSTCelsius,
			DataSource:    report.DataSource,
		})
	}
}

// Capabilities handles GET /capabilities. The dashboard checks its selection
// against this list instead of keeping a parallel hardcoded one.
func (h *AnalysisHandler) Capabilities(w http.ResponseWriter, r *http.Request) {
	kinds := analysis.DeclaredKinds()
	caps := models.Capabilities{Kinds: make([]models.Capability, 0, len(kinds))}
	for _, k := range kinds {
		caps.Kinds = append(caps.Kinds, models.Capability{
			Kind:        string(k),
			Title:       k.Title(),
			Implemented: k.Implemented(),
		})
	}
	response.JSON(w, r, http.StatusOK, caps)
}

// writeAnalysisError converts a domain error into its problem response. No
// collaborator error leaves this boundary unconverted.
func (h *AnalysisHandler) writeAnalysisError(w http.ResponseWriter, r *http.Request, city string, kind analysis.Kind, err error) {
	switch {
	case errors.Is(err, analysis.ErrEmptyCity):
		response.BadRequest(w, r, "city name must not be empty")
	case errors.Is(err, analysis.ErrNotImplemented):
		response.NotImplemented(w, r, fmt.Sprintf("%s analysis is not implemented yet", kind.Title()))
	case errors.Is(err, geocode.ErrCityNotFound):
		response.NotFound(w, r, fmt.Sprintf("City %q not found.", city))
	case errors.Is(err, analysis.ErrNoImagery), errors.Is(err, analysis.ErrNoData):
		response.NotFound(w, r, fmt.Sprintf(
			"Could not compute %s for %s. No clear satellite imagery might be available.",
			kind.Title(), city))
	case errors.Is(err, resilience.ErrCircuitOpen):
		// The breaker failed fast; the collaborator was never contacted.
		response.ServiceUnavailable(w, r,
			"An upstream service is temporarily unavailable. Please try again shortly.")
	default:
		h.logger.Error().
			Err(err).
			Str("city", city).
			Str("kind", string(kind)).
			Msg("analysis failed")
		response.InternalError(w, r, "An error occurred while contacting an upstream service.")
	}
}
