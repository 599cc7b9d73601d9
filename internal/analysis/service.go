package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/healthycity/healthycity/internal/geocode"
)

const (
	// regionRadiusMeters is the fixed circular region around the city center.
	regionRadiusMeters = 2000

	// maxCloudCover excludes scenes at or above this cloud-cover percentage.
	maxCloudCover = 20
)

// kindSpec binds an implemented kind to its collection and reduction shape.
type kindSpec struct {
	collection    string
	expression    BandExpression
	cloudProperty string
	scaleMeters   float64
	dataSource    string
}

var kindSpecs = map[Kind]kindSpec{
	KindGreen: {
		collection:    "COPERNICUS/S2_SR_HARMONIZED",
		expression:    BandExpression{NormalizedOf: []string{"B8", "B4"}},
		cloudProperty: "CLOUDY_PIXEL_PERCENTAGE",
		scaleMeters:   10,
		dataSource:    "Copernicus Sentinel-2",
	},
	KindHeatmap: {
		collection:    "LANDSAT/LC08/C02/T1_L2",
		expression:    BandExpression{Band: "ST_B10"},
		cloudProperty: "CLOUD_COVER",
		scaleMeters:   30,
		dataSource:    "USGS Landsat 8",
	},
}

// ServiceConfig holds configuration for the analysis service.
type ServiceConfig struct {
	// Geocoder resolves city names to coordinates.
	Geocoder geocode.Resolver

	// Scenes is the earth-observation collaborator.
	Scenes SceneReducer

	// Logger for service operations.
	Logger zerolog.Logger

	// Window is the scene search window ending at now (default: 365 days).
	Window time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service orchestrates one analysis: geocode, reduce, transform.
type Service struct {
	geocoder geocode.Resolver
	scenes   SceneReducer
	logger   zerolog.Logger
	window   time.Duration
	now      func() time.Time
	titler   cases.Caser
}

// NewService creates a new analysis service.
func NewService(cfg ServiceConfig) *Service {
	window := cfg.Window
	if window == 0 {
		window = 365 * 24 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		geocoder: cfg.Geocoder,
		scenes:   cfg.Scenes,
		logger:   cfg.Logger,
		window:   window,
		now:      now,
		titler:   cases.Title(language.English),
	}
}

// Analyze runs the analysis of the given kind for a city. The returned Report
// is complete or the error is one of the package sentinels (possibly wrapped),
// ready for boundary conversion.
func (s *Service) Analyze(ctx context.Context, city string, kind Kind) (*Report, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return nil, ErrEmptyCity
	}

	spec, ok := kindSpecs[kind]
	if !ok {
		if _, err := ParseKind(string(kind)); err != nil {
			return nil, err
		}
		return nil, ErrNotImplemented
	}

	loc, err := s.geocoder.Resolve(ctx, city)
	if err != nil {
		return nil, err
	}

	end := s.now()
	value, err := s.scenes.ReduceMean(ctx, ReduceRequest{
		Collection:    spec.collection,
		Expression:    spec.expression,
		Center:        loc,
		RadiusMeters:  regionRadiusMeters,
		Start:         end.Add(-s.window),
		End:           end,
		CloudProperty: spec.cloudProperty,
		MaxCloudCover: maxCloudCover,
		ScaleMeters:   spec.scaleMeters,
	})
	if err != nil {
		return nil, err
	}

	report := &Report{
		Kind:       kind,
		City:       s.titler.String(city),
		Location:   loc,
		DataSource: spec.dataSource,
	}

	switch kind {
	case KindGreen:
		report.Vegetation = &VegetationMetrics{
			AvgNDVI:              value,
			GreenCoverPercentage: GreenCoverPercentage(value),
		}
	case KindHeatmap:
		report.Thermal = &ThermalMetrics{
			AvgLSTCelsius: SurfaceTempCelsius(value),
		}
	}

	s.logger.Info().
		Str("city", report.City).
		Str("kind", string(kind)).
		Float64("lat", loc.Lat).
		Float64("lon", loc.Lon).
		Float64("raw_value", value).
		Msg("analysis completed")

	return report, nil
}
