// Package analysis implements the city environmental-index analyses: it
// resolves a city to coordinates, selects the clearest satellite scene over a
// small region, reduces a band expression to one scalar, and reports derived
// metrics.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/healthycity/healthycity/internal/geocode"
)

// Predefined errors for analysis operations.
var (
	// ErrEmptyCity is returned when the submitted city name is empty.
	ErrEmptyCity = errors.New("city name must not be empty")

	// ErrUnknownKind is returned for an analysis kind the system has never
	// declared.
	ErrUnknownKind = errors.New("unknown analysis kind")

	// ErrNotImplemented is returned for a declared kind without a server
	// implementation.
	ErrNotImplemented = errors.New("analysis kind not implemented")

	// ErrNoImagery is returned when the scene collection is empty after
	// cloud filtering.
	ErrNoImagery = errors.New("no usable satellite imagery")

	// ErrNoData is returned when the region reduction yields no value
	// (all pixels masked out).
	ErrNoData = errors.New("no valid pixels in region")

	// ErrProviderUnavailable is returned on transport-level failures to the
	// earth-observation service.
	ErrProviderUnavailable = errors.New("earth observation service unavailable")
)

// Kind identifies one analysis offered by the dashboard.
type Kind string

// Declared analysis kinds. Only KindGreen and KindHeatmap are implemented;
// the rest are declared so the dashboard can render placeholders for them.
const (
	KindGreen      Kind = "green"
	KindHeatmap    Kind = "heatmap"
	KindFlood      Kind = "flood"
	KindAirQuality Kind = "airquality"
	KindReportCard Kind = "reportcard"
)

// declaredKinds is the closed set of kinds, in display order.
var declaredKinds = []Kind{KindGreen, KindHeatmap, KindFlood, KindAirQuality, KindReportCard}

// ParseKind validates a path segment against the declared kinds.
func ParseKind(s string) (Kind, error) {
	for _, k := range declaredKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// DeclaredKinds returns every declared kind, implemented or not.
func DeclaredKinds() []Kind {
	out := make([]Kind, len(declaredKinds))
	copy(out, declaredKinds)
	return out
}

// Implemented reports whether the gateway can serve this kind.
func (k Kind) Implemented() bool {
	return k == KindGreen || k == KindHeatmap
}

// Title returns the human-readable name for a kind.
func (k Kind) Title() string {
	switch k {
	case KindGreen:
		return "Green Cover"
	case KindHeatmap:
		return "Heat Map"
	case KindFlood:
		return "Flood Risk"
	case KindAirQuality:
		return "Air Quality"
	case KindReportCard:
		return "Report Card"
	default:
		return string(k)
	}
}

// VegetationMetrics are the metrics produced by a green-cover analysis.
type VegetationMetrics struct {
	// AvgNDVI is the mean normalized difference vegetation index, in [-1, 1].
	AvgNDVI float64

	// GreenCoverPercentage is AvgNDVI mapped onto [0, 100].
	GreenCoverPercentage float64
}

// ThermalMetrics are the metrics produced by a heat-map analysis.
type ThermalMetrics struct {
	// AvgLSTCelsius is the mean land surface temperature in degrees Celsius.
	AvgLSTCelsius float64
}

// Report is the complete outcome of one analysis. It is never partially
// populated: either geocoding and the remote reduction both succeeded, or no
// Report exists. Exactly one of Vegetation/Thermal is set, matching Kind.
type Report struct {
	Kind       Kind
	City       string
	Location   geocode.Location
	DataSource string

	Vegetation *VegetationMetrics
	Thermal    *ThermalMetrics
}

// BandExpression describes the per-pixel quantity to reduce. When
// NormalizedOf has two bands the expression is (a-b)/(a+b); otherwise the
// single named Band is used as-is.
type BandExpression struct {
	Band         string
	NormalizedOf []string
}

// ReduceRequest describes one mean reduction over a circular region, fed to
// the earth-observation collaborator.
type ReduceRequest struct {
	// Collection is the satellite image collection asset ID.
	Collection string

	// Expression is the band combination to reduce.
	Expression BandExpression

	// Center and RadiusMeters define the circular region.
	Center       geocode.Location
	RadiusMeters float64

	// Start and End bound the scene search window.
	Start time.Time
	End   time.Time

	// CloudProperty names the per-scene cloud-cover metadata property;
	// scenes at or above MaxCloudCover are excluded and the least cloudy
	// remaining scene is chosen.
	CloudProperty string
	MaxCloudCover float64

	// ScaleMeters is the sampling resolution of the reduction.
	ScaleMeters float64
}

// SceneReducer is the earth-observation collaborator: scene selection,
// filtering and spatial reduction all happen remotely.
type SceneReducer interface {
	// ReduceMean returns the mean of the band expression over the region,
	// computed on the clearest scene in the window. Returns ErrNoImagery
	// when no scene survives the cloud filter and ErrNoData when the
	// reduction yields no value.
	ReduceMean(ctx context.Context, req ReduceRequest) (float64, error)
}
