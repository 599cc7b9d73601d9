// Package geocode defines the city-to-coordinate resolution contract.
package geocode

import (
	"context"
	"errors"
)

// Predefined errors for geocoding operations.
var (
	// ErrCityNotFound is returned when the geocoding provider has no match for a city.
	ErrCityNotFound = errors.New("city not found")

	// ErrProviderUnavailable is returned on transport-level failures to the provider.
	ErrProviderUnavailable = errors.New("geocoding provider unavailable")
)

// Location is a geographic coordinate pair.
type Location struct {
	Lat float64
	Lon float64
}

// Resolver resolves a free-text city name to a single best-guess location.
// Results are not memoized; the provider may return different coordinates
// over time for ambiguous names.
type Resolver interface {
	// Resolve returns the best-guess location for the given city name.
	// Returns ErrCityNotFound if the provider has no match and
	// ErrProviderUnavailable on transport failures.
	Resolve(ctx context.Context, city string) (Location, error)
}
