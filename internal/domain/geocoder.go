package domain

import "context"

// GeocodingResult contains location data returned by a geocoding provider.
type GeocodingResult struct {
	Lat        float64
	Lon        float64
	PlaceName  string
	Confidence float64 // 0.0–1.0 provider confidence score
}

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	// ForwardGeocode converts an address and the municipality it lies in to
	// coordinates. A zero result with a nil error means no match.
	ForwardGeocode(ctx context.Context, address, municipality string) (GeocodingResult, error)
}
