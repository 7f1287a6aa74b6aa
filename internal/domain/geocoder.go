package domain

import "context"

// Geocoder turns a typed address into coordinates for the distance filter,
// and coordinates back into a label for display.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, query string) (GeocodingResult, error)
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodingResult, error)
}

// GeocodingResult is a single provider match. The zero value means no match.
type GeocodingResult struct {
	Lat              float64
	Lon              float64
	FormattedAddress string
	PlaceName        string
	Confidence       float64 // provider relevance, 0 to 1
}

// Found reports whether the provider returned a match.
func (r GeocodingResult) Found() bool { return r.FormattedAddress != "" }

// Location converts a match into a user location labeled with the full
// provider address.
func (r GeocodingResult) Location() *Location {
	return &Location{
		Latitude:  r.Lat,
		Longitude: r.Lon,
		Label:     r.FormattedAddress,
	}
}
