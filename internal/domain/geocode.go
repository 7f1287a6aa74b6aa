package domain

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// ErrLocationNotFound is returned when the geocoder has no match for a query.
var ErrLocationNotFound = errors.New("location not found")

// ResolveUserLocation turns a free-form address into a user Location. A nil
// geocoder or an empty query yields (nil, nil): the views are derived without
// a location and the distance predicate holds vacuously.
func ResolveUserLocation(ctx context.Context, geocoder Geocoder, query string, logger *slog.Logger) (*Location, error) {
	query = strings.TrimSpace(query)
	if geocoder == nil || query == "" {
		return nil, nil
	}

	result, err := geocoder.ForwardGeocode(ctx, query)
	if err != nil {
		logger.Warn("forward geocoding failed", "query", query, "error", err)
		return nil, err
	}
	if !result.Found() {
		return nil, ErrLocationNotFound
	}
	return result.Location(), nil
}

// LabelLocation fills in a missing label by reverse geocoding. Failures leave
// the location unlabeled.
func LabelLocation(ctx context.Context, geocoder Geocoder, loc *Location, logger *slog.Logger) *Location {
	if geocoder == nil || loc == nil || loc.Label != "" {
		return loc
	}

	result, err := geocoder.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		logger.Warn("reverse geocoding failed",
			"lat", loc.Latitude,
			"lon", loc.Longitude,
			"error", err,
		)
		return loc
	}
	if !result.Found() {
		return loc
	}
	labeled := *loc
	labeled.Label = result.FormattedAddress
	return &labeled
}
