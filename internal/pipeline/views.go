package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/store"
)

// ViewRequest is the caller-owned view state plus an optional address to
// resolve into the user location.
type ViewRequest struct {
	State domain.ViewState
	Near  string
}

// ViewResult is a derived view together with the inputs it was derived from.
type ViewResult struct {
	domain.View
	UserLocation *domain.Location
	Status       store.Status
	Notices      []string
}

// Views derives map and table views from the current snapshot.
type Views struct {
	store    *store.Store
	geocoder domain.Geocoder
	logger   *slog.Logger
}

// NewViews creates a Views. Pass a nil geocoder to disable address lookup.
func NewViews(s *store.Store, geocoder domain.Geocoder, logger *slog.Logger) *Views {
	return &Views{
		store:    s,
		geocoder: geocoder,
		logger:   logger,
	}
}

// Derive resolves the user location and derives both views from a single
// snapshot read. Geocoding problems degrade to a notice and an absent location.
func (v *Views) Derive(ctx context.Context, req ViewRequest) ViewResult {
	var notices []string
	state := req.State

	switch {
	case req.Near != "" && v.geocoder == nil:
		notices = append(notices, "address search is disabled")
	case req.Near != "":
		loc, err := domain.ResolveUserLocation(ctx, v.geocoder, req.Near, v.logger)
		switch {
		case errors.Is(err, domain.ErrLocationNotFound):
			notices = append(notices, "no match for "+req.Near)
		case err != nil:
			notices = append(notices, "address search is temporarily unavailable")
		default:
			// The request already carries its page, so no page reset here.
			state.UserLocation = loc
		}
	case state.UserLocation != nil:
		state.UserLocation = domain.LabelLocation(ctx, v.geocoder, state.UserLocation, v.logger)
	}

	status := v.store.Status()
	if status.LastError != "" {
		if status.HasData {
			notices = append(notices, "showing last known data: latest refresh failed")
		} else {
			notices = append(notices, "earthquake data is unavailable: refresh failed")
		}
	}

	return ViewResult{
		View:         domain.Derive(v.store.Collection(), state),
		UserLocation: state.UserLocation,
		Status:       status,
		Notices:      notices,
	}
}
