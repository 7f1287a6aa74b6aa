package http

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/pipeline"
	"golang.org/x/text/language"
)

const maxPageSize = 500

// parseViewRequest builds the view state from query parameters. Missing or
// unparsable values keep their defaults, so a request never fails on view state.
func parseViewRequest(q url.Values, defaultPageSize int) pipeline.ViewRequest {
	filter := domain.DefaultFilterConfig()
	filter.Magnitude.Min = floatParam(q, "min_magnitude", filter.Magnitude.Min)
	filter.Magnitude.Max = floatParam(q, "max_magnitude", filter.Magnitude.Max)
	filter.Depth.Min = floatParam(q, "min_depth", filter.Depth.Min)
	filter.Depth.Max = floatParam(q, "max_depth", filter.Depth.Max)
	if v, err := strconv.ParseBool(q.Get("distance")); err == nil {
		filter.Distance.Enabled = v
	}
	if km := floatParam(q, "max_distance_km", filter.Distance.MaxKm); km >= 0 {
		filter.Distance.MaxKm = km
	}

	sortCfg := domain.SortConfig{
		Key:       domain.ParseSortKey(q.Get("sort")),
		Direction: domain.ParseDirection(q.Get("dir")),
	}
	if tag, err := language.Parse(q.Get("lang")); err == nil {
		sortCfg.Locale = tag
	}

	pageSize := defaultPageSize
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 {
		pageSize = min(n, maxPageSize)
	}
	page := 0
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}

	state := domain.ViewState{
		Filter:       filter,
		Sort:         sortCfg,
		PageIndex:    page,
		PageSize:     pageSize,
		UserLocation: locationParam(q),
	}
	return pipeline.ViewRequest{
		State: state,
		Near:  strings.TrimSpace(q.Get("near")),
	}
}

func floatParam(q url.Values, key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(q.Get(key)), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// locationParam returns the lat/lon pair when both are present and in range.
func locationParam(q url.Values) *domain.Location {
	lat := floatParam(q, "lat", math.NaN())
	lon := floatParam(q, "lon", math.NaN())
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil
	}
	return &domain.Location{Latitude: lat, Longitude: lon}
}
