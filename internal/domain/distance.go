package domain

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distance.
const EarthRadiusKm = 6371.0

// DistanceKm returns the Haversine great-circle distance in kilometres between
// two points given in decimal degrees. The result is never negative, is exactly
// symmetric in its arguments, and is +Inf when any input is not finite.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	if !finite(lat1) || !finite(lon1) || !finite(lat2) || !finite(lon2) {
		return math.Inf(1)
	}
	if lat1 == lat2 && lon1 == lon2 {
		return 0
	}
	// Floating-point products depend on operand order; evaluate in a fixed
	// order so d(a, b) and d(b, a) are bit-identical.
	if lat2 < lat1 || (lat2 == lat1 && lon2 < lon1) {
		lat1, lon1, lat2, lon2 = lat2, lon2, lat1, lon1
	}
	a := s2.LatLngFromDegrees(lat1, lon1)
	b := s2.LatLngFromDegrees(lat2, lon2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// DistanceFrom returns the distance between a location and a feature's epicentre.
func DistanceFrom(loc Location, f Feature) float64 {
	return DistanceKm(loc.Latitude, loc.Longitude, f.Coordinates.Latitude, f.Coordinates.Longitude)
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
