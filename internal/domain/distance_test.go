package domain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		want                   float64
		delta                  float64
	}{
		{"identical points", 35.77, -117.59, 35.77, -117.59, 0, 0},
		{"one degree of latitude", 0, 0, 1, 0, 111.19, 0.01},
		{"half meridian", 90, 0, -90, 0, math.Pi * EarthRadiusKm, 1e-6},
		{"antipodal on equator", 0, 0, 0, 180, math.Pi * EarthRadiusKm, 1e-6},
		{"antipodal off axis", 45, 10, -45, -170, math.Pi * EarthRadiusKm, 1e-6},
		{"Los Angeles to San Francisco", 34.0522, -118.2437, 37.7749, -122.4194, 559.1, 1.0},
		{"across the antimeridian", 0, 179.5, 0, -179.5, 111.19, 0.01},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DistanceKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.delta)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestDistanceKm_NonFinite(t *testing.T) {
	assert.True(t, math.IsInf(DistanceKm(math.NaN(), 0, 0, 0), 1))
	assert.True(t, math.IsInf(DistanceKm(0, math.Inf(1), 0, 0), 1))
}

func TestDistanceKm_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	point := func() (float64, float64) {
		return rng.Float64()*180 - 90, rng.Float64()*360 - 180
	}

	for range 2000 {
		lat1, lon1 := point()
		lat2, lon2 := point()

		d := DistanceKm(lat1, lon1, lat2, lon2)

		assert.GreaterOrEqual(t, d, 0.0)
		assert.LessOrEqual(t, d, math.Pi*EarthRadiusKm+1e-9)
		assert.Equal(t, d, DistanceKm(lat2, lon2, lat1, lon1), "distance must be symmetric")
		assert.Zero(t, DistanceKm(lat1, lon1, lat1, lon1))
	}
}

func TestDistanceFrom(t *testing.T) {
	loc := Location{Latitude: 35.62, Longitude: -117.67}
	f := Feature{Coordinates: Coordinates{Longitude: -117.67, Latitude: 35.62}}
	assert.Zero(t, DistanceFrom(loc, f))
}
