package domain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mock geocoder ---

type mockGeocoder struct {
	forwardResult GeocodingResult
	forwardErr    error
	reverseResult GeocodingResult
	reverseErr    error
	forwardCalls  int
	reverseCalls  int
	lastQuery     string
}

func (m *mockGeocoder) ForwardGeocode(_ context.Context, query string) (GeocodingResult, error) {
	m.forwardCalls++
	m.lastQuery = query
	return m.forwardResult, m.forwardErr
}

func (m *mockGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodingResult, error) {
	m.reverseCalls++
	return m.reverseResult, m.reverseErr
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- tests ---

func TestResolveUserLocation_NilGeocoder(t *testing.T) {
	loc, err := ResolveUserLocation(context.Background(), nil, "Ridgecrest, CA", discardLogger())
	require.NoError(t, err)
	assert.Nil(t, loc)
}

func TestResolveUserLocation_EmptyQuery(t *testing.T) {
	geo := &mockGeocoder{}

	loc, err := ResolveUserLocation(context.Background(), geo, "   ", discardLogger())

	require.NoError(t, err)
	assert.Nil(t, loc)
	assert.Equal(t, 0, geo.forwardCalls)
}

func TestResolveUserLocation_Found(t *testing.T) {
	geo := &mockGeocoder{
		forwardResult: GeocodingResult{
			Lat:              35.6225,
			Lon:              -117.6709,
			FormattedAddress: "Ridgecrest, California, United States",
			PlaceName:        "Ridgecrest",
			Confidence:       0.97,
		},
	}

	loc, err := ResolveUserLocation(context.Background(), geo, " Ridgecrest, CA ", discardLogger())

	require.NoError(t, err)
	require.NotNil(t, loc)
	assert.Equal(t, "Ridgecrest, CA", geo.lastQuery)
	assert.Equal(t, 35.6225, loc.Latitude)
	assert.Equal(t, -117.6709, loc.Longitude)
	assert.Equal(t, "Ridgecrest, California, United States", loc.Label)
}

func TestResolveUserLocation_NotFound(t *testing.T) {
	geo := &mockGeocoder{}

	loc, err := ResolveUserLocation(context.Background(), geo, "nowhere at all", discardLogger())

	require.ErrorIs(t, err, ErrLocationNotFound)
	assert.Nil(t, loc)
}

func TestResolveUserLocation_Error(t *testing.T) {
	geo := &mockGeocoder{forwardErr: errors.New("timeout")}

	loc, err := ResolveUserLocation(context.Background(), geo, "Anchorage", discardLogger())

	require.Error(t, err)
	assert.Nil(t, loc)
}

func TestLabelLocation(t *testing.T) {
	t.Run("fills missing label", func(t *testing.T) {
		geo := &mockGeocoder{reverseResult: GeocodingResult{FormattedAddress: "Anchorage, Alaska"}}
		in := &Location{Latitude: 61.2, Longitude: -149.9}

		out := LabelLocation(context.Background(), geo, in, discardLogger())

		assert.Equal(t, "Anchorage, Alaska", out.Label)
		assert.Empty(t, in.Label, "input must not be mutated")
	})

	t.Run("keeps existing label", func(t *testing.T) {
		geo := &mockGeocoder{}
		in := &Location{Latitude: 61.2, Longitude: -149.9, Label: "home"}

		out := LabelLocation(context.Background(), geo, in, discardLogger())

		assert.Same(t, in, out)
		assert.Equal(t, 0, geo.reverseCalls)
	})

	t.Run("error leaves location unlabeled", func(t *testing.T) {
		geo := &mockGeocoder{reverseErr: errors.New("boom")}
		in := &Location{Latitude: 61.2, Longitude: -149.9}

		out := LabelLocation(context.Background(), geo, in, discardLogger())

		assert.Same(t, in, out)
		assert.Empty(t, out.Label)
	})

	t.Run("nil location", func(t *testing.T) {
		assert.Nil(t, LabelLocation(context.Background(), &mockGeocoder{}, nil, discardLogger()))
	})
}
