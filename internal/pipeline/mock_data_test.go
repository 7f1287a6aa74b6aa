package pipeline_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"github.com/couchcryptid/quakes-near-me/internal/pipeline"
	"github.com/couchcryptid/quakes-near-me/internal/store"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileFetcher serves a recorded feed document from testdata.
type fileFetcher struct {
	path string
}

func (f fileFetcher) Fetch(_ context.Context) (domain.FeatureCollection, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return domain.FeatureCollection{}, err
	}
	return domain.ParseFeatureCollection(data)
}

func loadRecordedDay(t *testing.T) (*store.Store, *pipeline.Views) {
	t.Helper()
	st := store.New()
	r := pipeline.New(fileFetcher{path: filepath.Join("testdata", "feed_day.geojson")}, st, testInterval,
		discardLogger(), observability.NewMetricsForTesting())

	accepted, err := r.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, accepted)
	return st, pipeline.NewViews(st, nil, discardLogger())
}

func TestRecordedDay_Ingestion(t *testing.T) {
	st, _ := loadRecordedDay(t)

	c := st.Collection()
	assert.Equal(t, 23, c.Len())
	assert.Equal(t, 1, c.Skipped)

	byID := make(map[string]domain.Feature, c.Len())
	for _, f := range c.Features {
		byID[f.ID] = f
	}

	hawaii := byID["hv74210000"]
	require.NotNil(t, hawaii.Coordinates.Depth)
	assert.InDelta(t, 1.1, *hawaii.Coordinates.Depth, 1e-9, "negative depth is stored as absolute")

	legacy := byID["legacy0001"]
	require.NotNil(t, legacy.Coordinates.Depth)
	assert.InDelta(t, 4.2, *legacy.Coordinates.Depth, 1e-9)
	require.NotNil(t, legacy.Magnitude)
	assert.InDelta(t, 1.45, *legacy.Magnitude, 1e-9)

	native := byID["us7000mabj"]
	assert.Equal(t, "ml", native.MagnitudeType)
	assert.Equal(t, "2024-04-26 14:00:00", native.UTCTime)

	assert.Nil(t, byID["nomag00001"].Magnitude)
}

func TestRecordedDay_StrongEventsByMagnitude(t *testing.T) {
	_, views := loadRecordedDay(t)

	cfg := domain.DefaultFilterConfig()
	cfg.Magnitude = domain.Range{Min: 4, Max: 10}
	state := domain.NewViewState().
		WithFilter(cfg).
		WithSort(domain.SortConfig{Key: domain.SortMagnitude, Direction: domain.Descending})

	res := views.Derive(context.Background(), pipeline.ViewRequest{State: state})

	want := []string{"us7000mabf", "us7000mabc", "us7000mabh", "us7000mabi", "us7000mabd", "us7000mabg", "us7000mabe"}
	if diff := cmp.Diff(want, featureIDs(res.Map)); diff != "" {
		t.Errorf("map view mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, want, featureIDs(res.Table.Items))
	assert.Empty(t, res.Notices)
}

func TestRecordedDay_NearRidgecrest(t *testing.T) {
	_, views := loadRecordedDay(t)

	cfg := domain.DefaultFilterConfig()
	cfg.Distance = domain.DistanceFilter{MaxKm: 300, Enabled: true}
	state := domain.NewViewState().
		WithFilter(cfg).
		WithSort(domain.SortConfig{Key: domain.SortMagnitude, Direction: domain.Descending}).
		WithUserLocation(&domain.Location{Latitude: 35.6225, Longitude: -117.6709})

	res := views.Derive(context.Background(), pipeline.ViewRequest{State: state})

	assert.Equal(t, []string{"us7000mabj", "ci40771234", "ci40771300", "nn00870001", "ci40771420"}, featureIDs(res.Map))
}

func TestRecordedDay_Pagination(t *testing.T) {
	_, views := loadRecordedDay(t)

	state := domain.NewViewState()
	state.PageSize = 10

	var all []string
	for page := 0; ; page++ {
		res := views.Derive(context.Background(), pipeline.ViewRequest{State: state.WithPage(page)})
		all = append(all, featureIDs(res.Table.Items)...)
		if !res.Table.HasNext() {
			assert.Equal(t, 2, res.Table.Index)
			assert.Len(t, res.Table.Items, 2)
			assert.Equal(t, featureIDs(res.Map), all)
			break
		}
	}
	assert.Len(t, all, 22, "the feature without a magnitude never passes the magnitude range")
}

func featureIDs(features []domain.Feature) []string {
	out := make([]string, len(features))
	for i, f := range features {
		out[i] = f.ID
	}
	return out
}
