package http

import "github.com/couchcryptid/quakes-near-me/internal/domain"

// featureCollectionJSON is the GeoJSON form served to map clients. It follows
// the compact feed schema so the raw endpoint can stand in for the feed itself.
type featureCollectionJSON struct {
	Type     string        `json:"type"`
	Features []featureJSON `json:"features"`
	Meta     *mapMeta      `json:"meta,omitempty"`
}

type featureJSON struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Geometry   geometryJSON   `json:"geometry"`
	Properties propertiesJSON `json:"properties"`
}

type geometryJSON struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat] or [lon, lat, depth]
}

type propertiesJSON struct {
	Magnitude     *float64 `json:"magnitude"`
	MagnitudeType string   `json:"magnitude_type,omitempty"`
	Place         string   `json:"place,omitempty"`
	Title         string   `json:"title,omitempty"`
	UTCTime       string   `json:"utc_time,omitempty"`
	MarkerSize    int      `json:"marker_size,omitempty"`
	DistanceKm    *float64 `json:"distance_km,omitempty"`
}

// encodeFeatureCollection converts features to GeoJSON. Display properties
// (marker size, distance from loc) are added only when display is set.
func encodeFeatureCollection(features []domain.Feature, loc *domain.Location, display bool) featureCollectionJSON {
	out := featureCollectionJSON{
		Type:     "FeatureCollection",
		Features: make([]featureJSON, 0, len(features)),
	}
	for i := range features {
		f := &features[i]
		coords := []float64{f.Coordinates.Longitude, f.Coordinates.Latitude}
		if f.Coordinates.Depth != nil {
			coords = append(coords, *f.Coordinates.Depth)
		}
		props := propertiesJSON{
			Magnitude:     f.Magnitude,
			MagnitudeType: f.MagnitudeType,
			Place:         f.Place,
			Title:         f.Title,
			UTCTime:       f.UTCTime,
		}
		if display {
			props.MarkerSize = domain.MarkerRadius(f.Magnitude)
			if loc != nil {
				props.DistanceKm = domain.Float64(domain.DistanceFrom(*loc, *f))
			}
		}
		out.Features = append(out.Features, featureJSON{
			Type:       "Feature",
			ID:         f.ID,
			Geometry:   geometryJSON{Type: "Point", Coordinates: coords},
			Properties: props,
		})
	}
	return out
}
