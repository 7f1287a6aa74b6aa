package domain

import (
	"encoding/json"
	"time"
)

// UTCTimeLayout is the layout of the utc_time property.
const UTCTimeLayout = "2006-01-02 15:04:05"

// RawFeatureCollection is the top-level GeoJSON document as delivered by the feed.
// Features are kept raw so a single malformed entry does not reject the document.
type RawFeatureCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// RawFeature is one GeoJSON feature before normalization.
type RawFeature struct {
	Type       string          `json:"type"`
	ID         json.RawMessage `json:"id"`
	Geometry   *RawGeometry    `json:"geometry"`
	Properties RawProperties   `json:"properties"`
}

// RawGeometry holds the point coordinates. Depth is the legacy location of the
// third coordinate.
type RawGeometry struct {
	Type        string          `json:"type"`
	Coordinates []*float64      `json:"coordinates"`
	Depth       json.RawMessage `json:"depth"`
}

// RawProperties covers both the compact and the native USGS property names.
type RawProperties struct {
	Magnitude     json.RawMessage `json:"magnitude"`
	Mag           json.RawMessage `json:"mag"`
	MagnitudeType string          `json:"magnitude_type"`
	MagType       string          `json:"magType"`
	Place         string          `json:"place"`
	Title         string          `json:"title"`
	UTCTime       string          `json:"utc_time"`
	Time          json.RawMessage `json:"time"` // epoch milliseconds
}

// Coordinates is a WGS-84 point with an optional depth in kilometres.
type Coordinates struct {
	Longitude float64  `json:"longitude"`
	Latitude  float64  `json:"latitude"`
	Depth     *float64 `json:"depth,omitempty"` // absolute km, nil when absent
}

// Feature is a normalized earthquake event.
type Feature struct {
	ID            string      `json:"id"`
	Coordinates   Coordinates `json:"coordinates"`
	Magnitude     *float64    `json:"magnitude,omitempty"`
	MagnitudeType string      `json:"magnitude_type,omitempty"`
	Place         string      `json:"place,omitempty"`
	Title         string      `json:"title,omitempty"`
	UTCTime       string      `json:"utc_time,omitempty"`
	Time          time.Time   `json:"-"` // parsed UTCTime, zero when unparsable
}

// FeatureCollection is an ordered snapshot of features in delivery order.
type FeatureCollection struct {
	Features  []Feature
	FetchedAt time.Time
	Skipped   int // malformed features dropped during parsing
}

// Len returns the number of features.
func (c FeatureCollection) Len() int { return len(c.Features) }

// Location is the user's position. A nil *Location means no location is known.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Label     string  `json:"label,omitempty"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }
