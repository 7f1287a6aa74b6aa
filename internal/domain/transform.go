package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNotFeatureCollection is returned when the document's type is not FeatureCollection.
	ErrNotFeatureCollection = errors.New("document is not a FeatureCollection")

	// ErrMalformedFeature marks a feature that cannot be placed on a map.
	ErrMalformedFeature = errors.New("malformed feature")
)

// ParseFeatureCollection decodes a GeoJSON feature collection and normalizes
// every feature. Only a document-level failure is returned as an error;
// malformed features are dropped and counted in Skipped.
func ParseFeatureCollection(data []byte) (FeatureCollection, error) {
	var doc RawFeatureCollection
	if err := json.Unmarshal(data, &doc); err != nil {
		return FeatureCollection{}, fmt.Errorf("decode feature collection: %w", err)
	}
	if doc.Type != "" && doc.Type != "FeatureCollection" {
		return FeatureCollection{}, fmt.Errorf("%w: type %q", ErrNotFeatureCollection, doc.Type)
	}

	out := FeatureCollection{
		Features:  make([]Feature, 0, len(doc.Features)),
		FetchedAt: clock.Now().UTC(),
	}
	for _, raw := range doc.Features {
		f, err := ParseFeature(raw)
		if err != nil {
			out.Skipped++
			continue
		}
		out.Features = append(out.Features, f)
	}
	return out, nil
}

// ParseFeature normalizes a single raw GeoJSON feature.
func ParseFeature(data []byte) (Feature, error) {
	var raw RawFeature
	if err := json.Unmarshal(data, &raw); err != nil {
		return Feature{}, fmt.Errorf("%w: %w", ErrMalformedFeature, err)
	}
	if raw.Geometry == nil {
		return Feature{}, fmt.Errorf("%w: missing geometry", ErrMalformedFeature)
	}

	coords := raw.Geometry.Coordinates
	if len(coords) < 2 || coords[0] == nil || coords[1] == nil {
		return Feature{}, fmt.Errorf("%w: need longitude and latitude", ErrMalformedFeature)
	}
	lon, lat := *coords[0], *coords[1]
	if !validLongitude(lon) || !validLatitude(lat) {
		return Feature{}, fmt.Errorf("%w: coordinates out of range [%g, %g]", ErrMalformedFeature, lon, lat)
	}

	var depth *float64
	if len(coords) > 2 && coords[2] != nil {
		depth = coords[2]
	} else {
		depth = parseOptionalFloat(raw.Geometry.Depth)
	}

	props := raw.Properties
	mag := parseOptionalFloat(props.Magnitude)
	if mag == nil {
		mag = parseOptionalFloat(props.Mag)
	}
	utc, t := resolveTime(props.UTCTime, props.Time)

	f := Feature{
		Coordinates: Coordinates{
			Longitude: lon,
			Latitude:  lat,
			Depth:     canonicalDepth(depth),
		},
		Magnitude:     mag,
		MagnitudeType: firstNonEmpty(props.MagnitudeType, props.MagType),
		Place:         strings.TrimSpace(props.Place),
		Title:         strings.TrimSpace(props.Title),
		UTCTime:       utc,
		Time:          t,
	}
	f.ID = parseID(raw.ID)
	if f.ID == "" {
		f.ID = generateID(f)
	}
	return f, nil
}

func validLongitude(v float64) bool { return !math.IsNaN(v) && v >= -180 && v <= 180 }
func validLatitude(v float64) bool  { return !math.IsNaN(v) && v >= -90 && v <= 90 }

// canonicalDepth stores depth as absolute kilometres.
func canonicalDepth(d *float64) *float64 {
	if d == nil || math.IsNaN(*d) || math.IsInf(*d, 0) {
		return nil
	}
	v := math.Abs(*d)
	return &v
}

// parseOptionalFloat accepts a JSON number, a numeric string, "", or null.
func parseOptionalFloat(raw json.RawMessage) *float64 {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		s = strings.TrimSpace(s)
	}
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

var utcTimeLayouts = []string{
	UTCTimeLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
}

// resolveTime prefers the formatted utc_time and falls back to epoch milliseconds.
func resolveTime(utc string, epochMillis json.RawMessage) (string, time.Time) {
	utc = strings.TrimSpace(utc)
	if utc != "" {
		return utc, parseUTCTime(utc)
	}
	if ms := parseOptionalFloat(epochMillis); ms != nil {
		t := time.UnixMilli(int64(*ms)).UTC()
		return t.Format(UTCTimeLayout), t
	}
	return "", time.Time{}
}

func parseUTCTime(s string) time.Time {
	for _, layout := range utcTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// parseID accepts string and numeric feature ids.
func parseID(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return strings.TrimSpace(s)
	}
	return string(raw)
}

// generateID produces a deterministic ID from the feature's key fields so the
// same event keeps its ID across refreshes when the feed omits one.
func generateID(f Feature) string {
	input := fmt.Sprintf("%.4f|%.4f|%s|%s|%s",
		f.Coordinates.Longitude, f.Coordinates.Latitude,
		formatOptional(f.Coordinates.Depth), f.UTCTime, formatOptional(f.Magnitude))
	hash := sha256.Sum256([]byte(input))
	return "eq-" + hex.EncodeToString(hash[:8])
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
