package domain

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortKey identifies a sortable feature field.
type SortKey int

const (
	SortNone SortKey = iota
	SortPlace
	SortMagnitude
	SortMagnitudeType
	SortLongitude
	SortLatitude
	SortDepth
	SortTime
)

var sortKeyNames = map[SortKey]string{
	SortNone:          "",
	SortPlace:         "place",
	SortMagnitude:     "magnitude",
	SortMagnitudeType: "magnitude_type",
	SortLongitude:     "longitude",
	SortLatitude:      "latitude",
	SortDepth:         "depth",
	SortTime:          "utc_time",
}

// Legacy column paths still sent by older table clients.
var sortKeyAliases = map[string]SortKey{
	"coordinates[0]": SortLongitude,
	"coordinates[1]": SortLatitude,
	"mag":            SortMagnitude,
	"magtype":        SortMagnitudeType,
	"time":           SortTime,
}

func (k SortKey) String() string { return sortKeyNames[k] }

// ParseSortKey maps a column name to a SortKey. Unknown names map to SortNone,
// which leaves the input order unchanged.
func ParseSortKey(s string) SortKey {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortNone
	}
	for k, name := range sortKeyNames {
		if name == s {
			return k
		}
	}
	if k, ok := sortKeyAliases[s]; ok {
		return k
	}
	return SortNone
}

// Direction is the sort order.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts "asc", "desc", "ascending", and "descending".
// Anything else is ascending.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desc", "descending":
		return Descending
	default:
		return Ascending
	}
}

// SortConfig selects the sort field, direction, and collation locale for
// string fields. The zero value keeps input order.
type SortConfig struct {
	Key       SortKey
	Direction Direction
	Locale    language.Tag
}

// sortField is a typed accessor for one column. Exactly one of numeric, text,
// or instant is set. The boolean result is false when the value is absent.
type sortField struct {
	numeric func(Feature) (float64, bool)
	text    func(Feature) (string, bool)
	instant func(Feature) (time.Time, bool)
}

var sortFields = map[SortKey]sortField{
	SortPlace: {text: func(f Feature) (string, bool) {
		return f.Place, f.Place != ""
	}},
	SortMagnitudeType: {text: func(f Feature) (string, bool) {
		return f.MagnitudeType, f.MagnitudeType != ""
	}},
	SortMagnitude: {numeric: func(f Feature) (float64, bool) {
		return optional(f.Magnitude)
	}},
	SortDepth: {numeric: func(f Feature) (float64, bool) {
		return optional(f.Coordinates.Depth)
	}},
	SortLongitude: {numeric: func(f Feature) (float64, bool) {
		return f.Coordinates.Longitude, !math.IsNaN(f.Coordinates.Longitude)
	}},
	SortLatitude: {numeric: func(f Feature) (float64, bool) {
		return f.Coordinates.Latitude, !math.IsNaN(f.Coordinates.Latitude)
	}},
	SortTime: {instant: func(f Feature) (time.Time, bool) {
		return f.Time, !f.Time.IsZero()
	}},
}

func optional(v *float64) (float64, bool) {
	if v == nil || math.IsNaN(*v) {
		return 0, false
	}
	return *v, true
}

// Sort returns a stably sorted copy of features. Absent values sort after
// every present value regardless of direction. String fields compare
// case-insensitively using the collation rules of cfg.Locale.
func Sort(features []Feature, cfg SortConfig) []Feature {
	out := slices.Clone(features)
	if out == nil {
		out = []Feature{}
	}
	field, ok := sortFields[cfg.Key]
	if !ok {
		return out
	}

	var compare func(a, b Feature) int
	switch {
	case field.text != nil:
		// Collators keep internal buffers, so each call gets its own.
		col := collate.New(cfg.Locale, collate.IgnoreCase)
		compare = nullsLast(field.text, col.CompareString, cfg.Direction)
	case field.instant != nil:
		compare = nullsLast(field.instant, time.Time.Compare, cfg.Direction)
	default:
		compare = nullsLast(field.numeric, cmp.Compare[float64], cfg.Direction)
	}
	slices.SortStableFunc(out, compare)
	return out
}

// nullsLast builds a comparator that orders present values by cmpFn in the
// requested direction and places absent values last.
func nullsLast[T any](get func(Feature) (T, bool), cmpFn func(a, b T) int, dir Direction) func(a, b Feature) int {
	return func(a, b Feature) int {
		av, aok := get(a)
		bv, bok := get(b)
		switch {
		case !aok && !bok:
			return 0
		case !aok:
			return 1
		case !bok:
			return -1
		}
		c := cmpFn(av, bv)
		if dir == Descending {
			return -c
		}
		return c
	}
}
