package domain

import "math"

// Range is an inclusive [Min, Max] bound. A range with Min > Max matches nothing.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies within the range. NaN is never contained.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Inverted reports whether the range can match nothing.
func (r Range) Inverted() bool { return r.Min > r.Max }

// DistanceFilter limits results to events within MaxKm of the user.
type DistanceFilter struct {
	MaxKm   float64 `json:"max_km"`
	Enabled bool    `json:"enabled"`
}

// FilterConfig combines the magnitude, depth, and distance predicates.
type FilterConfig struct {
	Magnitude Range          `json:"magnitude"`
	Depth     Range          `json:"depth"`
	Distance  DistanceFilter `json:"distance"`
}

// DefaultFilterConfig returns bounds wide enough to pass every plausible event.
func DefaultFilterConfig() FilterConfig {
	return FilterConfig{
		Magnitude: Range{Min: -2, Max: 10},
		Depth:     Range{Min: 0, Max: 1000},
		Distance:  DistanceFilter{MaxKm: 500},
	}
}

// Matches reports whether a feature satisfies every predicate in cfg. An
// enabled distance predicate holds vacuously when loc is nil.
func (cfg FilterConfig) Matches(f Feature, loc *Location) bool {
	if f.Magnitude == nil || !cfg.Magnitude.Contains(*f.Magnitude) {
		return false
	}
	if f.Coordinates.Depth == nil || !cfg.Depth.Contains(math.Abs(*f.Coordinates.Depth)) {
		return false
	}
	if cfg.Distance.Enabled && loc != nil {
		if !(DistanceFrom(*loc, f) <= cfg.Distance.MaxKm) {
			return false
		}
	}
	return true
}

// Filter returns the features that match cfg, preserving input order. The
// input slice is never modified and the result never aliases it.
func Filter(features []Feature, cfg FilterConfig, loc *Location) []Feature {
	out := make([]Feature, 0, len(features))
	if cfg.Magnitude.Inverted() || cfg.Depth.Inverted() {
		return out
	}
	for _, f := range features {
		if cfg.Matches(f, loc) {
			out = append(out, f)
		}
	}
	return out
}
