// Command validate checks a recorded feed document against the invariants the
// map and table views rely on: well-formed features, unique IDs, filter and
// sort consistency, and pagination coverage. It runs the real domain package
// so a fixture that passes here behaves the same way in the service.
//
// Usage:
//
//	go run ./cmd/validate -file internal/pipeline/testdata/feed_day.geojson
//	go run ./cmd/validate -file all_day.geojson -max-skipped 0
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
)

var sortKeys = []domain.SortKey{
	domain.SortPlace,
	domain.SortMagnitude,
	domain.SortMagnitudeType,
	domain.SortLongitude,
	domain.SortLatitude,
	domain.SortDepth,
	domain.SortTime,
}

var pageSizes = []int{1, 7, domain.DefaultPageSize, 500}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	file := flag.String("file", "", "path to a GeoJSON FeatureCollection")
	maxSkipped := flag.Int("max-skipped", -1, "fail when more malformed features are skipped (-1 disables)")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*file, *maxSkipped); code != 0 {
		os.Exit(code)
	}
}

func run(path string, maxSkipped int) int {
	fmt.Println("=== Earthquake Feed Validation ===")
	fmt.Println()

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read feed: %v\n", err)
		return 1
	}
	c, err := domain.ParseFeatureCollection(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse feed: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateParsing(c, maxSkipped),
		validateFeatures(c.Features),
		validateFilter(c.Features),
		validateSort(c.Features),
		validatePagination(c),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Features: %d parsed, %d skipped, %d without magnitude, %d without depth\n",
		c.Len(), c.Skipped, countMissing(c.Features, magnitude), countMissing(c.Features, depth))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phases ──

func validateParsing(c domain.FeatureCollection, maxSkipped int) *phase {
	p := &phase{name: "Phase 1: Feed parsing"}
	if c.Len() == 0 {
		p.errorf("no usable features")
	}
	if maxSkipped >= 0 && c.Skipped > maxSkipped {
		p.errorf("%d malformed features skipped, limit %d", c.Skipped, maxSkipped)
	}
	return p
}

func validateFeatures(features []domain.Feature) *phase {
	p := &phase{name: "Phase 2: Feature integrity"}
	seen := make(map[string]int, len(features))
	for i, f := range features {
		if f.ID == "" {
			p.errorf("feature %d: empty id", i)
		} else if prev, dup := seen[f.ID]; dup {
			p.errorf("feature %d: id %q duplicates feature %d", i, f.ID, prev)
		} else {
			seen[f.ID] = i
		}

		if f.Coordinates.Latitude < -90 || f.Coordinates.Latitude > 90 {
			p.errorf("%s: latitude %v out of range", f.ID, f.Coordinates.Latitude)
		}
		if f.Coordinates.Longitude < -180 || f.Coordinates.Longitude > 180 {
			p.errorf("%s: longitude %v out of range", f.ID, f.Coordinates.Longitude)
		}
		if d := f.Coordinates.Depth; d != nil && (*d < 0 || math.IsNaN(*d)) {
			p.errorf("%s: depth %v is not an absolute distance", f.ID, *d)
		}
		if m := f.Magnitude; m != nil && (math.IsNaN(*m) || math.IsInf(*m, 0)) {
			p.errorf("%s: magnitude %v is not finite", f.ID, *m)
		}
		if f.UTCTime != "" {
			if _, err := time.Parse(domain.UTCTimeLayout, f.UTCTime); err != nil {
				p.errorf("%s: utc_time %q: %v", f.ID, f.UTCTime, err)
			}
		}
	}
	return p
}

func validateFilter(features []domain.Feature) *phase {
	p := &phase{name: "Phase 3: Filter consistency"}
	cfg := domain.DefaultFilterConfig()
	once := domain.Filter(features, cfg, nil)
	twice := domain.Filter(once, cfg, nil)
	if !slices.EqualFunc(once, twice, sameFeature) {
		p.errorf("filter is not idempotent: %d then %d features", len(once), len(twice))
	}
	if !isSubsequence(once, features) {
		p.errorf("filter result is not an ordered subset of the input")
	}

	cfg.Magnitude = domain.Range{Min: 5, Max: 1}
	if n := len(domain.Filter(features, cfg, nil)); n != 0 {
		p.errorf("inverted magnitude range matched %d features", n)
	}
	return p
}

func validateSort(features []domain.Feature) *phase {
	p := &phase{name: "Phase 4: Sort ordering"}
	for _, key := range sortKeys {
		for _, dir := range []domain.Direction{domain.Ascending, domain.Descending} {
			sorted := domain.Sort(features, domain.SortConfig{Key: key, Direction: dir})
			if len(sorted) != len(features) {
				p.errorf("sort %s %s: %d features, want %d", key, dir, len(sorted), len(features))
				continue
			}
			if i := firstDefinedAfterAbsent(sorted, key); i >= 0 {
				p.errorf("sort %s %s: defined value at %d follows an absent one", key, dir, i)
			}
		}
	}
	return p
}

func validatePagination(c domain.FeatureCollection) *phase {
	p := &phase{name: "Phase 5: Pagination coverage"}
	state := domain.NewViewState().WithSort(domain.SortConfig{Key: domain.SortTime, Direction: domain.Descending})
	for _, size := range pageSizes {
		state.PageSize = size
		view := domain.Derive(c, state)

		var all []domain.Feature
		for i := range view.Table.Pages {
			page := domain.Paginate(view.Map, i, size)
			if i < view.Table.Pages-1 && len(page.Items) != size {
				p.errorf("page size %d: page %d has %d items", size, i, len(page.Items))
			}
			all = append(all, page.Items...)
		}
		if !slices.EqualFunc(all, view.Map, sameFeature) {
			p.errorf("page size %d: pages cover %d features, map has %d", size, len(all), len(view.Map))
		}
		if last := domain.Paginate(view.Map, math.MaxInt32, size); last.Index != max(view.Table.Pages-1, 0) {
			p.errorf("page size %d: out-of-range page clamped to %d", size, last.Index)
		}
	}
	return p
}

// ── Helpers ──

func magnitude(f domain.Feature) bool { return f.Magnitude != nil }
func depth(f domain.Feature) bool     { return f.Coordinates.Depth != nil }

func countMissing(features []domain.Feature, present func(domain.Feature) bool) int {
	n := 0
	for _, f := range features {
		if !present(f) {
			n++
		}
	}
	return n
}

func sameFeature(a, b domain.Feature) bool { return a.ID == b.ID }

// isSubsequence reports whether sub appears in full in the same relative order.
func isSubsequence(sub, full []domain.Feature) bool {
	j := 0
	for _, f := range full {
		if j < len(sub) && sub[j].ID == f.ID {
			j++
		}
	}
	return j == len(sub)
}

// firstDefinedAfterAbsent returns the index of the first feature with a value
// for key that follows one without, or -1.
func firstDefinedAfterAbsent(features []domain.Feature, key domain.SortKey) int {
	absentSeen := false
	for i, f := range features {
		has := hasValue(f, key)
		if !has {
			absentSeen = true
		} else if absentSeen {
			return i
		}
	}
	return -1
}

func hasValue(f domain.Feature, key domain.SortKey) bool {
	switch key {
	case domain.SortPlace:
		return f.Place != ""
	case domain.SortMagnitude:
		return f.Magnitude != nil
	case domain.SortMagnitudeType:
		return f.MagnitudeType != ""
	case domain.SortDepth:
		return f.Coordinates.Depth != nil
	case domain.SortTime:
		return !f.Time.IsZero()
	default:
		return true
	}
}
