// Command quaketable fetches the earthquake feed once and prints one page of
// the table view. It derives the page through the same filter, sort, and
// pagination path the API serves.
//
// Usage:
//
//	go run ./cmd/quaketable \
//	  -feed https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_day.geojson \
//	  -min-mag 2.5 -sort magnitude -dir desc -page-size 15
//
//	go run ./cmd/quaketable -file internal/pipeline/testdata/feed_day.geojson \
//	  -lat 35.77 -lon -117.6 -max-km 300 -sort depth
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/adapter/feed"
	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"golang.org/x/text/language"
)

type options struct {
	feedURL  string
	file     string
	timeout  time.Duration
	minMag   float64
	maxMag   float64
	minDepth float64
	maxDepth float64
	lat      float64
	lon      float64
	maxKm    float64
	sortKey  string
	dir      string
	lang     string
	page     int
	pageSize int
}

func main() {
	defaults := domain.DefaultFilterConfig()

	var o options
	flag.StringVar(&o.feedURL, "feed", "http://localhost:8000/api/earthquakes.geojson", "feed URL")
	flag.StringVar(&o.file, "file", "", "read the feature collection from a file instead of -feed")
	flag.DurationVar(&o.timeout, "timeout", 15*time.Second, "feed request timeout")
	flag.Float64Var(&o.minMag, "min-mag", defaults.Magnitude.Min, "minimum magnitude")
	flag.Float64Var(&o.maxMag, "max-mag", defaults.Magnitude.Max, "maximum magnitude")
	flag.Float64Var(&o.minDepth, "min-depth", defaults.Depth.Min, "minimum depth in km")
	flag.Float64Var(&o.maxDepth, "max-depth", defaults.Depth.Max, "maximum depth in km")
	flag.Float64Var(&o.lat, "lat", math.NaN(), "user latitude, enables the distance filter with -lon")
	flag.Float64Var(&o.lon, "lon", math.NaN(), "user longitude")
	flag.Float64Var(&o.maxKm, "max-km", defaults.Distance.MaxKm, "maximum distance from -lat/-lon in km")
	flag.StringVar(&o.sortKey, "sort", "", "sort column: place, magnitude, magnitude_type, longitude, latitude, depth, utc_time")
	flag.StringVar(&o.dir, "dir", "asc", "sort direction: asc or desc")
	flag.StringVar(&o.lang, "lang", "en", "collation locale for text columns")
	flag.IntVar(&o.page, "page", 0, "zero-based page index")
	flag.IntVar(&o.pageSize, "page-size", domain.DefaultPageSize, "rows per page")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "quaketable: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, w io.Writer) error {
	collection, err := load(ctx, o)
	if err != nil {
		return err
	}

	state := domain.NewViewState().
		WithFilter(domain.FilterConfig{
			Magnitude: domain.Range{Min: o.minMag, Max: o.maxMag},
			Depth:     domain.Range{Min: o.minDepth, Max: o.maxDepth},
			Distance:  domain.DistanceFilter{MaxKm: o.maxKm, Enabled: !math.IsNaN(o.lat) && !math.IsNaN(o.lon)},
		}).
		WithSort(domain.SortConfig{
			Key:       domain.ParseSortKey(o.sortKey),
			Direction: domain.ParseDirection(o.dir),
			Locale:    language.Make(o.lang),
		})
	if state.Filter.Distance.Enabled {
		state = state.WithUserLocation(&domain.Location{Latitude: o.lat, Longitude: o.lon})
	}
	state.PageSize = o.pageSize
	state = state.WithPage(o.page)

	view := domain.Derive(collection, state)
	return printTable(w, view.Table, state.UserLocation, collection.Skipped)
}

func load(ctx context.Context, o options) (domain.FeatureCollection, error) {
	if o.file != "" {
		data, err := os.ReadFile(o.file)
		if err != nil {
			return domain.FeatureCollection{}, fmt.Errorf("read %s: %w", o.file, err)
		}
		return domain.ParseFeatureCollection(data)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := feed.NewClient(o.feedURL, "", o.timeout, observability.NewMetricsForTesting(), logger)
	return client.Fetch(ctx)
}

func printTable(w io.Writer, page domain.Page, loc *domain.Location, skipped int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "TIME (UTC)\tMAG\tTYPE\tDEPTH KM\tLAT\tLON\tPLACE"
	if loc != nil {
		header += "\tDIST KM"
	}
	fmt.Fprintln(tw, header)

	for _, f := range page.Items {
		row := fmt.Sprintf("%s\t%s\t%s\t%s\t%.3f\t%.3f\t%s",
			orDash(f.UTCTime),
			formatOptional(f.Magnitude, 1),
			orDash(f.MagnitudeType),
			formatOptional(f.Coordinates.Depth, 1),
			f.Coordinates.Latitude,
			f.Coordinates.Longitude,
			orDash(f.Place),
		)
		if loc != nil {
			row += fmt.Sprintf("\t%.0f", domain.DistanceFrom(*loc, f))
		}
		fmt.Fprintln(tw, row)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	pages := max(page.Pages, 1)
	_, err := fmt.Fprintf(w, "\npage %d of %d, %d matching events", page.Index+1, pages, page.Total)
	if err == nil && skipped > 0 {
		_, err = fmt.Fprintf(w, ", %d malformed skipped", skipped)
	}
	if err == nil {
		_, err = fmt.Fprintln(w)
	}
	return err
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
