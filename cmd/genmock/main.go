// Command genmock writes a synthetic earthquake feed in the compact schema the
// service consumes. Output is deterministic for a given seed, so it can serve
// as a fixture or as the document behind a local mock upstream. The generated
// file is parsed with the domain package before it is written.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/feed.geojson -count 500 -seed 42
//	go run ./cmd/genmock -out - -count 50 -missing 0.1 | go run ./cmd/validate -file /dev/stdin
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
)

// region is a seismically active area events are scattered around.
type region struct {
	name     string
	lat, lon float64
	spreadKm float64
	maxDepth float64
	magMean  float64
}

var regions = []region{
	{name: "Southern California", lat: 34.2, lon: -117.4, spreadKm: 250, maxDepth: 20, magMean: 1.4},
	{name: "Northern California", lat: 38.6, lon: -122.6, spreadKm: 150, maxDepth: 15, magMean: 1.2},
	{name: "Central Alaska", lat: 61.8, lon: -150.2, spreadKm: 400, maxDepth: 120, magMean: 1.8},
	{name: "Island of Hawaii", lat: 19.4, lon: -155.3, spreadKm: 60, maxDepth: 40, magMean: 2.0},
	{name: "Oklahoma", lat: 36.0, lon: -97.5, spreadKm: 150, maxDepth: 8, magMean: 1.6},
	{name: "Japan", lat: 37.5, lon: 142.0, spreadKm: 500, maxDepth: 300, magMean: 4.4},
	{name: "Chile", lat: -30.0, lon: -71.5, spreadKm: 600, maxDepth: 200, magMean: 4.5},
	{name: "Indonesia", lat: -2.0, lon: 100.0, spreadKm: 800, maxDepth: 600, magMean: 4.6},
}

var magTypes = []string{"ml", "md", "mb", "mww", "mwr"}

// Output types mirror the compact feed schema.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Geometry   geometry   `json:"geometry"`
	Properties properties `json:"properties"`
}

type geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

type properties struct {
	Magnitude     *float64 `json:"magnitude"`
	MagnitudeType string   `json:"magnitude_type"`
	Place         string   `json:"place"`
	Title         string   `json:"title"`
	UTCTime       string   `json:"utc_time"`
}

type options struct {
	count   int
	seed    uint64
	missing float64
	end     time.Time
	window  time.Duration
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path, or - for stdout")
	count := flag.Int("count", 200, "number of events")
	seed := flag.Uint64("seed", 1, "random seed")
	missing := flag.Float64("missing", 0.02, "fraction of events without magnitude or depth")
	endFlag := flag.String("end", "2024-04-27T00:00:00Z", "timestamp of the newest possible event (RFC3339)")
	window := flag.Duration("window", 24*time.Hour, "time span covered by the feed")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	end, err := time.Parse(time.RFC3339, *endFlag)
	if err != nil {
		return fmt.Errorf("invalid -end: %w", err)
	}
	if *count < 0 || *window <= 0 || *missing < 0 || *missing > 1 {
		return fmt.Errorf("-count must be non-negative, -window positive, and -missing within [0, 1]")
	}

	data, err := generate(options{count: *count, seed: *seed, missing: *missing, end: end, window: *window})
	if err != nil {
		return err
	}

	c, err := domain.ParseFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("generated feed does not parse: %w", err)
	}
	if c.Skipped > 0 {
		return fmt.Errorf("generated feed has %d malformed features", c.Skipped)
	}

	if err := write(*out, data); err != nil {
		return err
	}
	log.Printf("wrote %d events to %s", c.Len(), *out)
	return nil
}

func generate(o options) ([]byte, error) {
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x9e3779b97f4a7c15))
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, o.count)}

	for i := range o.count {
		r := regions[rng.IntN(len(regions))]
		lat, lon := scatter(rng, r)

		depth := math.Round(rng.Float64()*r.maxDepth*100) / 100
		mag := math.Round(max(-1, r.magMean+rng.NormFloat64()*0.8)*100) / 100
		at := o.end.Add(-time.Duration(rng.Int64N(int64(o.window)))).UTC()

		coords := []float64{lon, lat, depth}
		magPtr := &mag
		switch u := rng.Float64(); {
		case u < o.missing/2:
			coords = coords[:2]
		case u < o.missing:
			magPtr = nil
		}

		place := fmt.Sprintf("%d km %s of %s", 1+rng.IntN(80), bearing(rng), r.name)
		title := "M ? - " + place
		if magPtr != nil {
			title = fmt.Sprintf("M %.1f - %s", *magPtr, place)
		}

		fc.Features = append(fc.Features, feature{
			Type:     "Feature",
			ID:       fmt.Sprintf("mk%08d", i+1),
			Geometry: geometry{Type: "Point", Coordinates: coords},
			Properties: properties{
				Magnitude:     magPtr,
				MagnitudeType: magTypes[rng.IntN(len(magTypes))],
				Place:         place,
				Title:         title,
				UTCTime:       at.Format(domain.UTCTimeLayout),
			},
		})
	}

	return json.MarshalIndent(fc, "", " ")
}

// scatter returns a point within roughly r.spreadKm of the region center.
func scatter(rng *rand.Rand, r region) (float64, float64) {
	const kmPerDegree = 111.2
	dist := rng.Float64() * r.spreadKm
	theta := rng.Float64() * 2 * math.Pi
	lat := r.lat + dist*math.Cos(theta)/kmPerDegree
	lon := r.lon + dist*math.Sin(theta)/(kmPerDegree*math.Cos(r.lat*math.Pi/180))
	lat = math.Max(-90, math.Min(90, lat))
	lon = math.Mod(lon+540, 360) - 180
	return math.Round(lat*1e4) / 1e4, math.Round(lon*1e4) / 1e4
}

func bearing(rng *rand.Rand) string {
	dirs := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	return dirs[rng.IntN(len(dirs))]
}

func write(path string, data []byte) error {
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
