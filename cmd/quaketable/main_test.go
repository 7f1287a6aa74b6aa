package main

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() options {
	return options{
		file:     filepath.Join("..", "..", "internal", "pipeline", "testdata", "feed_day.geojson"),
		minMag:   -2,
		maxMag:   10,
		minDepth: 0,
		maxDepth: 1000,
		lat:      math.NaN(),
		lon:      math.NaN(),
		maxKm:    500,
		dir:      "asc",
		lang:     "en",
		pageSize: 20,
	}
}

func TestRun_StrongEvents(t *testing.T) {
	o := testOptions()
	o.minMag = 4
	o.sortKey = "magnitude"
	o.dir = "desc"

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 10, "header, 7 rows, blank line, footer")
	assert.True(t, strings.HasPrefix(lines[0], "TIME (UTC)"))
	assert.Contains(t, lines[1], "Hualien City, Taiwan")
	assert.Contains(t, lines[1], "5.9")
	assert.Contains(t, lines[7], "Dodecanese Islands")
	assert.Equal(t, "page 1 of 1, 7 matching events, 1 malformed skipped", lines[9])
}

func TestRun_DistanceColumn(t *testing.T) {
	o := testOptions()
	o.lat, o.lon = 35.6225, -117.6709
	o.maxKm = 300

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))

	assert.Contains(t, out.String(), "DIST KM")
	assert.Contains(t, out.String(), "5 matching events")
}

func TestRun_ClampsPage(t *testing.T) {
	o := testOptions()
	o.pageSize = 10
	o.page = 99

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), o, &out))

	assert.Contains(t, out.String(), "page 3 of 3, 22 matching events")
}

func TestRun_MissingFile(t *testing.T) {
	o := testOptions()
	o.file = "does-not-exist.geojson"

	err := run(context.Background(), o, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does-not-exist.geojson")
}

func TestFormatOptional(t *testing.T) {
	v := 4.26
	assert.Equal(t, "4.3", formatOptional(&v, 1))
	assert.Equal(t, "-", formatOptional(nil, 1))
}
