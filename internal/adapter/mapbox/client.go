// Package mapbox resolves user-entered addresses through the Mapbox Geocoding
// API and labels user coordinates with a place name.
package mapbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Mapbox rejects forward queries longer than this many characters.
const maxQueryLen = 256

// minRelevance is the lowest forward match accepted as a user location. Weaker
// matches tend to be a different town with a similar name.
const minRelevance = 0.5

// ErrRateLimited is returned when Mapbox answers 429.
var ErrRateLimited = errors.New("mapbox rate limit exceeded")

// Client implements domain.Geocoder using the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// ForwardGeocode resolves a free-form address, postcode, or place name. An
// empty result means no match was confident enough to use.
func (c *Client) ForwardGeocode(ctx context.Context, query string) (domain.GeocodingResult, error) {
	query = strings.Join(strings.Fields(query), " ")
	if query == "" {
		return domain.GeocodingResult{}, nil
	}
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}

	result, err := c.lookup(ctx, "forward", query, url.Values{
		"types":        {"address,postcode,place,locality,neighborhood,region"},
		"autocomplete": {"false"},
	})
	if err != nil || !result.Found() {
		return result, err
	}
	if result.Confidence < minRelevance {
		c.logger.Debug("discarding weak geocode match",
			"query", query,
			"match", result.FormattedAddress,
			"relevance", result.Confidence,
		)
		return domain.GeocodingResult{}, nil
	}
	return result, nil
}

// ReverseGeocode names the place at lat/lon. Offshore points resolve to the
// nearest region or country rather than a street address.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	// Mapbox uses lon,lat order.
	coord := strconv.FormatFloat(lon, 'f', 6, 64) + "," + strconv.FormatFloat(lat, 'f', 6, 64)
	return c.lookup(ctx, "reverse", coord, url.Values{
		"types": {"place,locality,region,country"},
	})
}

func (c *Client) lookup(ctx context.Context, method, search string, params url.Values) (domain.GeocodingResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("parse base url: %w", err)
	}
	u = u.JoinPath(url.PathEscape(search) + ".json")
	params.Set("access_token", c.token)
	params.Set("limit", "1")
	u.RawQuery = params.Encode()

	var body response
	if err := c.get(ctx, method, u.String(), &body); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues(method, "error").Inc()
		return domain.GeocodingResult{}, err
	}

	if len(body.Features) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues(method, "empty").Inc()
		return domain.GeocodingResult{}, nil
	}
	c.metrics.GeocodeRequests.WithLabelValues(method, "success").Inc()
	return body.Features[0].toResult(), nil
}

func (c *Client) get(ctx context.Context, method, fullURL string, out *response) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s geocode request: %w", method, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mapbox API error: status %d: %s", resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}

func (f feature) toResult() domain.GeocodingResult {
	r := domain.GeocodingResult{
		FormattedAddress: f.PlaceName,
		PlaceName:        f.Text,
		Confidence:       f.Relevance,
	}
	if len(f.Center) == 2 {
		r.Lon, r.Lat = f.Center[0], f.Center[1]
	}
	return r
}
