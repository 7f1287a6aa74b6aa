// Package feed fetches the earthquake feature collection over HTTP.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"github.com/jonboulle/clockwork"
)

// ErrUnexpectedStatus is returned for any non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status")

// maxBodyBytes bounds the response size; a day of global events is a few MB.
const maxBodyBytes = 64 << 20

// cacheBustParam defeats intermediary caches that ignore Cache-Control.
const cacheBustParam = "v"

// Client fetches the feed and calls the upstream command endpoint.
type Client struct {
	feedURL    string
	commandURL string
	httpClient *http.Client
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client. commandURL may be empty when the upstream
// exposes no command endpoint.
func NewClient(feedURL, commandURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		feedURL:    feedURL,
		commandURL: commandURL,
		httpClient: &http.Client{Timeout: timeout},
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch downloads and parses the feature collection.
func (c *Client) Fetch(ctx context.Context) (domain.FeatureCollection, error) {
	u, err := c.cacheBustedURL()
	if err != nil {
		return domain.FeatureCollection{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("Cache-Control", "no-cache")

	start := c.clock.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.FeatureCollection{}, fmt.Errorf("fetch feed: %w %d: %s", ErrUnexpectedStatus, resp.StatusCode, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.FeatureCollection{}, fmt.Errorf("read feed body: %w", err)
	}

	collection, err := domain.ParseFeatureCollection(data)
	if err != nil {
		return domain.FeatureCollection{}, err
	}
	c.metrics.FetchDuration.Observe(c.clock.Since(start).Seconds())

	if collection.Skipped > 0 {
		c.metrics.FeaturesSkipped.Add(float64(collection.Skipped))
		c.logger.Warn("skipped malformed features", "skipped", collection.Skipped, "kept", collection.Len())
	}
	return collection, nil
}

// RequestUpstreamRefresh asks the upstream collector to fetch fresh events
// from its source. It is a no-op when no command URL is configured.
func (c *Client) RequestUpstreamRefresh(ctx context.Context) error {
	if c.commandURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.commandURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream command: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upstream command: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	c.logger.Info("upstream refresh requested", "status", resp.StatusCode)
	return nil
}

func (c *Client) cacheBustedURL() (string, error) {
	u, err := url.Parse(c.feedURL)
	if err != nil {
		return "", fmt.Errorf("parse feed url: %w", err)
	}
	q := u.Query()
	q.Set(cacheBustParam, strconv.FormatInt(c.clock.Now().UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
