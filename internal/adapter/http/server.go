package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"github.com/couchcryptid/quakes-near-me/internal/pipeline"
	"github.com/couchcryptid/quakes-near-me/internal/store"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ViewDeriver derives the map and table views for one request.
type ViewDeriver interface {
	Derive(ctx context.Context, req pipeline.ViewRequest) pipeline.ViewResult
}

// SnapshotSource exposes the stored snapshot and its status.
type SnapshotSource interface {
	Current() (store.Snapshot, bool)
	Status() store.Status
}

// RefreshCommander runs the refresh command.
type RefreshCommander interface {
	RequestUpstream(ctx context.Context) error
}

// Server exposes the earthquake API along with health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	views           ViewDeriver
	snapshots       SnapshotSource
	refresher       RefreshCommander
	limiter         *rate.Limiter
	metrics         *observability.Metrics
	defaultPageSize int
}

// Option configures a Server.
type Option func(*Server)

// WithViews enables GET /api/quakes and GET /api/quakes/table.
func WithViews(v ViewDeriver) Option {
	return func(s *Server) { s.views = v }
}

// WithSnapshots enables GET /api/earthquakes.geojson and GET /api/status.
func WithSnapshots(src SnapshotSource) Option {
	return func(s *Server) { s.snapshots = src }
}

// WithRefresh enables POST /api/refresh, allowing perSecond commands per second.
func WithRefresh(r RefreshCommander, perSecond float64) Option {
	return func(s *Server) {
		s.refresher = r
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithMetrics records per-view request counts.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithDefaultPageSize sets the table page size used when a request omits one.
func WithDefaultPageSize(n int) Option {
	return func(s *Server) { s.defaultPageSize = n }
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes
// plus whichever API routes the options enable.
func NewServer(addr string, ready ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:          logger,
		metrics:         observability.NewMetricsForTesting(),
		defaultPageSize: domain.DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	if s.views != nil {
		mux.HandleFunc("GET /api/quakes", s.handleMap)
		mux.HandleFunc("GET /api/quakes/table", s.handleTable)
	}
	if s.snapshots != nil {
		mux.HandleFunc("GET /api/earthquakes.geojson", s.handleRaw)
		mux.HandleFunc("GET /api/status", s.handleStatus)
	}
	if s.refresher != nil {
		mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// mapMeta accompanies the map view GeoJSON.
type mapMeta struct {
	Total        int              `json:"total"`
	Sort         string           `json:"sort,omitempty"`
	Direction    string           `json:"direction"`
	UserLocation *domain.Location `json:"user_location,omitempty"`
	Status       store.Status     `json:"status"`
	Notices      []string         `json:"notices,omitempty"`
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	req := parseViewRequest(r.URL.Query(), s.defaultPageSize)
	res := s.views.Derive(r.Context(), req)
	s.metrics.ViewRequests.WithLabelValues("map").Inc()
	s.metrics.ViewResults.Observe(float64(len(res.Map)))

	fc := encodeFeatureCollection(res.Map, res.UserLocation, true)
	fc.Meta = &mapMeta{
		Total:        len(res.Map),
		Sort:         req.State.Sort.Key.String(),
		Direction:    req.State.Sort.Direction.String(),
		UserLocation: res.UserLocation,
		Status:       res.Status,
		Notices:      res.Notices,
	}
	writeJSON(w, http.StatusOK, fc)
}

// tableResponse is one page of the table view.
type tableResponse struct {
	domain.Page
	HasNext      bool             `json:"has_next"`
	HasPrev      bool             `json:"has_prev"`
	UserLocation *domain.Location `json:"user_location,omitempty"`
	Notices      []string         `json:"notices,omitempty"`
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	req := parseViewRequest(r.URL.Query(), s.defaultPageSize)
	res := s.views.Derive(r.Context(), req)
	s.metrics.ViewRequests.WithLabelValues("table").Inc()
	s.metrics.ViewResults.Observe(float64(res.Table.Total))

	writeJSON(w, http.StatusOK, tableResponse{
		Page:         res.Table,
		HasNext:      res.Table.HasNext(),
		HasPrev:      res.Table.HasPrev(),
		UserLocation: res.UserLocation,
		Notices:      res.Notices,
	})
}

func (s *Server) handleRaw(w http.ResponseWriter, _ *http.Request) {
	s.metrics.ViewRequests.WithLabelValues("raw").Inc()
	snap, _ := s.snapshots.Current()
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, encodeFeatureCollection(snap.Collection.Features, nil, false))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.snapshots.Status())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(s.limiter)))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"status": "rate limited"})
		return
	}

	err := s.refresher.RequestUpstream(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
	case errors.Is(err, pipeline.ErrRefreshInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"status": "refresh in progress"})
	default:
		s.logger.Warn("refresh command failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"status": "upstream refresh failed",
			"error":  err.Error(),
		})
	}
}

func retryAfterSeconds(l *rate.Limiter) int {
	if l.Limit() <= 0 {
		return 1
	}
	return max(1, int(time.Duration(float64(time.Second)/float64(l.Limit())).Seconds()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
