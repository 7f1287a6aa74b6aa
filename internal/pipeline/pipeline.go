package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"github.com/couchcryptid/quakes-near-me/internal/store"
	"github.com/jonboulle/clockwork"
)

// ErrRefreshInProgress is returned when a refresh is requested while another
// fetch has not completed.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Fetcher retrieves the current feature collection from the feed.
type Fetcher interface {
	Fetch(ctx context.Context) (domain.FeatureCollection, error)
}

// UpstreamCommander asks the feed's producer to refresh its own data.
type UpstreamCommander interface {
	RequestUpstreamRefresh(ctx context.Context) error
}

// SnapshotPublisher forwards accepted snapshots downstream.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snap store.Snapshot) error
}

const initialBackoff = 200 * time.Millisecond

// Refresher keeps the store current by fetching the feed on an interval.
type Refresher struct {
	fetcher   Fetcher
	store     *store.Store
	commander UpstreamCommander
	publisher SnapshotPublisher
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	interval  time.Duration

	inFlight atomic.Bool
	ready    atomic.Bool
	trigger  chan struct{}
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithCommander enables RequestUpstream to call the upstream command endpoint.
func WithCommander(c UpstreamCommander) Option {
	return func(r *Refresher) { r.commander = c }
}

// WithPublisher publishes every accepted snapshot.
func WithPublisher(p SnapshotPublisher) Option {
	return func(r *Refresher) { r.publisher = p }
}

// WithClock overrides the time source for the refresh timer.
func WithClock(c clockwork.Clock) Option {
	return func(r *Refresher) { r.clock = c }
}

// New creates a Refresher that writes into s every interval.
func New(f Fetcher, s *store.Store, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Refresher {
	r := &Refresher{
		fetcher:  f,
		store:    s,
		logger:   logger,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		interval: interval,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CheckReadiness returns nil once a snapshot has been accepted,
// or an error describing why the service is not yet ready.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		if err := r.store.LastError(); err != nil {
			return fmt.Errorf("no earthquake data loaded yet: %w", err)
		}
		return errors.New("no earthquake data loaded yet")
	}
	return nil
}

// Run fetches immediately and then once per interval until the context is
// cancelled. The timer is only armed after a fetch completes, so a slow fetch
// delays the next one instead of overlapping it. After a failure the next
// attempt follows an exponential backoff capped at the interval.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresher started", "interval", r.interval)
	r.metrics.RefresherRunning.Set(1)
	defer r.metrics.RefresherRunning.Set(0)

	backoff := initialBackoff
	source := "startup"

	for {
		r.metrics.RefreshTriggers.WithLabelValues(source).Inc()

		wait := r.interval
		_, err := r.Refresh(ctx)
		switch {
		case ctx.Err() != nil:
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case err != nil && !errors.Is(err, ErrRefreshInProgress):
			wait = min(backoff, r.interval)
			backoff = nextBackoff(backoff, r.interval)
		default:
			backoff = initialBackoff
		}

		timer := r.clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("refresher stopping", "reason", ctx.Err())
			return nil
		case <-timer.Chan():
			source = "timer"
		case <-r.trigger:
			timer.Stop()
			source = "command"
		}
	}
}

// Refresh performs one guarded fetch and reports whether its result was
// accepted into the store. A failed fetch leaves the stored snapshot in place.
func (r *Refresher) Refresh(ctx context.Context) (bool, error) {
	if !r.inFlight.CompareAndSwap(false, true) {
		r.metrics.FetchRequests.WithLabelValues("busy").Inc()
		return false, ErrRefreshInProgress
	}
	defer r.inFlight.Store(false)

	seq := r.store.NextSequence()
	collection, err := r.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		r.store.ReportFailure(seq, err)
		r.metrics.FetchRequests.WithLabelValues("error").Inc()
		r.logger.Error("fetch failed, keeping last snapshot", "error", err, "sequence", seq)
		return false, err
	}

	if !r.store.Replace(seq, collection) {
		r.metrics.FetchRequests.WithLabelValues("discarded").Inc()
		r.logger.Debug("discarded out-of-order snapshot", "sequence", seq)
		return false, nil
	}

	r.metrics.FetchRequests.WithLabelValues("accepted").Inc()
	r.metrics.FeaturesStored.Set(float64(collection.Len()))
	r.ready.Store(true)
	r.logger.Info("snapshot accepted",
		"sequence", seq,
		"features", collection.Len(),
		"skipped", collection.Skipped,
	)

	r.publish(ctx)
	return true, nil
}

// Trigger requests an immediate refresh from Run without blocking. It reports
// false when a trigger is already pending.
func (r *Refresher) Trigger() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RequestUpstream asks the upstream collector to refresh, marks the local
// snapshot stale, and schedules a local refetch once the command resolves.
// It returns ErrRefreshInProgress without contacting upstream while a fetch is
// running or a refetch is already scheduled.
func (r *Refresher) RequestUpstream(ctx context.Context) error {
	if r.inFlight.Load() || len(r.trigger) > 0 {
		return ErrRefreshInProgress
	}
	if r.commander != nil {
		if err := r.commander.RequestUpstreamRefresh(ctx); err != nil {
			return fmt.Errorf("request upstream refresh: %w", err)
		}
	}
	r.store.MarkStale()
	r.Trigger()
	return nil
}

// publish forwards the current snapshot if a publisher is configured.
// Failures are logged and counted but never fail the refresh.
func (r *Refresher) publish(ctx context.Context) {
	if r.publisher == nil {
		return
	}
	snap, ok := r.store.Current()
	if !ok {
		return
	}
	if err := r.publisher.PublishSnapshot(ctx, snap); err != nil {
		r.metrics.PublishErrors.Inc()
		r.logger.Warn("publish snapshot failed", "error", err, "sequence", snap.Sequence)
		return
	}
	r.metrics.MessagesProduced.Add(float64(snap.Collection.Len()))
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
