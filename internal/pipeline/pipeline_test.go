package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/couchcryptid/quakes-near-me/internal/observability"
	"github.com/couchcryptid/quakes-near-me/internal/pipeline"
	"github.com/couchcryptid/quakes-near-me/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testInterval = time.Minute

// --- mocks ---

type fetchResult struct {
	collection domain.FeatureCollection
	err        error
}

type mockFetcher struct {
	mu      sync.Mutex
	results []fetchResult // served in order, the last one repeats
	calls   atomic.Int32
	fetched chan struct{}
	block   chan struct{}
	during  func() // runs inside Fetch, before it returns
}

func newMockFetcher(results ...fetchResult) *mockFetcher {
	return &mockFetcher{results: results, fetched: make(chan struct{}, 16)}
}

func (m *mockFetcher) Fetch(ctx context.Context) (domain.FeatureCollection, error) {
	n := int(m.calls.Add(1)) - 1
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return domain.FeatureCollection{}, ctx.Err()
		}
	}
	if m.during != nil {
		m.during()
	}

	m.mu.Lock()
	r := m.results[min(n, len(m.results)-1)]
	m.mu.Unlock()

	m.fetched <- struct{}{}
	return r.collection, r.err
}

type mockPublisher struct {
	mu    sync.Mutex
	snaps []store.Snapshot
	err   error
}

func (m *mockPublisher) PublishSnapshot(_ context.Context, snap store.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, snap)
	return m.err
}

type mockCommander struct {
	calls int
	err   error
}

func (m *mockCommander) RequestUpstreamRefresh(_ context.Context) error {
	m.calls++
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ok(ids ...string) fetchResult {
	c := domain.FeatureCollection{}
	for _, id := range ids {
		c.Features = append(c.Features, domain.Feature{ID: id})
	}
	return fetchResult{collection: c}
}

func waitFetch(t *testing.T, f *mockFetcher) {
	t.Helper()
	select {
	case <-f.fetched:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch")
	}
}

type harness struct {
	clock   *clockwork.FakeClock
	store   *store.Store
	metrics *observability.Metrics
	fetcher *mockFetcher
	r       *pipeline.Refresher
}

func newHarness(f *mockFetcher, opts ...pipeline.Option) *harness {
	clk := clockwork.NewFakeClock()
	st := store.New(store.WithClock(clk))
	metrics := observability.NewMetricsForTesting()
	opts = append([]pipeline.Option{pipeline.WithClock(clk)}, opts...)
	return &harness{
		clock:   clk,
		store:   st,
		metrics: metrics,
		fetcher: f,
		r:       pipeline.New(f, st, testInterval, discardLogger(), metrics, opts...),
	}
}

// start runs the refresher until the test ends and waits for the first fetch
// to finish and the timer to be armed.
func (h *harness) start(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	waitFetch(t, h.fetcher)
	h.waitArmed(t, ctx)
	return ctx
}

func (h *harness) waitArmed(t *testing.T, ctx context.Context) {
	t.Helper()
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(waitCtx, 1))
}

// --- tests ---

func TestRefresher_Run_FetchesOnStartAndInterval(t *testing.T) {
	h := newHarness(newMockFetcher(ok("a"), ok("a", "b")))
	ctx := h.start(t)

	require.NoError(t, h.r.CheckReadiness(ctx))
	assert.Equal(t, 1, h.store.Collection().Len())

	h.clock.Advance(testInterval - time.Second)
	assert.Equal(t, int32(1), h.fetcher.calls.Load())

	h.clock.Advance(time.Second)
	waitFetch(t, h.fetcher)
	h.waitArmed(t, ctx)

	assert.Equal(t, 2, h.store.Collection().Len())
	assert.InDelta(t, 2.0, testutil.ToFloat64(h.metrics.FetchRequests.WithLabelValues("accepted")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.RefreshTriggers.WithLabelValues("timer")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.RefresherRunning), 0)
}

func TestRefresher_Run_BacksOffAfterFailure(t *testing.T) {
	h := newHarness(newMockFetcher(fetchResult{err: errors.New("connection refused")}, ok("a")))
	ctx := h.start(t)

	require.Error(t, h.r.CheckReadiness(ctx))
	assert.Contains(t, h.store.Status().LastError, "connection refused")

	h.clock.Advance(200 * time.Millisecond)
	waitFetch(t, h.fetcher)
	h.waitArmed(t, ctx)

	require.NoError(t, h.r.CheckReadiness(ctx))
	assert.Empty(t, h.store.Status().LastError)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.FetchRequests.WithLabelValues("error")), 0)
}

func TestRefresher_Run_FailureKeepsSnapshot(t *testing.T) {
	h := newHarness(newMockFetcher(ok("a", "b"), fetchResult{err: errors.New("503")}))
	ctx := h.start(t)

	h.clock.Advance(testInterval)
	waitFetch(t, h.fetcher)
	h.waitArmed(t, ctx)

	assert.Equal(t, 2, h.store.Collection().Len())
	st := h.store.Status()
	assert.True(t, st.Stale)
	assert.Equal(t, "503", st.LastError)
	assert.NoError(t, h.r.CheckReadiness(ctx), "readiness survives a failed refresh")
}

func TestRefresher_Trigger(t *testing.T) {
	h := newHarness(newMockFetcher(ok("a")))
	ctx := h.start(t)

	require.True(t, h.r.Trigger())
	waitFetch(t, h.fetcher)
	h.waitArmed(t, ctx)

	assert.Equal(t, int32(2), h.fetcher.calls.Load())
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.RefreshTriggers.WithLabelValues("command")), 0)
}

func TestRefresher_Trigger_Coalesces(t *testing.T) {
	h := newHarness(newMockFetcher(ok("a")))

	assert.True(t, h.r.Trigger())
	assert.False(t, h.r.Trigger(), "a pending trigger absorbs later ones")
}

func TestRefresher_Refresh_RejectsConcurrentFetch(t *testing.T) {
	f := newMockFetcher(ok("a"))
	f.block = make(chan struct{})
	h := newHarness(f)

	type result struct {
		accepted bool
		err      error
	}
	first := make(chan result, 1)
	go func() {
		accepted, err := h.r.Refresh(context.Background())
		first <- result{accepted, err}
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	_, err := h.r.Refresh(context.Background())
	require.ErrorIs(t, err, pipeline.ErrRefreshInProgress)

	close(f.block)
	res := <-first
	require.NoError(t, res.err)
	assert.True(t, res.accepted)
	assert.Equal(t, int32(1), f.calls.Load(), "the rejected refresh never reached the feed")
}

func TestRefresher_Refresh_DiscardsOutOfOrderResponse(t *testing.T) {
	f := newMockFetcher(ok("stale"))
	h := newHarness(f)
	f.during = func() {
		// A newer fetch completes while this one is still in flight.
		h.store.Replace(h.store.NextSequence(), ok("fresh").collection)
	}

	accepted, err := h.r.Refresh(context.Background())

	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, "fresh", h.store.Collection().Features[0].ID)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.FetchRequests.WithLabelValues("discarded")), 0)
}

func TestRefresher_Refresh_Publishes(t *testing.T) {
	pub := &mockPublisher{}
	h := newHarness(newMockFetcher(ok("a", "b")), pipeline.WithPublisher(pub))

	accepted, err := h.r.Refresh(context.Background())

	require.NoError(t, err)
	require.True(t, accepted)
	require.Len(t, pub.snaps, 1)
	assert.Equal(t, 2, pub.snaps[0].Collection.Len())
	assert.InDelta(t, 2.0, testutil.ToFloat64(h.metrics.MessagesProduced), 0)
}

func TestRefresher_Refresh_PublishErrorDoesNotFailRefresh(t *testing.T) {
	pub := &mockPublisher{err: errors.New("broker down")}
	h := newHarness(newMockFetcher(ok("a")), pipeline.WithPublisher(pub))

	accepted, err := h.r.Refresh(context.Background())

	require.NoError(t, err)
	assert.True(t, accepted)
	assert.InDelta(t, 1.0, testutil.ToFloat64(h.metrics.PublishErrors), 0)
}

func TestRefresher_RequestUpstream(t *testing.T) {
	cmd := &mockCommander{}
	h := newHarness(newMockFetcher(ok("a")), pipeline.WithCommander(cmd))
	_, err := h.r.Refresh(context.Background())
	require.NoError(t, err)

	require.NoError(t, h.r.RequestUpstream(context.Background()))

	assert.Equal(t, 1, cmd.calls)
	assert.True(t, h.store.Status().Stale)
	assert.False(t, h.r.Trigger(), "a refetch is already scheduled")
}

func TestRefresher_RequestUpstream_Error(t *testing.T) {
	cmd := &mockCommander{err: errors.New("upstream 500")}
	h := newHarness(newMockFetcher(ok("a")), pipeline.WithCommander(cmd))

	err := h.r.RequestUpstream(context.Background())

	require.Error(t, err)
	assert.False(t, h.store.Status().Stale)
	assert.True(t, h.r.Trigger(), "no refetch was scheduled")
}

func TestRefresher_RequestUpstream_AlreadyScheduled(t *testing.T) {
	cmd := &mockCommander{}
	h := newHarness(newMockFetcher(ok("a")), pipeline.WithCommander(cmd))
	require.True(t, h.r.Trigger())

	err := h.r.RequestUpstream(context.Background())

	require.ErrorIs(t, err, pipeline.ErrRefreshInProgress)
	assert.Equal(t, 0, cmd.calls)
}

func TestRefresher_CheckReadiness_BeforeFirstFetch(t *testing.T) {
	h := newHarness(newMockFetcher(ok("a")))
	err := h.r.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no earthquake data")
}

func TestRefresher_Run_ContextCancellation(t *testing.T) {
	f := newMockFetcher(ok("a"))
	f.block = make(chan struct{}) // never released
	h := newHarness(f)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, h.r.Run(ctx))
	assert.Zero(t, h.store.Collection().Len())
}
