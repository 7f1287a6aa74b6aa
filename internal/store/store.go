// Package store holds the latest earthquake snapshot in memory.
//
// Writers take a sequence number with NextSequence before they start fetching
// and hand it back to Replace with the result. Replace accepts the result only
// when its sequence is newer than the one already held, so a slow response that
// completes after a newer one is discarded instead of overwriting fresher data.
// Readers never block writers and never observe a partially written snapshot.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quakes-near-me/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Snapshot is one accepted feature collection. Its Features slice is shared
// between readers and must be treated as read-only.
type Snapshot struct {
	Sequence   uint64
	Collection domain.FeatureCollection
	AcceptedAt time.Time
}

// Status summarizes the store for readiness checks and user-visible notices.
type Status struct {
	HasData     bool      `json:"has_data"`
	Sequence    uint64    `json:"sequence"`
	Features    int       `json:"features"`
	Skipped     int       `json:"skipped"`
	FetchedAt   time.Time `json:"fetched_at,omitzero"`
	Age         string    `json:"age,omitempty"`
	Stale       bool      `json:"stale"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at,omitzero"`
}

// Store is safe for concurrent use.
type Store struct {
	current    atomic.Pointer[Snapshot]
	nextSeq    atomic.Uint64
	invalid    atomic.Bool
	clock      clockwork.Clock
	staleAfter time.Duration

	mu         sync.Mutex
	lastErr    error
	lastErrAt  time.Time
	lastErrSeq uint64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(c clockwork.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithStaleAfter marks data stale once it is older than d. Zero disables
// age-based staleness.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Store) { s.staleAfter = d }
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NextSequence issues the ticket a fetch must present to Replace.
func (s *Store) NextSequence() uint64 {
	return s.nextSeq.Add(1)
}

// Replace installs c if seq is newer than the held snapshot and reports
// whether it was accepted.
func (s *Store) Replace(seq uint64, c domain.FeatureCollection) bool {
	next := &Snapshot{Sequence: seq, Collection: c, AcceptedAt: s.clock.Now()}
	for {
		cur := s.current.Load()
		if cur != nil && seq <= cur.Sequence {
			return false
		}
		if s.current.CompareAndSwap(cur, next) {
			s.invalid.Store(false)
			s.clearErrorBefore(seq)
			return true
		}
	}
}

// Current returns the latest snapshot, or false before the first accepted fetch.
func (s *Store) Current() (Snapshot, bool) {
	cur := s.current.Load()
	if cur == nil {
		return Snapshot{}, false
	}
	return *cur, true
}

// Collection returns the current collection, empty before the first fetch.
func (s *Store) Collection() domain.FeatureCollection {
	snap, _ := s.Current()
	return snap.Collection
}

// ReportFailure records a failed fetch. The held snapshot is kept.
func (s *Store) ReportFailure(seq uint64, err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	s.lastErrAt = s.clock.Now()
	s.lastErrSeq = seq
}

// MarkStale flags the held snapshot as outdated until the next accepted Replace.
func (s *Store) MarkStale() {
	s.invalid.Store(true)
}

// LastError returns the most recent fetch error not superseded by a newer
// accepted snapshot.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Status reports the store state.
func (s *Store) Status() Status {
	st := Status{Stale: s.invalid.Load()}

	if cur := s.current.Load(); cur != nil {
		age := s.clock.Since(cur.AcceptedAt)
		st.HasData = true
		st.Sequence = cur.Sequence
		st.Features = cur.Collection.Len()
		st.Skipped = cur.Collection.Skipped
		st.FetchedAt = cur.Collection.FetchedAt
		st.Age = age.Round(time.Second).String()
		if s.staleAfter > 0 && age > s.staleAfter {
			st.Stale = true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
		st.LastErrorAt = s.lastErrAt
		st.Stale = st.Stale || st.HasData
	}
	return st
}

// clearErrorBefore drops an error reported by a fetch older than seq.
func (s *Store) clearErrorBefore(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastErr != nil && s.lastErrSeq < seq {
		s.lastErr = nil
		s.lastErrAt = time.Time{}
		s.lastErrSeq = 0
	}
}
