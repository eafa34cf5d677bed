package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/quantumwallet/qwallet/internal/metrics"
	qwerr "github.com/quantumwallet/qwallet/pkg/errors"
)

// Refresh results recorded in metrics.
const (
	resultAuthenticated = "authenticated"
	resultAnonymous     = "anonymous"
	resultFailed        = "failed"
	resultDiscarded     = "discarded"
)

// Fetcher performs the identity query. It returns an Unauthorized error when
// the backend rejects the session.
type Fetcher func(ctx context.Context) (*Identity, error)

// LogWriter is the logging surface used by the store.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures a Store.
type Options struct {
	Metrics *metrics.Metrics
	Logger  LogWriter
}

// Store owns the session snapshot.
type Store struct {
	mu          sync.Mutex
	state       State
	identity    Identity
	stale       bool
	epoch       uint64
	refreshedAt time.Time

	fetch   Fetcher
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  LogWriter
}

// NewStore creates a store in the Unknown state.
func NewStore(fetch Fetcher, opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	return &Store{
		state:   StateUnknown,
		fetch:   fetch,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		State:       s.state,
		Identity:    s.identity.clone(),
		Stale:       s.stale,
		RefreshedAt: s.refreshedAt,
	}
}

// Ensure returns the snapshot, refreshing first when the state is Unknown or stale.
func (s *Store) Ensure(ctx context.Context) (Snapshot, error) {
	snap := s.Snapshot()
	if snap.State != StateUnknown && !snap.Stale {
		return snap, nil
	}
	return s.Refresh(ctx)
}

// Refresh queries the backend identity. Concurrent callers share one query.
// An Unauthorized answer yields Anonymous without error; any other failure
// leaves the state untouched and is returned.
func (s *Store) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	epoch := s.epoch
	s.mu.Unlock()

	// Callers joining a flight must not be failed by the first caller's cancellation
	flightCtx := context.WithoutCancel(ctx)

	v, err, _ := s.group.Do(fmt.Sprintf("identity-%d", epoch), func() (any, error) {
		return s.refresh(flightCtx, epoch)
	})
	snap, _ := v.(Snapshot)
	return snap, err
}

func (s *Store) refresh(ctx context.Context, epoch uint64) (Snapshot, error) {
	s.mu.Lock()
	if s.epoch != epoch {
		if !s.stale && s.state != StateUnknown {
			// Another flight settled the state after this caller looked
			defer s.mu.Unlock()
			return s.snapshotLocked(), nil
		}
		epoch = s.epoch
	}
	s.mu.Unlock()

	identity, err := s.fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != epoch {
		s.metrics.RecordSessionRefresh(resultDiscarded)
		s.logger.Debug("identity refresh superseded, keeping state %s", s.state)
		return s.snapshotLocked(), nil
	}

	switch {
	case err == nil && identity != nil:
		s.state = StateAuthenticated
		s.identity = identity.clone()
		s.metrics.RecordSessionRefresh(resultAuthenticated)
	case err == nil, qwerr.IsUnauthorized(err):
		s.state = StateAnonymous
		s.identity = Identity{}
		s.metrics.RecordSessionRefresh(resultAnonymous)
	default:
		s.metrics.RecordSessionRefresh(resultFailed)
		s.logger.Error("identity refresh failed: %v", err)
		return s.snapshotLocked(), err
	}

	s.stale = false
	s.epoch++
	s.refreshedAt = time.Now()
	return s.snapshotLocked(), nil
}

// Invalidate marks the session Anonymous immediately. The next Ensure re-queries
// the backend, and any refresh already in flight is discarded.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateAnonymous
	s.identity = Identity{}
	s.stale = true
	s.epoch++
}

// MarkStale keeps the snapshot but forces the next Ensure to refresh.
func (s *Store) MarkStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stale = true
	s.epoch++
}

// SetAuthenticated records an identity returned by login or registration.
func (s *Store) SetAuthenticated(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateAuthenticated
	s.identity = identity.clone()
	s.stale = false
	s.epoch++
	s.refreshedAt = time.Now()
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
