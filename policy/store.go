package policy

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"authcore"
)

// Source loads a policy snapshot from a backing store (database, file,
// config service). Implementations return a fully built Snapshot; the
// Store takes care of publishing it.
type Source interface {
	Load(ctx context.Context) (*Snapshot, error)
}

// Store hands out the current policy snapshot to evaluators and swaps
// in new snapshots atomically. Readers never block writers and never
// see a torn update: they hold whichever snapshot pointer they loaded
// for the full duration of an evaluation.
type Store struct {
	current atomic.Pointer[Snapshot]
	source  Source
	logger  *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSource attaches a Source for Reload to pull snapshots from.
func WithSource(source Source) StoreOption {
	return func(s *Store) { s.source = source }
}

// WithLogger attaches a logger for reload and publish events.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store with an initial snapshot. The initial
// snapshot may be nil, in which case Snapshot fails until Publish or
// Reload installs one; evaluation against an empty store denies.
func NewStore(initial *Snapshot, opts ...StoreOption) *Store {
	s := &Store{logger: zap.NewNop()}
	if initial != nil {
		s.current.Store(initial)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the currently published snapshot.
func (s *Store) Snapshot() (*Snapshot, error) {
	snap := s.current.Load()
	if snap == nil {
		return nil, fmt.Errorf("%w: no policy snapshot published", authcore.ErrInternal)
	}
	return snap, nil
}

// Publish atomically swaps in a new snapshot. In-flight evaluations
// keep the snapshot they already loaded.
func (s *Store) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	s.current.Store(snap)
	s.logger.Info("policy snapshot published",
		zap.String("version", snap.Version()),
		zap.Int("roles", snap.Roles()),
	)
}

// Reload pulls a fresh snapshot from the configured Source and
// publishes it. On failure the previous snapshot stays in effect.
func (s *Store) Reload(ctx context.Context) error {
	if s.source == nil {
		return fmt.Errorf("%w: no policy source configured", authcore.ErrInternal)
	}
	snap, err := s.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: loading policy snapshot: %v", authcore.ErrInternal, err)
	}
	s.Publish(snap)
	return nil
}
