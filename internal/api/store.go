package api

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ppiankov/gdeltwatch/internal/metrics"
	"github.com/ppiankov/gdeltwatch/internal/model"
)

// ErrRefreshInProgress is returned when a refresh is requested while
// another one is running
var ErrRefreshInProgress = errors.New("refresh already in progress")

// Refresher produces a new snapshot
type Refresher interface {
	Refresh(ctx context.Context) (*model.Snapshot, error)
}

// SnapshotStore owns the current snapshot. Readers see either the previous
// or the next snapshot in full; a failed refresh leaves the current one.
type SnapshotStore struct {
	current   atomic.Pointer[model.Snapshot]
	refresher Refresher
	mu        sync.Mutex
}

// NewSnapshotStore creates an empty store that refreshes through r
func NewSnapshotStore(r Refresher) *SnapshotStore {
	return &SnapshotStore{refresher: r}
}

// Current returns the latest snapshot, or nil before the first refresh
func (s *SnapshotStore) Current() *model.Snapshot {
	return s.current.Load()
}

// Set replaces the current snapshot
func (s *SnapshotStore) Set(snapshot *model.Snapshot) {
	s.current.Store(snapshot)
	metrics.RecordSnapshot(snapshot)
}

// Refresh runs one refresh and publishes its snapshot. Only one refresh
// runs at a time; a concurrent call returns ErrRefreshInProgress.
func (s *SnapshotStore) Refresh(ctx context.Context) (*model.Snapshot, error) {
	if !s.mu.TryLock() {
		return nil, ErrRefreshInProgress
	}
	defer s.mu.Unlock()

	snapshot, err := s.refresher.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	s.Set(snapshot)
	return snapshot, nil
}
