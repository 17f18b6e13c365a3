package kpisync

import (
	"sync"
	"time"

	"github.com/florykhan/TelusGuardAI/pkg/types"
)

// Store holds the latest KPI snapshot per tower.
//
// Writes replace a tower's snapshot wholesale; fields are never merged across
// snapshots. Only the Controller writes; everything else reads.
type Store struct {
	mu    sync.RWMutex
	kpis  map[string]types.KpiSnapshot
	clock func() time.Time
}

// NewStore creates an empty store. A nil clock uses time.Now.
func NewStore(clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		kpis:  make(map[string]types.KpiSnapshot),
		clock: clock,
	}
}

// Merge replaces the snapshot of every tower in batch. Snapshots without an
// update time are stamped with the store clock. Entries with an empty id are
// skipped. Returns the number of towers written.
func (s *Store) Merge(batch map[string]types.KpiSnapshot) int {
	if len(batch) == 0 {
		return 0
	}
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, snap := range batch {
		if id == "" {
			continue
		}
		if snap.UpdatedAt.IsZero() {
			snap.UpdatedAt = now
		}
		s.kpis[id] = snap
		n++
	}
	return n
}

// Get returns the snapshot for one tower.
func (s *Store) Get(id string) (types.KpiSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.kpis[id]
	return snap, ok
}

// Snapshot returns a copy of the whole store.
func (s *Store) Snapshot() map[string]types.KpiSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.KpiSnapshot, len(s.kpis))
	for id, snap := range s.kpis {
		out[id] = snap
	}
	return out
}

// Select returns the snapshots of the given towers that are present.
func (s *Store) Select(ids []string) map[string]types.KpiSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]types.KpiSnapshot, len(ids))
	for _, id := range ids {
		if snap, ok := s.kpis[id]; ok {
			out[id] = snap
		}
	}
	return out
}

// Len returns the number of towers with a snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.kpis)
}
