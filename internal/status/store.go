// Package status holds the current status overrides for prescriptions
// and the transition rule engine that mutates them.
package status

import (
	"sync"

	"github.com/praxisdesk/go-praxis/internal/domain/vo"
)

// Store holds, per (dimension, VO number), the most recent status value.
// Base records are never mutated; the store shadows individual fields by
// key. Implementations must make Get side-effect-free.
type Store interface {
	// Get returns the override for (dim, voNumber) if one exists, else
	// fallback.
	Get(dim vo.Dimension, voNumber, fallback string) string
	// Set records an override visible to all subsequent Gets. No
	// validation happens here; that is the rule engine's job.
	Set(dim vo.Dimension, voNumber, value string) error
}

type overrideKey struct {
	dim      vo.Dimension
	voNumber string
}

// MemoryStore is the in-memory Store used for the prototype deployment.
// It starts empty and grows for the lifetime of the process; the
// Postgres-backed store in infrastructure/postgres is the bounded,
// write-through alternative.
type MemoryStore struct {
	mu        sync.RWMutex
	overrides map[overrideKey]string
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[overrideKey]string)}
}

// Get implements Store.
func (s *MemoryStore) Get(dim vo.Dimension, voNumber, fallback string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.overrides[overrideKey{dim, voNumber}]; ok {
		return v
	}
	return fallback
}

// Set implements Store.
func (s *MemoryStore) Set(dim vo.Dimension, voNumber, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[overrideKey{dim, voNumber}] = value
	return nil
}

// Len returns the number of overrides currently held.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overrides)
}
