// Package memory provides an in-memory checkpoint store for development
// and testing.
package memory

import (
	"context"
	"sync"

	"github.com/burakyilmaz321/fonapi/internal/crawl"
)

// Store implements crawl.CheckpointStore in process memory.
type Store struct {
	mu    sync.RWMutex
	cp    crawl.Checkpoint
	found bool
	saves int
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{}
}

// Seed pre-loads a checkpoint, as if a previous run had written it.
func (s *Store) Seed(cp crawl.Checkpoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = cp
	s.found = true
}

// Load returns the current checkpoint.
func (s *Store) Load(_ context.Context) (crawl.Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cp, s.found, nil
}

// Save replaces the current checkpoint.
func (s *Store) Save(_ context.Context, cp crawl.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = cp
	s.found = true
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *Store) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}
