// Package inmemorycheckpoint provides a thread-safe, in-memory implementation
// of the checkpoint.Store interface. It is suitable for tests and for runs
// that do not need to survive the process.
package inmemorycheckpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/specialistvlad/pipegrid/internal/checkpoint"
)

// Store keeps records in a map guarded by a RWMutex. Records are cloned on
// the way in and out so callers never share memory with the store.
type Store struct {
	mu      sync.RWMutex
	records map[string]*checkpoint.Record
}

// New creates a new, empty in-memory checkpoint store.
func New() *Store {
	return &Store{records: make(map[string]*checkpoint.Record)}
}

// FindLatest returns the newest record for pipelineName.
func (s *Store) FindLatest(ctx context.Context, pipelineName string) (*checkpoint.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matching []*checkpoint.Record
	for _, r := range s.records {
		if r.PipelineName == pipelineName {
			matching = append(matching, r)
		}
	}
	latest := checkpoint.Latest(matching)
	if latest == nil {
		return nil, checkpoint.ErrNotFound
	}
	return latest.Clone(), nil
}

// CreateIfAbsent stores a copy of rec unless its id is already present.
func (s *Store) CreateIfAbsent(ctx context.Context, rec *checkpoint.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return false, nil
	}
	s.records[rec.ID] = rec.Clone()
	return true, nil
}

// MarkCompleted sets the completed flag of the record.
func (s *Store) MarkCompleted(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("mark completed %s: %w", id, checkpoint.ErrNotFound)
	}
	r.IsCompleted = true
	return nil
}

// AppendCompletedTask appends hash to the record's completed tasks.
func (s *Store) AppendCompletedTask(ctx context.Context, id, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[id]
	if !ok {
		return fmt.Errorf("append task to %s: %w", id, checkpoint.ErrNotFound)
	}
	r.CompletedTasks = append(r.CompletedTasks, hash)
	return nil
}

// IsTaskCompleted reports whether hash was recorded for the run.
func (s *Store) IsTaskCompleted(ctx context.Context, id, hash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return false, nil
	}
	return r.HasTask(hash), nil
}

// Len returns the number of records held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
