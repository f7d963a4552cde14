package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/deployd/pkg/domain"
)

// Store implements ports.DeploymentStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.DeploymentRecord
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.DeploymentRecord),
	}
}

// Save persists the record in memory.
func (s *Store) Save(ctx context.Context, record domain.DeploymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[record.Name] = copyRecord(record)
	return nil
}

// Load retrieves the record from memory.
func (s *Store) Load(ctx context.Context, name string) (domain.DeploymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.data[name]
	if !ok {
		return domain.DeploymentRecord{}, fmt.Errorf("%w: %s", domain.ErrDeploymentNotFound, name)
	}

	// Copy on read so callers can't mutate store state through the map
	return copyRecord(record), nil
}

// Delete removes the record.
func (s *Store) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, name)
	return nil
}

// List returns the recorded deployment names.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	return names, nil
}

func copyRecord(r domain.DeploymentRecord) domain.DeploymentRecord {
	tasks := make(map[string]string, len(r.Tasks))
	for k, v := range r.Tasks {
		tasks[k] = v
	}
	r.Tasks = tasks
	return r
}
