package memory

import (
	"context"
	"fmt"
	"sync"

	"medledger/internal/manufacturer/models"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
)

// InMemoryStore keeps manufacturer entries in a map for tests and local dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.ManufacturerID]*models.Entry
}

func New() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.ManufacturerID]*models.Entry)}
}

func (s *InMemoryStore) Create(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[entry.Manufacturer]; ok {
		return fmt.Errorf("manufacturer %s already registered: %w", entry.Manufacturer, sentinel.ErrAlreadyUsed)
	}
	stored := *entry
	s.entries[entry.Manufacturer] = &stored
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, manufacturer id.ManufacturerID) (*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[manufacturer]
	if !ok {
		return nil, fmt.Errorf("manufacturer %s not found: %w", manufacturer, sentinel.ErrNotFound)
	}
	clone := *entry
	return &clone, nil
}

// Seed inserts an entry directly, bypassing Create's conflict check. Tests
// use it to construct unverified entries.
func (s *InMemoryStore) Seed(entry *models.Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *entry
	s.entries[entry.Manufacturer] = &stored
}
