package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"medledger/internal/batch/models"
	id "medledger/pkg/domain"
	"medledger/pkg/platform/sentinel"
)

// InMemoryStore keeps batch records in a map for tests and local dev.
// It honors the same error contract as the PostgreSQL store.
type InMemoryStore struct {
	mu      sync.RWMutex
	batches map[id.Address]*models.Batch
	byOwner map[id.ManufacturerID][]id.Address
}

func New() *InMemoryStore {
	return &InMemoryStore{
		batches: make(map[id.Address]*models.Batch),
		byOwner: make(map[id.ManufacturerID][]id.Address),
	}
}

func (s *InMemoryStore) Create(_ context.Context, batch *models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.batches[batch.Address]; ok {
		return fmt.Errorf("batch record %s already exists: %w", batch.Address, sentinel.ErrAlreadyUsed)
	}
	stored := *batch
	s.batches[batch.Address] = &stored
	s.byOwner[batch.Manufacturer] = append(s.byOwner[batch.Manufacturer], batch.Address)
	return nil
}

func (s *InMemoryStore) FindByAddress(_ context.Context, address id.Address) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batch, ok := s.batches[address]
	if !ok {
		return nil, fmt.Errorf("batch record %s not found: %w", address, sentinel.ErrNotFound)
	}
	clone := *batch
	return &clone, nil
}

func (s *InMemoryStore) ListByManufacturer(_ context.Context, manufacturer id.ManufacturerID) ([]*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	addresses := s.byOwner[manufacturer]
	out := make([]*models.Batch, 0, len(addresses))
	for _, addr := range addresses {
		clone := *s.batches[addr]
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Address < out[j].Address
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Execute runs validate and mutate on a copy and only then writes it back,
// so a panicking callback cannot leave a half-mutated record behind. Unlike
// the PostgreSQL store it cannot join a surrounding transaction: once
// Execute returns, the mutation is committed even if the caller's operation
// fails afterwards.
func (s *InMemoryStore) Execute(_ context.Context, address id.Address, validate func(*models.Batch) error, mutate func(*models.Batch)) (*models.Batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.batches[address]
	if !ok {
		return nil, fmt.Errorf("batch record %s not found: %w", address, sentinel.ErrNotFound)
	}
	batch := *stored
	if err := validate(&batch); err != nil {
		return nil, err
	}
	mutate(&batch)
	s.batches[address] = &batch
	clone := batch
	return &clone, nil
}

// Clear resets the store between tests.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = make(map[id.Address]*models.Batch)
	s.byOwner = make(map[id.ManufacturerID][]id.Address)
}
