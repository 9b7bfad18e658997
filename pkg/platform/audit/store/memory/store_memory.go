package memory

import (
	"context"
	"sync"

	id "medledger/pkg/domain"
	audit "medledger/pkg/platform/audit"
)

// InMemoryStore keeps the trail in process memory. Order within an address is
// append order, which under the store's single-writer-per-record discipline
// is also operation order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[id.Address][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[id.Address][]audit.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Address] = append(s.events[event.Address], event)
	return nil
}

func (s *InMemoryStore) ListByAddress(_ context.Context, address id.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[address]...), nil
}

// ListAll returns every event across all addresses (admin-only operation).
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, events := range s.events {
		all = append(all, events...)
	}
	return all, nil
}

// Clear drops all events. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[id.Address][]audit.Event)
}
