package cache

import (
	"context"
	"sync"
	"time"

	id "medledger/pkg/domain"
)

type memoryEntry struct {
	result    VerifyResult
	expiresAt time.Time
}

// InMemoryCache is the single-process fallback when Redis is not
// configured. Expired entries are dropped lazily on read.
type InMemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[id.Address]memoryEntry
	clock   func() time.Time
}

func NewInMemoryCache(ttl time.Duration) *InMemoryCache {
	return &InMemoryCache{
		ttl:     ttl,
		entries: make(map[id.Address]memoryEntry),
		clock:   time.Now,
	}
}

func (c *InMemoryCache) Get(_ context.Context, address id.Address) (*VerifyResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[address]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.clock().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, address)
		c.mu.Unlock()
		return nil, false
	}
	result := entry.result
	return &result, true
}

func (c *InMemoryCache) Set(_ context.Context, address id.Address, result *VerifyResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[address] = memoryEntry{result: *result, expiresAt: c.clock().Add(c.ttl)}
}
