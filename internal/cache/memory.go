package cache

import (
	"context"
	"sync"
	"time"

	"evalboard/internal/model"
)

// MemoryResultCache is the in-process fallback used when Redis is
// unconfigured or unreachable. Entries do not survive a restart and are not
// shared across instances; that is the documented trade for never failing
// the pipeline on a degraded cache backend.
type MemoryResultCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	rows      []model.Row
	expiresAt time.Time
}

func NewMemoryResultCache() *MemoryResultCache {
	return &MemoryResultCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryResultCache) Get(_ context.Context, fileHash string) ([]model.Row, bool) {
	c.mu.RLock()
	entry, ok := c.entries[fileHash]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		delete(c.entries, fileHash)
		c.mu.Unlock()
		return nil, false
	}
	return entry.rows, true
}

func (c *MemoryResultCache) Set(_ context.Context, fileHash string, rows []model.Row, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	c.mu.Lock()
	c.entries[fileHash] = memoryEntry{
		rows:      rows,
		expiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}
