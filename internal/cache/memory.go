package cache

import (
	"context"
	"sync"
	"time"
)

// sweepInterval is how often the background janitor drops expired entries.
const sweepInterval = time.Minute

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
	scopes    []string
}

// MemoryCache is the in-process cache backend: an expiring map plus a
// scope index for targeted invalidation.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	scopes  map[string]map[string]struct{} // scope -> set of keys

	stop chan struct{}
	once sync.Once
}

// NewMemoryCache creates an in-memory cache with a background sweeper.
func NewMemoryCache() *MemoryCache {
	c := &MemoryCache{
		entries: make(map[string]memoryEntry),
		scopes:  make(map[string]map[string]struct{}),
		stop:    make(chan struct{}),
	}
	go c.sweep()
	return c
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}
	return entry.val, true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration, scopes []string) error {
	if ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Re-pointing a key drops its old scope links first.
	if old, ok := c.entries[key]; ok {
		c.unlinkLocked(key, old.scopes)
	}

	c.entries[key] = memoryEntry{
		val:       val,
		expiresAt: time.Now().Add(ttl),
		scopes:    scopes,
	}
	for _, scope := range scopes {
		keys, ok := c.scopes[scope]
		if !ok {
			keys = make(map[string]struct{})
			c.scopes[scope] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (c *MemoryCache) Invalidate(ctx context.Context, scopes ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, scope := range scopes {
		for key := range c.scopes[scope] {
			if entry, ok := c.entries[key]; ok {
				c.unlinkLocked(key, entry.scopes)
				delete(c.entries, key)
			}
		}
		delete(c.scopes, scope)
	}
	return nil
}

// unlinkLocked removes key from every scope set it belongs to.
func (c *MemoryCache) unlinkLocked(key string, scopes []string) {
	for _, scope := range scopes {
		if keys, ok := c.scopes[scope]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(c.scopes, scope)
			}
		}
	}
}

func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.mu.Lock()
			for key, entry := range c.entries {
				if now.After(entry.expiresAt) {
					c.unlinkLocked(key, entry.scopes)
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Len reports the number of live entries, counting expired-but-unswept
// entries as gone.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.Before(entry.expiresAt) {
			n++
		}
	}
	return n
}

func (c *MemoryCache) Close() error {
	c.once.Do(func() { close(c.stop) })
	return nil
}

var _ Cache = (*MemoryCache)(nil)
