package cache

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryEntries bounds a MemoryProvider created with a non-positive size.
const DefaultMemoryEntries = 256

// MemoryProvider is an in-process Provider with per-entry TTLs. When full it evicts
// expired entries first and then the oldest insertion.
type MemoryProvider struct {
	mu         sync.Mutex
	data       map[string]entry
	maxEntries int
	now        func() time.Time
}

type entry struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache holding at most maxEntries reports.
func NewMemoryProvider(maxEntries int) *MemoryProvider {
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &MemoryProvider{data: make(map[string]entry), maxEntries: maxEntries, now: time.Now}
}

// Get returns a copy of the stored value, or ErrCacheMiss when absent or expired.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	if it.expired(c.now()) {
		delete(c.data, key)
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores value. A non-positive ttl never expires.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	it := entry{value: append([]byte(nil), value...), storedAt: now}
	if ttl > 0 {
		it.expiresAt = now.Add(ttl)
	}
	if _, exists := c.data[key]; !exists && len(c.data) >= c.maxEntries {
		c.evict(now)
	}
	c.data[key] = it
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryProvider) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

// Close drops every entry.
func (c *MemoryProvider) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
	return nil
}

func (c *MemoryProvider) evict(now time.Time) {
	for key, it := range c.data {
		if it.expired(now) {
			delete(c.data, key)
		}
	}
	if len(c.data) < c.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, it := range c.data {
		if oldestKey == "" || it.storedAt.Before(oldest) {
			oldestKey, oldest = key, it.storedAt
		}
	}
	delete(c.data, oldestKey)
}

func (it entry) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}
