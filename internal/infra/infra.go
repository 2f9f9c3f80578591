// Package infra provides shared infrastructure used by the fetchers and the
// pipeline: result caching (in-memory or Redis), rate limiting, and HTTP helpers.
package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/config"
)

// Store is a byte-oriented TTL cache. A miss is (nil, false, nil).
type Store interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}

// NewStore builds the cache backend selected in cfg.
func NewStore(ctx context.Context, cfg config.CacheConfig) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return NewMemoryStore(time.Duration(cfg.TTLSec) * time.Second), nil
	case "none":
		return NopStore{}, nil
	case "redis":
		return NewRedisStore(ctx, cfg.RedisURL)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// GetJSON loads key from s and decodes it into a T. Backend errors and
// undecodable entries are logged and reported as a miss.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, bool) {
	var zero T
	if s == nil {
		return zero, false
	}
	raw, ok, err := s.Load(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache load failed")
		return zero, false
	}
	if !ok {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache entry undecodable")
		return zero, false
	}
	return v, true
}

// SetJSON encodes v and stores it under key. Failures are logged only.
func SetJSON(ctx context.Context, s Store, key string, v any, ttl time.Duration) {
	if s == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := s.Save(ctx, key, raw, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache save failed")
	}
}

// --- Simple in-memory cache ---

// CacheEntry holds a cached value with expiration.
type CacheEntry struct {
	Value     any
	ExpiresAt time.Time
}

// Cache is a simple thread-safe in-memory cache with TTL.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CacheEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewCache creates a new cache with the given default TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]CacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get retrieves a value from the cache. Returns nil, false if not found or expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry.Value, true
}

// Set stores a value in the cache with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL.
// A non-positive ttl falls back to the default.
func (c *Cache) SetWithTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	c.mu.Lock()
	c.entries[key] = CacheEntry{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
	c.mu.Unlock()
}

// Invalidate removes a key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries. Can be called periodically.
func (c *Cache) Cleanup() {
	c.mu.Lock()
	now := c.now()
	for k, v := range c.entries {
		if now.After(v.ExpiresAt) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}

// MemoryStore adapts Cache to the Store interface.
type MemoryStore struct {
	*Cache
}

// NewMemoryStore returns an in-process Store.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{Cache: NewCache(ttl)}
}

func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, _ := v.([]byte)
	return b, true, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, value []byte, ttl time.Duration) error {
	cp := make([]byte, len(value))
	copy(cp, value)
	m.SetWithTTL(key, cp, ttl)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// NopStore never stores anything.
type NopStore struct{}

func (NopStore) Load(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NopStore) Save(context.Context, string, []byte, time.Duration) error { return nil }
func (NopStore) Close() error                                              { return nil }
