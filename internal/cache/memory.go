package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is the in-process Backend. Values are stored as JSON so that
// readers never share slices with the writer.
type MemoryCache struct {
	entries    sync.Map
	rateLimits sync.Map
	ttl        time.Duration
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl: ttl,
		now: time.Now,
	}
}

func (m *MemoryCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	val, ok := m.entries.Load(key)
	if !ok {
		return false, nil
	}
	entry := val.(*memoryEntry)
	if m.ttl > 0 && m.now().After(entry.expiresAt) {
		m.entries.Delete(key)
		return false, nil
	}
	if err := json.Unmarshal(entry.data, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries.Store(key, &memoryEntry{data: data, expiresAt: m.now().Add(m.ttl)})
	return nil
}

func (m *MemoryCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		m.entries.Delete(k)
	}
	return nil
}

func (m *MemoryCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	m.entries.Range(func(k, _ interface{}) bool {
		if strings.HasPrefix(k.(string), prefix) {
			m.entries.Delete(k)
		}
		return true
	})
	return nil
}

type rateLimitEntry struct {
	mu        sync.Mutex
	count     int
	expiresAt time.Time
}

func (m *MemoryCache) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := m.now()
	val, _ := m.rateLimits.LoadOrStore(key, &rateLimitEntry{expiresAt: now.Add(window)})
	entry := val.(*rateLimitEntry)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if now.After(entry.expiresAt) {
		entry.count = 0
		entry.expiresAt = now.Add(window)
	}
	entry.count++
	return entry.count <= limit, nil
}
