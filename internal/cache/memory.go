package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	key   string
	data  []byte
	added time.Time
}

// Memory is an in-process cache bounded by entry count and TTL.
// Eviction is least-recently-used once capacity is exceeded; expired
// entries are dropped lazily on lookup. Reads and writes both touch the
// recency list, so a single mutex serializes access.
type Memory struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
	now      func() time.Time
}

// NewMemory creates a memory cache with the given capacity and TTL.
func NewMemory(capacity int, ttl time.Duration) *Memory {
	return &Memory{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element, capacity),
		now:      time.Now,
	}
}

// Get retrieves a value by key, unmarshalling into dest. An expired
// entry counts as a miss and is removed.
func (m *Memory) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	elem, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}

	e := elem.Value.(*memoryEntry)
	if m.now().Sub(e.added) > m.ttl {
		m.order.Remove(elem)
		delete(m.entries, key)
		m.mu.Unlock()
		return false, nil
	}

	m.order.MoveToFront(elem)
	data := e.data
	m.mu.Unlock()

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache: failed to unmarshal entry: %w", err)
	}
	return true, nil
}

// Set stores a value, evicting the least-recently-used entry if the
// cache is at capacity.
func (m *Memory) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: failed to marshal value: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if elem, ok := m.entries[key]; ok {
		e := elem.Value.(*memoryEntry)
		e.data = data
		e.added = m.now()
		m.order.MoveToFront(elem)
		return nil
	}

	for m.capacity > 0 && m.order.Len() >= m.capacity {
		oldest := m.order.Back()
		if oldest == nil {
			break
		}
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*memoryEntry).key)
	}

	m.entries[key] = m.order.PushFront(&memoryEntry{key: key, data: data, added: m.now()})
	return nil
}

// Len returns the number of resident entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}

// Close releases the cache.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order.Init()
	m.entries = make(map[string]*list.Element)
	return nil
}
