package cache

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory keeps entries in a map. It backs tests and the "memory" backend.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key][]byte)}
}

// Load implements Backend.
func (m *Memory) Load(_ context.Context, key Key) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.entries[key]

	return slices.Clone(v), ok, nil
}

// Save implements Backend.
func (m *Memory) Save(_ context.Context, key Key, value []byte) error {
	m.mu.Lock()
	m.entries[key] = slices.Clone(value)
	m.mu.Unlock()

	return nil
}

// Len returns the number of stored entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}

// Layered puts a bounded LRU in front of a slower backend. Values larger
// than the entry limit bypass the memory layer.
type Layered struct {
	front        *lru.Cache[Key, []byte]
	back         Backend
	maxEntrySize int

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLayered returns a layered backend keeping at most entries values of at
// most maxEntrySize bytes in memory. maxEntrySize <= 0 means unlimited.
func NewLayered(back Backend, entries, maxEntrySize int) (*Layered, error) {
	front, err := lru.New[Key, []byte](entries)
	if err != nil {
		return nil, fmt.Errorf("create memory layer: %w", err)
	}

	return &Layered{front: front, back: back, maxEntrySize: maxEntrySize}, nil
}

// Load implements Backend.
func (l *Layered) Load(ctx context.Context, key Key) ([]byte, bool, error) {
	if v, ok := l.front.Get(key); ok {
		l.hits.Add(1)

		return slices.Clone(v), true, nil
	}

	l.misses.Add(1)

	v, ok, err := l.back.Load(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}

	l.remember(key, v)

	return v, true, nil
}

// Save implements Backend.
func (l *Layered) Save(ctx context.Context, key Key, value []byte) error {
	if err := l.back.Save(ctx, key, value); err != nil {
		return err
	}

	l.remember(key, value)

	return nil
}

func (l *Layered) remember(key Key, value []byte) {
	if l.maxEntrySize > 0 && len(value) > l.maxEntrySize {
		l.front.Remove(key)

		return
	}

	l.front.Add(key, slices.Clone(value))
}

// Stats returns the memory layer hit and miss counts.
func (l *Layered) Stats() (hits, misses int64) {
	return l.hits.Load(), l.misses.Load()
}
