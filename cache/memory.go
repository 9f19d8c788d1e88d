package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value          []byte
	expiresAt      time.Time
	lastAccessedAt time.Time
	// touched orders entries for eviction: it is bumped on insert and on
	// every hit, so the smallest value is the least recently used entry,
	// with insertion order breaking lastAccessedAt ties.
	touched uint64
}

// MemoryBackend is a bounded in-process cache with TTL expiry and strict
// LRU eviction. Expiry is lazy: an expired entry is removed when a read
// finds it. Eviction is eager: inserting a new key at capacity removes the
// least recently used entry first.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	maxSize int
	counter uint64
	now     func() time.Time
}

// MemoryOption configures a MemoryBackend
type MemoryOption func(*MemoryBackend)

// MemoryWithClock replaces the time source, for tests
func MemoryWithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		b.now = now
	}
}

// NewMemoryBackend creates an in-memory cache holding at most maxSize entries
func NewMemoryBackend(maxSize int, opts ...MemoryOption) *MemoryBackend {
	if maxSize <= 0 {
		maxSize = DefaultMaxEntries
	}
	b := &MemoryBackend{
		entries: make(map[string]*memoryEntry),
		maxSize: maxSize,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get returns the value for key, or a miss if the key is absent or expired.
// An expired entry found here is deleted rather than returned stale.
func (b *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, ok := b.entries[key]
	if !ok {
		return nil, false, nil
	}

	now := b.now()
	if !now.Before(entry.expiresAt) {
		delete(b.entries, key)
		return nil, false, nil
	}

	entry.lastAccessedAt = now
	b.counter++
	entry.touched = b.counter
	return entry.value, true, nil
}

// Set inserts or overwrites key. Inserting a new key at capacity evicts the
// least recently used entry first; overwriting an existing key never evicts.
func (b *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.counter++

	if entry, ok := b.entries[key]; ok {
		entry.value = value
		entry.expiresAt = now.Add(ttl)
		entry.lastAccessedAt = now
		entry.touched = b.counter
		return nil
	}

	if len(b.entries) >= b.maxSize {
		b.evictOldest()
	}

	b.entries[key] = &memoryEntry{
		value:          value,
		expiresAt:      now.Add(ttl),
		lastAccessedAt: now,
		touched:        b.counter,
	}
	return nil
}

// evictOldest removes the entry with the smallest touch counter.
// Callers must hold b.mu.
func (b *MemoryBackend) evictOldest() {
	var victim string
	var oldest uint64
	first := true
	for key, entry := range b.entries {
		if first || entry.touched < oldest {
			victim = key
			oldest = entry.touched
			first = false
		}
	}
	if !first {
		delete(b.entries, victim)
	}
}

// Clear removes every entry immediately, regardless of TTL
func (b *MemoryBackend) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]*memoryEntry)
	return nil
}

// Len returns the number of stored entries, including any whose TTL has
// elapsed but which no read has purged yet
func (b *MemoryBackend) Len(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries), nil
}

// MaxSize returns the capacity bound
func (b *MemoryBackend) MaxSize() int {
	return b.maxSize
}

// Name identifies the backend in stats
func (b *MemoryBackend) Name() string {
	return "memory"
}
