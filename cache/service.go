package cache

import (
	"context"
	"encoding/json"
	"log"
	"math"
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of cache effectiveness
type Stats struct {
	Backend       string  `json:"backend"`
	Entries       int     `json:"entries"`
	MaxSize       int     `json:"max_size"`
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	TotalRequests uint64  `json:"total_requests"`
}

// Service wraps a Backend with hit/miss accounting and failure isolation:
// a backend error is logged and treated as a miss so callers always fall
// through to recomputing the value.
type Service struct {
	mu      sync.Mutex
	backend Backend
	hits    uint64
	misses  uint64
}

// NewService creates a cache service over the given backend
func NewService(backend Backend) *Service {
	return &Service{backend: backend}
}

// Get returns the cached value for key, counting the lookup as a hit or miss.
// Backend failures are logged and reported as misses.
func (s *Service) Get(ctx context.Context, key string) ([]byte, bool) {
	value, found, err := s.backend.Get(ctx, key)
	if err != nil {
		log.Printf("Warning: cache get failed, treating as miss: %v", err)
		found = false
	}

	s.mu.Lock()
	if found {
		s.hits++
	} else {
		s.misses++
	}
	s.mu.Unlock()

	if !found {
		return nil, false
	}
	return value, true
}

// Set stores value under key for ttl. Backend failures are logged and
// swallowed: a write that fails only costs a future cache miss.
func (s *Service) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		log.Printf("Warning: cache set failed for %s: %v", key, err)
	}
}

// GetJSON looks up key and unmarshals the cached value into out
func (s *Service) GetJSON(ctx context.Context, key string, out interface{}) bool {
	value, found := s.Get(ctx, key)
	if !found {
		return false
	}
	if err := json.Unmarshal(value, out); err != nil {
		log.Printf("Warning: cache entry for %s is not valid JSON, treating as miss: %v", key, err)
		return false
	}
	return true
}

// SetJSON marshals value and stores it under key for ttl
func (s *Service) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("Warning: cache set skipped, value for %s not serializable: %v", key, err)
		return
	}
	s.Set(ctx, key, data, ttl)
}

// Clear removes every cached entry. Hit and miss counters are kept so the
// stats endpoint still reflects lifetime effectiveness.
func (s *Service) Clear(ctx context.Context) error {
	return s.backend.Clear(ctx)
}

// Stats reports current cache size and lifetime hit rate
func (s *Service) Stats(ctx context.Context) Stats {
	entries, err := s.backend.Len(ctx)
	if err != nil {
		log.Printf("Warning: cache size unavailable: %v", err)
		entries = 0
	}

	s.mu.Lock()
	hits := s.hits
	misses := s.misses
	s.mu.Unlock()

	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = math.Round(float64(hits)/float64(total)*100*100) / 100
	}

	return Stats{
		Backend:       s.backend.Name(),
		Entries:       entries,
		MaxSize:       s.backend.MaxSize(),
		Hits:          hits,
		Misses:        misses,
		HitRate:       hitRate,
		TotalRequests: total,
	}
}
