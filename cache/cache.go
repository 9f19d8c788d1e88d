package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Key prefixes for the logical caches sharing one backend
const (
	QueryPrefix     = "query"
	EmbeddingPrefix = "embedding"
	AnalyticsPrefix = "analytics"
)

// Default cache sizing and expirations
const (
	DefaultMaxEntries   = 1000
	DefaultQueryTTL     = time.Hour
	DefaultEmbeddingTTL = 24 * time.Hour
)

// Backend is the storage contract shared by the in-memory and Redis caches.
// Get reports a miss for absent and for expired keys; Set always overwrites.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
	MaxSize() int
	Name() string
}

// Key builds a cache key from a prefix, positional inputs, and named
// parameters. String inputs are trimmed and lowercased so that queries
// differing only in casing or surrounding whitespace share an entry, while
// any parameter that changes the answer (language, result count, model)
// keeps entries apart. Parameters are sorted by name so the key is stable
// regardless of call-site ordering. The joined form is hashed and rendered
// as "prefix:<sha256 hex>".
func Key(prefix string, args []string, params map[string]string) string {
	parts := make([]string, 0, 1+len(args)+len(params))
	parts = append(parts, prefix)
	for _, arg := range args {
		parts = append(parts, strings.ToLower(strings.TrimSpace(arg)))
	}
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = append(parts, name+":"+params[name])
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return prefix + ":" + hex.EncodeToString(sum[:])
}

// NewBackendFromEnv selects the cache backend from environment variables.
// CACHE_BACKEND=redis enables the shared Redis backend; anything else (or an
// unreachable Redis) yields the bounded in-memory backend, since caching is
// an optimization the service must run without.
func NewBackendFromEnv() Backend {
	maxEntries := DefaultMaxEntries
	if v := os.Getenv("CACHE_MAX_ENTRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxEntries = n
		}
	}

	if os.Getenv("CACHE_BACKEND") == "redis" {
		addr := os.Getenv("REDIS_ADDR")
		if addr == "" {
			addr = "localhost:6379"
		}
		db := 0
		if v := os.Getenv("REDIS_DB"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				db = n
			}
		}

		backend, err := NewRedisBackend(addr, os.Getenv("REDIS_PASSWORD"), db)
		if err != nil {
			log.Printf("Warning: Redis cache unavailable, falling back to in-memory cache: %v", err)
			return NewMemoryBackend(maxEntries)
		}
		log.Println("Redis cache connected")
		return backend
	}

	return NewMemoryBackend(maxEntries)
}
