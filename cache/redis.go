package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores cache entries in Redis so that entries survive
// restarts and are shared across instances. TTL enforcement is delegated
// to Redis itself.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection with a ping
func NewRedisBackend(addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisBackend{client: client}, nil
}

// Get returns the value for key, or a miss when the key is absent or expired
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := b.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores key with the given TTL
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

// Clear flushes the configured Redis database
func (b *RedisBackend) Clear(ctx context.Context) error {
	return b.client.FlushDB(ctx).Err()
}

// Len returns the number of keys in the configured Redis database
func (b *RedisBackend) Len(ctx context.Context) (int, error) {
	n, err := b.client.DBSize(ctx).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// MaxSize returns 0: Redis manages its own memory bounds
func (b *RedisBackend) MaxSize() int {
	return 0
}

// Name identifies the backend in stats
func (b *RedisBackend) Name() string {
	return "redis"
}

// Close releases the underlying Redis connection
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
