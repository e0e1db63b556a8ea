package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/crag/store"
)

// RedisStore implements store.ByteStore using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.ByteStore = (*RedisStore)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "crag:"
	TTL      time.Duration // Expiration for entries, default 0 (no expiration)
}

// NewRedisStore creates a new Redis byte store
func NewRedisStore(opts RedisOptions) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "crag:"
	}

	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// MGet fetches all keys with a single MGET.
func (s *RedisStore) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	if err := store.ValidateKeys(keys); err != nil {
		return nil, err
	}
	values := make([][]byte, len(keys))
	if len(keys) == 0 {
		return values, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}

	results, err := s.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read from redis: %w", err)
	}

	for i, result := range results {
		// MGET returns nil for missing keys.
		if str, ok := result.(string); ok {
			values[i] = []byte(str)
		}
	}
	return values, nil
}

// MSet writes all entries in one pipeline.
func (s *RedisStore) MSet(ctx context.Context, entries []store.KeyValue) error {
	if err := store.ValidateEntries(entries); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, e := range entries {
		pipe.Set(ctx, s.key(e.Key), e.Value, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write to redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
