package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisBufferPrefix = "buffer:"

// RedisBufferStore backs the buffer store with Redis so multiple instances
// can share processed bytes. Expiry is delegated to Redis TTLs.
type RedisBufferStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisBufferStore constructs a Redis-backed buffer store.
func NewRedisBufferStore(client *redis.Client, ttl time.Duration) *RedisBufferStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisBufferStore{client: client, ttl: ttl}
}

func (s *RedisBufferStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, redisBufferPrefix+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisBufferStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisBufferPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrBufferNotFound
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisBufferStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisBufferPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Sweep is a no-op: Redis expires entries server-side.
func (s *RedisBufferStore) Sweep(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *RedisBufferStore) Len(ctx context.Context) (int, error) {
	var count int
	iter := s.client.Scan(ctx, 0, redisBufferPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return count, nil
}
