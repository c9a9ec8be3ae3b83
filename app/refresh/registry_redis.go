package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry is the multi-process Registry: a SET NX lock with a TTL
// per playlist key, so redundant deployments never refresh the same
// playlist concurrently.
type RedisRegistry struct {
	client *redis.Client
	ctx    context.Context
	ttl    time.Duration
}

func NewRedisRegistry(addr string, ttl time.Duration) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl == 0 {
		ttl = 30 * time.Minute
	}

	return &RedisRegistry{
		client: client,
		ctx:    ctx,
		ttl:    ttl,
	}, nil
}

func (r *RedisRegistry) key(key string) string {
	return "refresh:inflight:" + key
}

func (r *RedisRegistry) Acquire(key string) bool {
	ok, err := r.client.SetNX(r.ctx, r.key(key), time.Now().UTC().Format(time.RFC3339), r.ttl).Result()
	if err != nil {
		slog.Warn("Redis registry acquire failed, allowing refresh", "key", key, "error", err)
		return true
	}
	return ok
}

func (r *RedisRegistry) Release(key string) {
	if err := r.client.Del(r.ctx, r.key(key)).Err(); err != nil {
		slog.Warn("Redis registry release failed", "key", key, "error", err)
	}
}

func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
