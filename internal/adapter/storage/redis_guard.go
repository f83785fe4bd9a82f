package storage

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dispatchKeyTTL = 24 * time.Hour

// RedisGuard claims dispatch idempotency keys with SETNX so each
// (order, status) pair triggers its side effects exactly once, even when a
// transition is retried after a version conflict.
type RedisGuard struct {
	client *redis.Client
}

func NewRedisGuard(client *redis.Client) *RedisGuard {
	return &RedisGuard{client: client}
}

func (r *RedisGuard) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, dispatchKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}
