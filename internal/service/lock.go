package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/event-certificates/internal/telemetry"
)

// RedisLocker is a best-effort cross-instance lock. Correctness never depends
// on it: the conditional status update is the real guard.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), bool, error) {
	lockKey := fmt.Sprintf("payment_lock:%s", key)
	ok, err := l.client.SetNX(ctx, lockKey, "1", l.ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !ok {
		return func() {}, false, nil
	}
	return func() {
		if err := l.client.Del(context.Background(), lockKey).Err(); err != nil {
			telemetry.Logger.Warn("Failed to release payment lock", zap.String("key", lockKey), zap.Error(err))
		}
	}, true, nil
}

type noopLocker struct{}

func (noopLocker) Acquire(ctx context.Context, key string) (func(), bool, error) {
	return func() {}, true, nil
}
