// Package ratelimit реализует решение allow/deny по идентичности вызывающего.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"job-match-engine/internal/domain"
)

// RedisLimiter — лимитер с фиксированным окном: INCR по ключу вызывающего
// и EXPIRE на первом инкременте окна.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

var _ domain.RateLimiter = (*RedisLimiter)(nil)

// NewRedis создаёт лимитер: limit запросов на окно window.
func NewRedis(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{client: client, limit: limit, window: window}
}

// Allow возвращает true, если вызывающий не исчерпал лимит текущего окна.
func (l *RedisLimiter) Allow(ctx context.Context, caller string) (bool, error) {
	bucket := time.Now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("rate:%s:%d", caller, bucket)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(l.limit), nil
}
