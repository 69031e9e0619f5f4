// Package lock реализует распределённый лок batch-прогонов поверх Redis.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"job-match-engine/internal/domain"
)

// releaseScript удаляет ключ только если токен совпадает: чужой лок
// (например, перехваченный после истечения TTL) не снимается.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisRunLock реализует domain.RunLock через SET NX с ограниченным TTL.
type RedisRunLock struct {
	client *redis.Client
}

var _ domain.RunLock = (*RedisRunLock)(nil)

// NewRedis создаёт лок.
func NewRedis(client *redis.Client) *RedisRunLock {
	return &RedisRunLock{client: client}
}

// Acquire пытается захватить лок. Если лок удерживается другим прогоном,
// возвращает domain.ErrAlreadyRunning: это отдельный статус, не ошибка,
// и повторять попытку в том же окне не нужно.
func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrAlreadyRunning
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
