package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"job-match-engine/internal/domain"
)

// RedisMatchQueue реализует очередь задач матчинга на базе Redis lists.
// Доставка at-most-once: подтверждение — no-op, задача снимается при чтении.
type RedisMatchQueue struct {
	client *redis.Client
	key    string
}

var _ domain.MatchQueue = (*RedisMatchQueue)(nil)

// NewRedisMatchQueue создаёт очередь по указанному ключу.
func NewRedisMatchQueue(client *redis.Client, key string) *RedisMatchQueue {
	return &RedisMatchQueue{client: client, key: key}
}

// Enqueue публикует задачу в очередь.
func (q *RedisMatchQueue) Enqueue(ctx context.Context, job domain.MatchJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Receive блокирующе читает задачу из очереди.
func (q *RedisMatchQueue) Receive(ctx context.Context) (domain.MatchJob, domain.MatchAckFunc, error) {
	ack := func(bool) error { return nil }
	for {
		if err := ctx.Err(); err != nil {
			return domain.MatchJob{}, nil, err
		}

		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.MatchJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.MatchJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.MatchJob{}, nil, errors.New("redis queue: unexpected response")
		}
		var job domain.MatchJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.MatchJob{}, nil, fmt.Errorf("decode job: %w", err)
		}
		return job, ack, nil
	}
}
