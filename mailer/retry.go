package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// RetryQueue parks jobs whose delivery failed.
type RetryQueue interface {
	Push(ctx context.Context, job Job) error
	Pop(ctx context.Context) (*Job, error)
	Len(ctx context.Context) (int64, error)
}

// RedisRetryQueue is a FIFO Redis list of JSON encoded jobs.
type RedisRetryQueue struct {
	client *redis.Client
	key    string
}

func NewRedisRetryQueue(client *redis.Client, prefix string) *RedisRetryQueue {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "cms"
	}
	return &RedisRetryQueue{client: client, key: prefix + ":mail:retry"}
}

func (q *RedisRetryQueue) Push(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

// Pop returns the oldest job, or nil when the queue is empty.
func (q *RedisRetryQueue) Pop(ctx context.Context) (*Job, error) {
	payload, err := q.client.RPop(ctx, q.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, fmt.Errorf("decode mail job: %w", err)
	}
	return &job, nil
}

func (q *RedisRetryQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
