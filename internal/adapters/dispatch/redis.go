package dispatch

import (
	"context"
	"errors"
	"time"

	backend "github.com/redis/go-redis/v9"
)

const defaultQueueKey = "biograph:tasks"

// RedisQueue transports tasks through a Redis list: Push is LPUSH, Pop is
// BRPOP, so ordering is FIFO across processes.
type RedisQueue struct {
	client *backend.Client
	key    string
}

// RedisOption configures a RedisQueue.
type RedisOption func(*RedisQueue)

// WithQueueKey overrides the Redis list key.
func WithQueueKey(key string) RedisOption {
	return func(q *RedisQueue) { q.key = key }
}

// NewRedisQueue creates a queue against the given Redis address.
func NewRedisQueue(address, password string, db int, opts ...RedisOption) *RedisQueue {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewRedisQueueFromClient(client, opts...)
}

// NewRedisQueueFromClient wraps an existing client.
func NewRedisQueueFromClient(client *backend.Client, opts ...RedisOption) *RedisQueue {
	q := &RedisQueue{client: client, key: defaultQueueKey}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Push appends the task to the list.
func (q *RedisQueue) Push(ctx context.Context, task Task) error {
	data, err := task.Encode()
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, data).Err()
}

// Pop blocks on the list until a task arrives or the context is done. The
// blocking read uses short timeouts so cancellation is honored promptly.
func (q *RedisQueue) Pop(ctx context.Context) (Task, error) {
	for {
		out, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if errors.Is(err, backend.Nil) {
			select {
			case <-ctx.Done():
				return Task{}, ctx.Err()
			default:
				continue
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, err
		}
		// BRPop returns [key, value].
		return DecodeTask([]byte(out[1]))
	}
}

// Close closes the underlying client.
func (q *RedisQueue) Close() error { return q.client.Close() }
