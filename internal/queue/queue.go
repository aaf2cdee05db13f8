package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const renderQueue = "queue:render_job"

// Queue is a redis-backed dispatch list for render jobs. It is optional:
// when redis is not configured the orchestrator dispatches jobs as plain
// goroutines instead. With redis, a fixed number of worker loops drain the
// list, which bounds how many jobs render concurrently.
type Queue struct {
	client *redis.Client
}

type message struct {
	JobID      uuid.UUID `json:"job_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	data, err := json.Marshal(message{JobID: jobID, EnqueuedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal queue message: %w", err)
	}
	return q.client.RPush(ctx, renderQueue, data).Err()
}

// Dequeue blocks up to timeout for the next job id. A nil id with a nil
// error means the queue was empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*uuid.UUID, error) {
	result, err := q.client.BLPop(ctx, timeout, renderQueue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var msg message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal queue message: %w", err)
	}
	return &msg.JobID, nil
}

func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, renderQueue).Result()
}
