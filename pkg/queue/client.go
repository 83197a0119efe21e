package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/codinglabe/believe-app/pkg/config"
)

// TaskNotificationDeliver carries a notification for asynchronous delivery.
const TaskNotificationDeliver = "notification:deliver"

// Enqueuer is the producer side used by services.
type Enqueuer interface {
	Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error
}

// Client wraps an asynq client bound to a single default queue.
type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(cfg config.QueueConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
		queue:  queueName(cfg),
	}
}

// Enqueue marshals payload as JSON and pushes it onto the default queue.
// Callers may override the queue or add retry options.
func (c *Client) Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) error {
	if c == nil || c.client == nil {
		return errors.New("queue client not initialized")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	options := append([]asynq.Option{asynq.Queue(c.queue)}, opts...)
	if _, err := c.client.EnqueueContext(ctx, asynq.NewTask(taskType, body), options...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// DecodePayload unmarshals a task body produced by Enqueue. Malformed
// payloads are wrapped with asynq.SkipRetry since retrying cannot fix them.
func DecodePayload(task *asynq.Task, v any) error {
	if err := json.Unmarshal(task.Payload(), v); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", task.Type(), err, asynq.SkipRetry)
	}
	return nil
}

// BuildServerConfig returns the redis options and server config for the
// worker process.
func BuildServerConfig(cfg config.QueueConfig) (asynq.RedisClientOpt, asynq.Config) {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	return RedisOpt(cfg), asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queueName(cfg): 1},
	}
}

func RedisOpt(cfg config.QueueConfig) asynq.RedisClientOpt {
	addr := cfg.RedisAddr
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	return asynq.RedisClientOpt{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.RedisDB,
	}
}

func queueName(cfg config.QueueConfig) string {
	if cfg.Name == "" {
		return "default"
	}
	return cfg.Name
}
