package queue

import (
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/codinglabe/believe-app/pkg/config"
)

func TestBuildServerConfigDefaults(t *testing.T) {
	opt, cfg := BuildServerConfig(config.QueueConfig{})
	if opt.Addr != "127.0.0.1:6379" {
		t.Fatalf("unexpected addr %q", opt.Addr)
	}
	if cfg.Concurrency != 10 {
		t.Fatalf("expected default concurrency, got %d", cfg.Concurrency)
	}
	if cfg.Queues["default"] != 1 {
		t.Fatalf("expected default queue, got %v", cfg.Queues)
	}
}

func TestBuildServerConfigFromConfig(t *testing.T) {
	opt, cfg := BuildServerConfig(config.QueueConfig{
		RedisAddr:   "redis:6380",
		RedisDB:     2,
		Password:    "pw",
		Concurrency: 4,
		Name:        "notifications",
	})
	if opt.Addr != "redis:6380" || opt.DB != 2 || opt.Password != "pw" {
		t.Fatalf("unexpected redis opt %+v", opt)
	}
	if cfg.Concurrency != 4 || cfg.Queues["notifications"] != 1 {
		t.Fatalf("unexpected server config %+v", cfg)
	}
}

func TestDecodePayload(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}
	if err := DecodePayload(asynq.NewTask(TaskNotificationDeliver, []byte(`{"name":"x"}`)), &out); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	if out.Name != "x" {
		t.Fatalf("unexpected payload %+v", out)
	}

	err := DecodePayload(asynq.NewTask(TaskNotificationDeliver, []byte(`{`)), &out)
	if err == nil || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry error, got %v", err)
	}
}

func TestEnqueueOnNilClient(t *testing.T) {
	var c *Client
	if err := c.Enqueue(t.Context(), TaskNotificationDeliver, map[string]string{}); err == nil {
		t.Fatal("expected error from nil client")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}
