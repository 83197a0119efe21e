package notifications

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/queue"
)

// DeliverTaskPayload is the asynq task body for queued notifications.
type DeliverTaskPayload struct {
	Event     Event     `json:"event"`
	Recipient Recipient `json:"recipient"`
}

// QueueChannel hands notifications to the background worker.
type QueueChannel struct {
	enqueuer queue.Enqueuer
}

func NewQueueChannel(enqueuer queue.Enqueuer) *QueueChannel {
	return &QueueChannel{enqueuer: enqueuer}
}

func (c *QueueChannel) Name() string { return "queue" }

func (c *QueueChannel) Deliver(ctx context.Context, event Event, recipient Recipient) error {
	return c.enqueuer.Enqueue(ctx, queue.TaskNotificationDeliver, DeliverTaskPayload{
		Event:     event,
		Recipient: recipient,
	}, asynq.MaxRetry(5))
}

// DeliverTaskHandler processes queued notifications on the worker by
// delivering them to the given channels (normally the store).
type DeliverTaskHandler struct {
	channels []Channel
	logg     *logger.Logger
}

func NewDeliverTaskHandler(logg *logger.Logger, channels ...Channel) *DeliverTaskHandler {
	return &DeliverTaskHandler{channels: channels, logg: logg}
}

// ProcessTask implements asynq.Handler. Any channel failure makes asynq retry
// the whole task.
func (h *DeliverTaskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var payload DeliverTaskPayload
	if err := queue.DecodePayload(task, &payload); err != nil {
		return err
	}
	for _, ch := range h.channels {
		if err := ch.Deliver(ctx, payload.Event, payload.Recipient); err != nil {
			return fmt.Errorf("deliver %s via %s: %w", payload.Event.Name, ch.Name(), err)
		}
	}
	ctx = h.logg.WithFields(ctx, map[string]any{
		"event":        payload.Event.Name,
		"recipient_id": payload.Recipient.UserID.String(),
	})
	h.logg.Info(ctx, "queued notification delivered")
	return nil
}
