package notifications

import "context"

type jsonPublisher interface {
	PublishJSON(ctx context.Context, routingKey string, body any) error
}

// AMQPChannel publishes notifications to a RabbitMQ topic exchange using the
// event name as routing key, for external consumers such as email or push.
type AMQPChannel struct {
	publisher jsonPublisher
}

func NewAMQPChannel(publisher jsonPublisher) *AMQPChannel {
	return &AMQPChannel{publisher: publisher}
}

func (c *AMQPChannel) Name() string { return "amqp" }

func (c *AMQPChannel) Deliver(ctx context.Context, event Event, recipient Recipient) error {
	return c.publisher.PublishJSON(ctx, event.Name, DeliverTaskPayload{Event: event, Recipient: recipient})
}
