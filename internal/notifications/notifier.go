package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/metrics"
)

// Event is a user-facing notification about something that happened on the
// marketplace, e.g. "service_order_delivered".
type Event struct {
	Name    string         `json:"name"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Link    string         `json:"link,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Recipient identifies who receives a notification.
type Recipient struct {
	UserID uuid.UUID `json:"user_id"`
}

// Notifier dispatches notifications without reporting delivery failures to
// the caller.
type Notifier interface {
	Notify(ctx context.Context, event Event, recipient Recipient)
}

// Channel is one delivery mechanism behind a Dispatcher.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, event Event, recipient Recipient) error
}

const deliverTimeout = 5 * time.Second

// Dispatcher fans a notification out to every configured channel in the
// background, so Notify returns before any channel is contacted. Each
// channel gets its own timeout detached from the caller's cancellation so
// a finished HTTP request does not abort delivery.
type Dispatcher struct {
	channels []Channel
	logg     *logger.Logger
	metrics  *metrics.MarketplaceMetrics
	inflight sync.WaitGroup
}

func NewDispatcher(logg *logger.Logger, m *metrics.MarketplaceMetrics, channels ...Channel) *Dispatcher {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{channels: channels, logg: logg, metrics: m}
}

func (d *Dispatcher) Notify(ctx context.Context, event Event, recipient Recipient) {
	if recipient.UserID == uuid.Nil || event.Name == "" || len(d.channels) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.deliver(ctx, event, recipient)
	}()
}

// Wait blocks until in-flight deliveries finish or ctx is done. Called on
// shutdown so queued notifications are not dropped.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event, recipient Recipient) {
	for _, ch := range d.channels {
		deliverCtx, cancel := context.WithTimeout(ctx, deliverTimeout)
		err := ch.Deliver(deliverCtx, event, recipient)
		cancel()
		if err != nil {
			d.metrics.ObserveNotification(ch.Name(), metrics.OutcomeError)
			logCtx := d.logg.WithFields(ctx, map[string]any{
				"channel":      ch.Name(),
				"event":        event.Name,
				"recipient_id": recipient.UserID.String(),
				"error":        err.Error(),
			})
			d.logg.Warn(logCtx, "notification delivery failed")
			continue
		}
		d.metrics.ObserveNotification(ch.Name(), metrics.OutcomeOK)
	}
}

// LogChannel writes notifications to the log. Useful in dev.
type LogChannel struct {
	logg *logger.Logger
}

func NewLogChannel(logg *logger.Logger) *LogChannel {
	return &LogChannel{logg: logg}
}

func (c *LogChannel) Name() string { return "log" }

func (c *LogChannel) Deliver(ctx context.Context, event Event, recipient Recipient) error {
	ctx = c.logg.WithFields(ctx, map[string]any{
		"event":        event.Name,
		"recipient_id": recipient.UserID.String(),
		"title":        event.Title,
	})
	c.logg.Info(ctx, "notification")
	return nil
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Event, Recipient) {}
