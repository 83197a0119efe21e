package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codinglabe/believe-app/internal/analytics/types"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
)

var ErrUnsupportedEventType = errors.New("unsupported analytics event type")

// Writer delivers BigQuery rows produced by analytics handlers.
type Writer interface {
	InsertMarketplace(ctx context.Context, row types.MarketplaceEventRow) error
}

// Handler receives an envelope plus a decoded event payload.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type handlerEntry struct {
	factory func() any
	handler Handler
}

// Router dispatches analytics envelopes to the configured handler per event type.
type Router struct {
	handlers map[enums.OutboxEventType]handlerEntry
	ignored  map[enums.OutboxEventType]struct{}
	logg     *logger.Logger
}

// NewRouter wires the default handlers and allows overrides for specific events.
func NewRouter(writer Writer, logg *logger.Logger, overrides map[enums.OutboxEventType]Handler) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}

	transition := func() handlerEntry {
		return handlerEntry{
			factory: func() any { return &payloads.ServiceOrderTransitionEvent{} },
			handler: newRowHandler(writer, logg, fillServiceOrderTransition),
		}
	}
	offering := func() handlerEntry {
		return handlerEntry{
			factory: func() any { return &payloads.OfferingStatusEvent{} },
			handler: newRowHandler(writer, logg, fillOfferingStatus),
		}
	}

	entries := map[enums.OutboxEventType]handlerEntry{
		enums.EventServiceOrderCreated: {
			factory: func() any { return &payloads.ServiceOrderCreatedEvent{} },
			handler: newRowHandler(writer, logg, fillServiceOrderCreated),
		},
		enums.EventServiceOrderPaid: {
			factory: func() any { return &payloads.ServiceOrderPaidEvent{} },
			handler: newRowHandler(writer, logg, fillServiceOrderPaid),
		},
		enums.EventServiceOrderApproved:  transition(),
		enums.EventServiceOrderRejected:  transition(),
		enums.EventServiceOrderCancelled: transition(),
		enums.EventServiceOrderDelivered: transition(),
		enums.EventServiceOrderCompleted: transition(),
		enums.EventServiceOrderExpired:   transition(),
		enums.EventFractionalOrderPlaced: {
			factory: func() any { return &payloads.FractionalOrderCreatedEvent{} },
			handler: newRowHandler(writer, logg, fillFractionalOrder),
		},
		enums.EventOfferingPublished: offering(),
		enums.EventOfferingSoldOut:   offering(),
		enums.EventOfferingClosed:    offering(),
		enums.EventReviewSubmitted: {
			factory: func() any { return &payloads.ReviewSubmittedEvent{} },
			handler: newRowHandler(writer, logg, fillReviewSubmitted),
		},
	}

	for event, custom := range overrides {
		entry, ok := entries[event]
		if !ok || custom == nil {
			continue
		}
		entry.handler = custom
		entries[event] = entry
	}

	return &Router{
		handlers: entries,
		// Verification outcomes carry compliance data and stay out of the
		// marketplace dataset.
		ignored: map[enums.OutboxEventType]struct{}{enums.EventBankVerification: {}},
		logg:    logg,
	}, nil
}

// Handle dispatches the incoming envelope to the configured handler.
func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	if _, skip := r.ignored[envelope.EventType]; skip {
		r.logg.Debug(r.logg.WithField(ctx, "event_type", envelope.EventType), "analytics event ignored")
		return nil
	}
	entry, ok := r.handlers[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	payload := entry.factory()
	if err := json.Unmarshal(envelope.Payload, payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}

	return entry.handler.Handle(ctx, envelope, payload)
}
