package router

import (
	"context"
	"fmt"

	"github.com/codinglabe/believe-app/internal/analytics/types"
	"github.com/codinglabe/believe-app/internal/analytics/writer"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
)

// rowHandler turns one decoded payload type into a marketplace row.
type rowHandler[T any] struct {
	writer Writer
	logg   *logger.Logger
	fill   func(row *types.MarketplaceEventRow, event *T)
}

func newRowHandler[T any](w Writer, logg *logger.Logger, fill func(*types.MarketplaceEventRow, *T)) Handler {
	return &rowHandler[T]{writer: w, logg: logg, fill: fill}
}

func (h *rowHandler[T]) Handle(ctx context.Context, envelope types.Envelope, payload any) error {
	event, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("invalid payload for %s", envelope.EventType)
	}
	logCtx := h.logg.WithFields(ctx, map[string]any{
		"event_type":   envelope.EventType,
		"aggregate_id": envelope.AggregateID,
	})

	encoded, err := writer.EncodeJSON(envelope.Payload)
	if err != nil {
		h.logg.Error(logCtx, "failed to encode payload", err)
		return err
	}
	row := types.MarketplaceEventRow{
		EventID:       envelope.EventID,
		EventType:     string(envelope.EventType),
		AggregateType: string(envelope.AggregateType),
		AggregateID:   envelope.AggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		ActorID:       stringPtr(envelope.ActorID),
		Payload:       encoded,
	}
	h.fill(&row, event)

	if err := h.writer.InsertMarketplace(logCtx, row); err != nil {
		h.logg.Error(logCtx, "failed to insert marketplace row", err)
		return err
	}
	h.logg.Info(logCtx, "marketplace row inserted")
	return nil
}

func fillServiceOrderCreated(row *types.MarketplaceEventRow, event *payloads.ServiceOrderCreatedEvent) {
	row.OrderID = uuidPtr(event.OrderID)
	row.BuyerID = uuidPtr(event.BuyerID)
	row.SellerID = uuidPtr(event.SellerID)
	row.ToStatus = stringPtr(string(enums.ServiceOrderStatusPending))
	row.PaymentMethod = stringPtr(string(event.PaymentMethod))
	row.AmountCents = int64Ptr(int64(event.AmountCents))
	row.PlatformFeeCents = int64Ptr(int64(event.PlatformFeeCents))
	row.SellerEarningsCents = int64Ptr(int64(event.SellerEarningsCents))
}

func fillServiceOrderPaid(row *types.MarketplaceEventRow, event *payloads.ServiceOrderPaidEvent) {
	row.OrderID = uuidPtr(event.OrderID)
	if !event.PaidAt.IsZero() {
		row.OccurredAt = event.PaidAt.UTC()
	}
}

func fillServiceOrderTransition(row *types.MarketplaceEventRow, event *payloads.ServiceOrderTransitionEvent) {
	row.OrderID = uuidPtr(event.OrderID)
	row.BuyerID = uuidPtr(event.BuyerID)
	row.SellerID = uuidPtr(event.SellerID)
	row.FromStatus = stringPtr(string(event.From))
	row.ToStatus = stringPtr(string(event.To))
}

func fillFractionalOrder(row *types.MarketplaceEventRow, event *payloads.FractionalOrderCreatedEvent) {
	row.OrderID = uuidPtr(event.FractionalOrderID)
	row.OfferingID = uuidPtr(event.OfferingID)
	row.BuyerID = uuidPtr(event.UserID)
	row.AmountCents = int64Ptr(int64(event.AmountCents))
	row.UnitsReserved = int64Ptr(event.UnitsReserved)
}

func fillOfferingStatus(row *types.MarketplaceEventRow, event *payloads.OfferingStatusEvent) {
	row.OfferingID = uuidPtr(event.OfferingID)
	row.ToStatus = stringPtr(string(event.Status))
}

func fillReviewSubmitted(row *types.MarketplaceEventRow, event *payloads.ReviewSubmittedEvent) {
	row.OrderID = uuidPtr(event.OrderID)
	row.SellerID = uuidPtr(event.SubjectID)
	if event.AuthorRole == enums.ReviewRoleSeller {
		row.SellerID = nil
		row.BuyerID = uuidPtr(event.SubjectID)
	}
	row.Rating = int64Ptr(int64(event.Rating))
}
