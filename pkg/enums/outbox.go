package enums

import "fmt"

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateServiceOrder    OutboxAggregateType = "service_order"
	AggregateOffering        OutboxAggregateType = "fractional_offering"
	AggregateFractionalOrder OutboxAggregateType = "fractional_order"
	AggregateReview          OutboxAggregateType = "review"
	AggregateOrganization    OutboxAggregateType = "organization"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateServiceOrder,
	AggregateOffering,
	AggregateFractionalOrder,
	AggregateReview,
	AggregateOrganization,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType is the event name published downstream.
type OutboxEventType string

const (
	EventServiceOrderCreated   OutboxEventType = "service_order_created"
	EventServiceOrderPaid      OutboxEventType = "service_order_paid"
	EventServiceOrderApproved  OutboxEventType = "service_order_approved"
	EventServiceOrderRejected  OutboxEventType = "service_order_rejected"
	EventServiceOrderCancelled OutboxEventType = "service_order_cancelled"
	EventServiceOrderDelivered OutboxEventType = "service_order_delivered"
	EventServiceOrderCompleted OutboxEventType = "service_order_completed"
	EventServiceOrderExpired   OutboxEventType = "service_order_expired"
	EventFractionalOrderPlaced OutboxEventType = "fractional_order_created"
	EventOfferingPublished     OutboxEventType = "offering_published"
	EventOfferingSoldOut       OutboxEventType = "offering_sold_out"
	EventOfferingClosed        OutboxEventType = "offering_closed"
	EventReviewSubmitted       OutboxEventType = "review_submitted"
	EventBankVerification      OutboxEventType = "bank_verification_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventServiceOrderCreated,
	EventServiceOrderPaid,
	EventServiceOrderApproved,
	EventServiceOrderRejected,
	EventServiceOrderCancelled,
	EventServiceOrderDelivered,
	EventServiceOrderCompleted,
	EventServiceOrderExpired,
	EventFractionalOrderPlaced,
	EventOfferingPublished,
	EventOfferingSoldOut,
	EventOfferingClosed,
	EventReviewSubmitted,
	EventBankVerification,
}

// String implements fmt.Stringer.
func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
