package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/money"
)

// ServiceOrderCreatedEvent announces a new Service Hub order and its frozen
// fee breakdown.
type ServiceOrderCreatedEvent struct {
	OrderID             uuid.UUID           `json:"order_id"`
	OrderNumber         string              `json:"order_number"`
	BuyerID             uuid.UUID           `json:"buyer_id"`
	SellerID            uuid.UUID           `json:"seller_id"`
	ServiceID           uuid.UUID           `json:"service_id"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	AmountCents         money.Cents         `json:"amount_cents"`
	PlatformFeeCents    money.Cents         `json:"platform_fee_cents"`
	SellerEarningsCents money.Cents         `json:"seller_earnings_cents"`
}

// ServiceOrderTransitionEvent is emitted for every status change.
type ServiceOrderTransitionEvent struct {
	OrderID     uuid.UUID                `json:"order_id"`
	OrderNumber string                   `json:"order_number"`
	BuyerID     uuid.UUID                `json:"buyer_id"`
	SellerID    uuid.UUID                `json:"seller_id"`
	From        enums.ServiceOrderStatus `json:"from"`
	To          enums.ServiceOrderStatus `json:"to"`
	Reason      string                   `json:"reason,omitempty"`
	At          time.Time                `json:"at"`
}

// ServiceOrderPaidEvent records a payment confirmation.
type ServiceOrderPaidEvent struct {
	OrderID   uuid.UUID `json:"order_id"`
	Reference string    `json:"reference"`
	PaidAt    time.Time `json:"paid_at"`
}

// FractionalOrderCreatedEvent is emitted when shares are reserved.
type FractionalOrderCreatedEvent struct {
	FractionalOrderID uuid.UUID   `json:"fractional_order_id"`
	OfferingID        uuid.UUID   `json:"offering_id"`
	UserID            uuid.UUID   `json:"user_id"`
	Shares            int64       `json:"shares"`
	Tokens            int64       `json:"tokens"`
	UnitsReserved     int64       `json:"units_reserved"`
	AmountCents       money.Cents `json:"amount_cents"`
	RemainingShares   int64       `json:"remaining_shares"`
}

// OfferingStatusEvent is emitted when an offering changes sale status.
type OfferingStatusEvent struct {
	OfferingID uuid.UUID            `json:"offering_id"`
	Status     enums.OfferingStatus `json:"status"`
	At         time.Time            `json:"at"`
}

// ReviewSubmittedEvent is emitted when a review is stored.
type ReviewSubmittedEvent struct {
	ReviewID   uuid.UUID        `json:"review_id"`
	OrderID    uuid.UUID        `json:"order_id"`
	AuthorRole enums.ReviewRole `json:"author_role"`
	SubjectID  uuid.UUID        `json:"subject_id"`
	Rating     int              `json:"rating"`
}

// BankVerificationRecordedEvent is emitted for each stored verification outcome.
type BankVerificationRecordedEvent struct {
	VerificationID uuid.UUID                `json:"verification_id"`
	OrganizationID uuid.UUID                `json:"organization_id"`
	Status         enums.VerificationStatus `json:"status"`
}
