package types

import (
	"time"

	cbigquery "cloud.google.com/go/bigquery"
)

// MarketplaceEventRow mirrors the marketplace_events BigQuery schema. One row
// is written per domain event; columns that do not apply stay NULL.
type MarketplaceEventRow struct {
	EventID             string             `bigquery:"event_id"`
	EventType           string             `bigquery:"event_type"`
	AggregateType       string             `bigquery:"aggregate_type"`
	AggregateID         string             `bigquery:"aggregate_id"`
	OccurredAt          time.Time          `bigquery:"occurred_at"`
	ActorID             *string            `bigquery:"actor_id"`
	OrderID             *string            `bigquery:"order_id"`
	OfferingID          *string            `bigquery:"offering_id"`
	BuyerID             *string            `bigquery:"buyer_id"`
	SellerID            *string            `bigquery:"seller_id"`
	FromStatus          *string            `bigquery:"from_status"`
	ToStatus            *string            `bigquery:"to_status"`
	PaymentMethod       *string            `bigquery:"payment_method"`
	AmountCents         *int64             `bigquery:"amount_cents"`
	PlatformFeeCents    *int64             `bigquery:"platform_fee_cents"`
	SellerEarningsCents *int64             `bigquery:"seller_earnings_cents"`
	UnitsReserved       *int64             `bigquery:"units_reserved"`
	Rating              *int64             `bigquery:"rating"`
	Payload             cbigquery.NullJSON `bigquery:"payload"`
}
