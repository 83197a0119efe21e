package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/money"
)

// FractionalAsset is the underlying asset an offering sells shares of.
type FractionalAsset struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;type:text;not null" json:"name"`
	AssetType   string    `gorm:"column:asset_type;type:text;not null;default:''" json:"asset_type"`
	Description string    `gorm:"column:description;type:text;not null;default:''" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (a *FractionalAsset) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// FractionalOffering sells a fixed number of shares of an asset. The
// available_shares counter and token_balance_cents are only changed inside a
// locked transaction. token_balance_cents is the unsold value of the share
// currently being sold as tokens.
type FractionalOffering struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	AssetID             uuid.UUID            `gorm:"column:asset_id;type:uuid;not null;index" json:"asset_id"`
	Title               string               `gorm:"column:title;type:text;not null" json:"title"`
	TotalShares         int64                `gorm:"column:total_shares;not null" json:"total_shares"`
	AvailableShares     int64                `gorm:"column:available_shares;not null" json:"available_shares"`
	PricePerShareCents  money.Cents          `gorm:"column:price_per_share_cents;not null" json:"price_per_share_cents"`
	TokenPriceCents     money.Cents          `gorm:"column:token_price_cents;not null;default:0" json:"token_price_cents"`
	TokenBalanceCents   money.Cents          `gorm:"column:token_balance_cents;not null;default:0" json:"token_balance_cents"`
	OwnershipPercentage decimal.NullDecimal  `gorm:"column:ownership_percentage;type:numeric(9,4)" json:"ownership_percentage"`
	Currency            string               `gorm:"column:currency;type:text;not null;default:'USD'" json:"currency"`
	Status              enums.OfferingStatus `gorm:"column:status;type:text;not null;default:'draft'" json:"status"`
	GoLiveAt            *time.Time           `gorm:"column:go_live_at" json:"go_live_at,omitempty"`
	CloseAt             *time.Time           `gorm:"column:close_at" json:"close_at,omitempty"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *FractionalOffering) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// FractionalOrder records a paid purchase of full shares and/or tokens.
// UnitsReserved counts whole shares taken from the counter, which is zero
// when the open token balance covered the purchase.
type FractionalOrder struct {
	ID              uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OfferingID      uuid.UUID   `gorm:"column:offering_id;type:uuid;not null;index" json:"offering_id"`
	UserID          uuid.UUID   `gorm:"column:user_id;type:uuid;not null;index" json:"user_id"`
	OrderNumber     string      `gorm:"column:order_number;type:text;not null;uniqueIndex:ux_fractional_orders_order_number" json:"order_number"`
	TagNumber       string      `gorm:"column:tag_number;type:text;not null;uniqueIndex:ux_fractional_orders_tag_number" json:"tag_number"`
	Shares          int64       `gorm:"column:shares;not null;default:0" json:"shares"`
	Tokens          int64       `gorm:"column:tokens;not null;default:0" json:"tokens"`
	UnitsReserved   int64       `gorm:"column:units_reserved;not null" json:"units_reserved"`
	AmountCents     money.Cents `gorm:"column:amount_cents;not null" json:"amount_cents"`
	PaymentIntentID *string     `gorm:"column:payment_intent_id;type:text" json:"payment_intent_id,omitempty"`
	PaidAt          time.Time   `gorm:"column:paid_at;not null" json:"paid_at"`
	CreatedAt       time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (o *FractionalOrder) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
