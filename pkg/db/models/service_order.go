package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/codinglabe/believe-app/pkg/types"
)

// ServiceOrder is a Service Hub order between a buyer and a seller. Money
// columns are computed once at creation and never rewritten.
type ServiceOrder struct {
	ID                  uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderNumber         string                   `gorm:"column:order_number;type:text;not null;uniqueIndex:ux_service_orders_order_number" json:"order_number"`
	BuyerID             uuid.UUID                `gorm:"column:buyer_id;type:uuid;not null;index" json:"buyer_id"`
	SellerID            uuid.UUID                `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	ServiceID           uuid.UUID                `gorm:"column:service_id;type:uuid;not null" json:"service_id"`
	PackageID           uuid.UUID                `gorm:"column:package_id;type:uuid;not null" json:"package_id"`
	Status              enums.ServiceOrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	PaymentStatus       enums.PaymentStatus      `gorm:"column:payment_status;type:text;not null;default:'pending'" json:"payment_status"`
	PaymentMethod       enums.PaymentMethod      `gorm:"column:payment_method;type:text;not null" json:"payment_method"`
	AmountCents         money.Cents              `gorm:"column:amount_cents;not null" json:"amount_cents"`
	PlatformFeeCents    money.Cents              `gorm:"column:platform_fee_cents;not null" json:"platform_fee_cents"`
	TransactionFeeCents money.Cents              `gorm:"column:transaction_fee_cents;not null" json:"transaction_fee_cents"`
	SalesTaxCents       money.Cents              `gorm:"column:sales_tax_cents;not null" json:"sales_tax_cents"`
	SellerEarningsCents money.Cents              `gorm:"column:seller_earnings_cents;not null" json:"seller_earnings_cents"`
	Requirements        string                   `gorm:"column:requirements;type:text;not null" json:"requirements"`
	SpecialInstructions *string                  `gorm:"column:special_instructions;type:text" json:"special_instructions,omitempty"`
	Deliverables        types.Deliverables       `gorm:"column:deliverables;type:jsonb" json:"deliverables"`
	CancellationReason  *string                  `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	PaymentReference    *string                  `gorm:"column:payment_reference;type:text" json:"payment_reference,omitempty"`
	PaidAt              *time.Time               `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CancelledAt         *time.Time               `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	DeliveredAt         *time.Time               `gorm:"column:delivered_at" json:"delivered_at,omitempty"`
	CompletedAt         *time.Time               `gorm:"column:completed_at" json:"completed_at,omitempty"`
	CreatedAt           time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (ServiceOrder) TableName() string { return "service_orders" }

func (o *ServiceOrder) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
