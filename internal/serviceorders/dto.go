package serviceorders

import (
	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/types"
)

// CreateOrderRequest is the buyer's checkout of a service package.
type CreateOrderRequest struct {
	BuyerID             uuid.UUID           `json:"-" validate:"required"`
	ServiceID           uuid.UUID           `json:"service_id" validate:"required"`
	PackageID           uuid.UUID           `json:"package_id" validate:"required"`
	Requirements        string              `json:"requirements" validate:"required,min=10,max=5000"`
	SpecialInstructions *string             `json:"special_instructions,omitempty" validate:"omitempty,max=2000"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method" validate:"required,enum"`
}

// TransitionRequest carries the actor and optional inputs of a lifecycle
// operation. Reason applies to reject and cancel, Deliverables to deliver.
type TransitionRequest struct {
	OrderID      uuid.UUID          `json:"-"`
	ActorID      uuid.UUID          `json:"-"`
	Reason       *string            `json:"reason,omitempty" validate:"omitempty,max=1000"`
	Deliverables types.Deliverables `json:"deliverables,omitempty" validate:"omitempty,dive"`
}

// MarkPaidRequest records a settled payment for an order.
type MarkPaidRequest struct {
	OrderID   uuid.UUID `json:"-" validate:"required"`
	Reference string    `json:"reference" validate:"required,max=255"`
}

// ListParams selects the buyer or seller view of the actor's orders.
type ListParams struct {
	ActorID uuid.UUID
	View    Party
	Status  *enums.ServiceOrderStatus
	Limit   int
	Cursor  string
}

// Viewer identifies who is reading an order.
type Viewer struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// OrderDetail is an order plus the viewer's role and the operations the
// viewer may attempt next.
type OrderDetail struct {
	Order      *models.ServiceOrder `json:"order"`
	ViewerRole *Party               `json:"viewer_role,omitempty"`
	Operations []Operation          `json:"available_operations"`
}
