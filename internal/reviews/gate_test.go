package reviews

import (
	"testing"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
)

func TestCanReview(t *testing.T) {
	orderID := uuid.New()
	order := func(status enums.ServiceOrderStatus) *models.ServiceOrder {
		return &models.ServiceOrder{ID: orderID, Status: status}
	}
	buyerReview := []models.Review{{OrderID: orderID, AuthorRole: enums.ReviewRoleBuyer}}

	tests := []struct {
		name     string
		status   enums.ServiceOrderStatus
		role     enums.ReviewRole
		existing []models.Review
		want     bool
	}{
		{"buyer completed", enums.ServiceOrderStatusCompleted, enums.ReviewRoleBuyer, nil, true},
		{"buyer delivered", enums.ServiceOrderStatusDelivered, enums.ReviewRoleBuyer, nil, false},
		{"buyer twice", enums.ServiceOrderStatusCompleted, enums.ReviewRoleBuyer, buyerReview, false},
		{"seller delivered", enums.ServiceOrderStatusDelivered, enums.ReviewRoleSeller, nil, true},
		{"seller completed after buyer", enums.ServiceOrderStatusCompleted, enums.ReviewRoleSeller, buyerReview, true},
		{"seller in progress", enums.ServiceOrderStatusInProgress, enums.ReviewRoleSeller, nil, false},
		{"cancelled", enums.ServiceOrderStatusCancelled, enums.ReviewRoleSeller, nil, false},
		{"unknown role", enums.ServiceOrderStatusCompleted, enums.ReviewRole("admin"), nil, false},
	}
	for _, tt := range tests {
		if got := CanReview(order(tt.status), tt.role, tt.existing); got != tt.want {
			t.Fatalf("%s: expected %v got %v", tt.name, tt.want, got)
		}
	}
	if CanReview(nil, enums.ReviewRoleBuyer, nil) {
		t.Fatalf("nil order must not be reviewable")
	}
}
