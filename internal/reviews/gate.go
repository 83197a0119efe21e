package reviews

import (
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
)

const (
	MinRating = 1
	MaxRating = 5
)

// CanReview reports whether role may review order given the reviews already
// stored for it. Buyers review completed orders; sellers may review once the
// work is delivered. Each side reviews at most once.
func CanReview(order *models.ServiceOrder, role enums.ReviewRole, existing []models.Review) bool {
	if order == nil {
		return false
	}
	for _, r := range existing {
		if r.OrderID == order.ID && r.AuthorRole == role {
			return false
		}
	}
	switch role {
	case enums.ReviewRoleBuyer:
		return order.Status == enums.ServiceOrderStatusCompleted
	case enums.ReviewRoleSeller:
		return order.Status == enums.ServiceOrderStatusDelivered || order.Status == enums.ServiceOrderStatusCompleted
	default:
		return false
	}
}
