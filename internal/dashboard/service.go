// Package dashboard aggregates seller statistics from persisted orders,
// reviews and notifications on every request.
package dashboard

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/reviews"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/money"
)

type ratingSource interface {
	SellerSummary(ctx context.Context, sellerID uuid.UUID) (reviews.RatingSummary, error)
}

type unreadCounter interface {
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int64, error)
}

type SellerStats struct {
	OrdersByStatus          map[enums.ServiceOrderStatus]int64 `json:"orders_by_status"`
	TotalOrders             int64                              `json:"total_orders"`
	CompletedEarningsCents  money.Cents                        `json:"completed_earnings_cents"`
	PendingClearanceCents   money.Cents                        `json:"pending_clearance_cents"`
	AverageRating           float64                            `json:"average_rating"`
	ReviewCount             int64                              `json:"review_count"`
	UnreadNotificationCount int64                              `json:"unread_notification_count"`
}

type Service interface {
	SellerStats(ctx context.Context, sellerID uuid.UUID) (*SellerStats, error)
}

type service struct {
	db      *gorm.DB
	ratings ratingSource
	unread  unreadCounter
}

func NewService(db *gorm.DB, ratings ratingSource, unread unreadCounter) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if ratings == nil {
		return nil, fmt.Errorf("rating source required")
	}
	if unread == nil {
		return nil, fmt.Errorf("unread counter required")
	}
	return &service{db: db, ratings: ratings, unread: unread}, nil
}

type statusRow struct {
	Status   enums.ServiceOrderStatus `gorm:"column:status"`
	Orders   int64                    `gorm:"column:orders"`
	Earnings int64                    `gorm:"column:earnings"`
}

func (s *service) SellerStats(ctx context.Context, sellerID uuid.UUID) (*SellerStats, error) {
	var rows []statusRow
	err := s.db.WithContext(ctx).
		Model(&models.ServiceOrder{}).
		Select("status, COUNT(*) AS orders, COALESCE(SUM(seller_earnings_cents), 0) AS earnings").
		Where("seller_id = ?", sellerID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate orders")
	}

	stats := &SellerStats{OrdersByStatus: map[enums.ServiceOrderStatus]int64{}}
	for _, status := range enums.ServiceOrderStatuses() {
		stats.OrdersByStatus[status] = 0
	}
	for _, row := range rows {
		stats.OrdersByStatus[row.Status] = row.Orders
		stats.TotalOrders += row.Orders
		switch row.Status {
		case enums.ServiceOrderStatusCompleted:
			stats.CompletedEarningsCents = money.Cents(row.Earnings)
		case enums.ServiceOrderStatusDelivered:
			stats.PendingClearanceCents = money.Cents(row.Earnings)
		}
	}

	summary, err := s.ratings.SellerSummary(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	stats.AverageRating = summary.Average
	stats.ReviewCount = summary.Count

	if stats.UnreadNotificationCount, err = s.unread.UnreadCount(ctx, sellerID); err != nil {
		return nil, err
	}
	return stats, nil
}
