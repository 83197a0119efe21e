package chat

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/pagination"
)

type Repository interface {
	Create(ctx context.Context, msg *models.OrderMessage) error
	ListAfter(ctx context.Context, orderID uuid.UUID, after *pagination.Cursor, limit int) ([]models.OrderMessage, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, msg *models.OrderMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListAfter returns messages oldest first, strictly after the cursor.
func (r *repository) ListAfter(ctx context.Context, orderID uuid.UUID, after *pagination.Cursor, limit int) ([]models.OrderMessage, error) {
	q := r.db.WithContext(ctx).Where("order_id = ?", orderID)
	if after != nil {
		q = q.Where("(created_at > ?) OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.OrderMessage
	err := q.Order("created_at ASC").Order("id ASC").Limit(pagination.NormalizeLimit(limit)).Find(&rows).Error
	return rows, err
}
