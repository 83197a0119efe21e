package reviews

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/pagination"
)

// Repository persists reviews and aggregates ratings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, review *models.Review) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Review, error)
	ListBySubject(ctx context.Context, subjectID uuid.UUID, role enums.ReviewRole, cursor *pagination.Cursor, limit int) ([]models.Review, error)
	Summary(ctx context.Context, subjectID uuid.UUID, role enums.ReviewRole) (RatingSummary, error)
}

// RatingSummary is computed by SQL on every request.
type RatingSummary struct {
	Average float64 `json:"average_rating" gorm:"column:average"`
	Count   int64   `json:"review_count" gorm:"column:count"`
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, review *models.Review) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&rows).Error
	return rows, err
}

func (r *repository) ListBySubject(ctx context.Context, subjectID uuid.UUID, role enums.ReviewRole, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	var rows []models.Review
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Where("subject_id = ? AND author_role = ?", subjectID, role).
		Scopes(pagination.Scope(cursor, limit, "")).
		Find(&rows).Error
	return rows, err
}

func (r *repository) Summary(ctx context.Context, subjectID uuid.UUID, role enums.ReviewRole) (RatingSummary, error) {
	var out RatingSummary
	err := r.db.WithContext(ctx).
		Model(&models.Review{}).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Where("subject_id = ? AND author_role = ?", subjectID, role).
		Scan(&out).Error
	return out, err
}
