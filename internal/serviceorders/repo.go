package serviceorders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/pagination"
)

// Repository persists service orders. Status changes are conditional on the
// status the caller observed so concurrent transitions cannot both apply.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.ServiceOrder) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from enums.ServiceOrderStatus, updates map[string]any) (int64, error)
	MarkPaid(ctx context.Context, id uuid.UUID, reference string, paidAt time.Time) (int64, error)
	ExpireUnpaid(ctx context.Context, id uuid.UUID, reason string, now time.Time) (int64, error)
	List(ctx context.Context, filter listFilter) ([]models.ServiceOrder, error)
	FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ServiceOrder, error)
}

type listFilter struct {
	BuyerID  *uuid.UUID
	SellerID *uuid.UUID
	Status   *enums.ServiceOrderStatus
	Cursor   *pagination.Cursor
	Limit    int
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

func (r *repository) Create(ctx context.Context, order *models.ServiceOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	var order models.ServiceOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus applies updates only while the row is still in from. The
// returned row count is 0 when another writer moved the order first.
func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from enums.ServiceOrderStatus, updates map[string]any) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ServiceOrder{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) MarkPaid(ctx context.Context, id uuid.UUID, reference string, paidAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ServiceOrder{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, enums.ServiceOrderStatusPending, enums.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status":    enums.PaymentStatusPaid,
			"payment_reference": reference,
			"paid_at":           paidAt,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ExpireUnpaid(ctx context.Context, id uuid.UUID, reason string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ServiceOrder{}).
		Where("id = ? AND status = ? AND payment_status = ?", id, enums.ServiceOrderStatusPending, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":              enums.ServiceOrderStatusCancelled,
			"cancelled_at":        now,
			"cancellation_reason": reason,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, filter listFilter) ([]models.ServiceOrder, error) {
	query := r.db.WithContext(ctx).Model(&models.ServiceOrder{})
	if filter.BuyerID != nil {
		query = query.Where("buyer_id = ?", *filter.BuyerID)
	}
	if filter.SellerID != nil {
		query = query.Where("seller_id = ?", *filter.SellerID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var rows []models.ServiceOrder
	err := query.Scopes(pagination.Scope(filter.Cursor, filter.Limit, "")).Find(&rows).Error
	return rows, err
}

// FindUnpaidBefore returns pending, unpaid orders created before cutoff,
// oldest first.
func (r *repository) FindUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ServiceOrder, error) {
	var rows []models.ServiceOrder
	err := r.db.WithContext(ctx).
		Where("status = ? AND payment_status = ? AND created_at < ?", enums.ServiceOrderStatusPending, enums.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
