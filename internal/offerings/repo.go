package offerings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/codinglabe/believe-app/pkg/pagination"
)

// Repository persists assets, offerings and fractional orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAsset(ctx context.Context, asset *models.FractionalAsset) error
	FindAsset(ctx context.Context, id uuid.UUID) (*models.FractionalAsset, error)
	Create(ctx context.Context, offering *models.FractionalOffering) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.FractionalOffering, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.FractionalOffering, error)
	Update(ctx context.Context, id uuid.UUID, from []enums.OfferingStatus, updates map[string]any) (int64, error)
	ConsumeInventory(ctx context.Context, id uuid.UUID, change inventoryChange) (int64, error)
	List(ctx context.Context, filter listFilter) ([]models.FractionalOffering, error)
	FindExpiredLive(ctx context.Context, now time.Time, limit int) ([]models.FractionalOffering, error)
	CreateOrder(ctx context.Context, order *models.FractionalOrder) error
	ListOrders(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.FractionalOrder, error)
}

// inventoryChange is the outcome of one reservation applied to the locked
// offering row.
type inventoryChange struct {
	Units        int64
	TokenBalance money.Cents
	SoldOut      bool
}

type listFilter struct {
	Statuses []enums.OfferingStatus
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

func (r *repository) CreateAsset(ctx context.Context, asset *models.FractionalAsset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *repository) FindAsset(ctx context.Context, id uuid.UUID) (*models.FractionalAsset, error) {
	var asset models.FractionalAsset
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *repository) Create(ctx context.Context, offering *models.FractionalOffering) error {
	return r.db.WithContext(ctx).Create(offering).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.FractionalOffering, error) {
	var offering models.FractionalOffering
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&offering).Error; err != nil {
		return nil, err
	}
	return &offering, nil
}

// LockByID reads the offering with SELECT ... FOR UPDATE. Must run inside a
// transaction.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.FractionalOffering, error) {
	var offering models.FractionalOffering
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&offering).Error
	if err != nil {
		return nil, err
	}
	return &offering, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, from []enums.OfferingStatus, updates map[string]any) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.FractionalOffering{}).Where("id = ?", id)
	if len(from) > 0 {
		query = query.Where("status IN ?", from)
	}
	res := query.Updates(updates)
	return res.RowsAffected, res.Error
}

// ConsumeInventory takes units from the counter only if the offering is
// still live and enough remain, stores the new token balance and flips the
// status to sold_out in the same statement when nothing is left.
func (r *repository) ConsumeInventory(ctx context.Context, id uuid.UUID, change inventoryChange) (int64, error) {
	updates := map[string]any{
		"available_shares":    gorm.Expr("available_shares - ?", change.Units),
		"token_balance_cents": change.TokenBalance,
	}
	if change.SoldOut {
		updates["status"] = enums.OfferingStatusSoldOut
	}
	res := r.db.WithContext(ctx).
		Model(&models.FractionalOffering{}).
		Where("id = ? AND status = ? AND available_shares >= ?", id, enums.OfferingStatusLive, change.Units).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) List(ctx context.Context, filter listFilter) ([]models.FractionalOffering, error) {
	query := r.db.WithContext(ctx).Model(&models.FractionalOffering{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	var rows []models.FractionalOffering
	err := query.Scopes(pagination.Scope(filter.Cursor, filter.Limit, "")).Find(&rows).Error
	return rows, err
}

// FindExpiredLive returns live or sold out offerings whose close time has
// passed.
func (r *repository) FindExpiredLive(ctx context.Context, now time.Time, limit int) ([]models.FractionalOffering, error) {
	var rows []models.FractionalOffering
	err := r.db.WithContext(ctx).
		Where("status IN ? AND close_at IS NOT NULL AND close_at <= ?",
			[]enums.OfferingStatus{enums.OfferingStatusLive, enums.OfferingStatusSoldOut}, now).
		Order("close_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CreateOrder(ctx context.Context, order *models.FractionalOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) ListOrders(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.FractionalOrder, error) {
	var rows []models.FractionalOrder
	err := r.db.WithContext(ctx).
		Model(&models.FractionalOrder{}).
		Where("user_id = ?", userID).
		Scopes(pagination.Scope(cursor, limit, "")).
		Find(&rows).Error
	return rows, err
}
