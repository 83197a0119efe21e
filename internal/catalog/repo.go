package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
)

// Repository persists services and their packages.
type Repository interface {
	Create(ctx context.Context, service *models.Service) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Service, error)
	FindPackage(ctx context.Context, serviceID, packageID uuid.UUID) (*models.ServicePackage, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Service, error)
	UpdateStatus(ctx context.Context, id, sellerID uuid.UUID, status enums.ServiceStatus) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// Create inserts the service and its packages in one statement batch.
func (r *repository) Create(ctx context.Context, service *models.Service) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(service).Error
	})
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Service, error) {
	var service models.Service
	err := r.db.WithContext(ctx).
		Preload("Packages", func(db *gorm.DB) *gorm.DB { return db.Order("price_cents ASC") }).
		Where("id = ?", id).
		First(&service).Error
	if err != nil {
		return nil, err
	}
	return &service, nil
}

func (r *repository) FindPackage(ctx context.Context, serviceID, packageID uuid.UUID) (*models.ServicePackage, error) {
	var pkg models.ServicePackage
	err := r.db.WithContext(ctx).
		Where("id = ? AND service_id = ?", packageID, serviceID).
		First(&pkg).Error
	if err != nil {
		return nil, err
	}
	return &pkg, nil
}

func (r *repository) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Service, error) {
	var services []models.Service
	err := r.db.WithContext(ctx).
		Preload("Packages").
		Where("seller_id = ?", sellerID).
		Order("created_at DESC").
		Find(&services).Error
	return services, err
}

func (r *repository) UpdateStatus(ctx context.Context, id, sellerID uuid.UUID, status enums.ServiceStatus) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Service{}).
		Where("id = ? AND seller_id = ?", id, sellerID).
		Update("status", status)
	return res.RowsAffected, res.Error
}
