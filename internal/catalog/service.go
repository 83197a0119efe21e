package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/codinglabe/believe-app/pkg/validate"
)

// Service manages Service Hub listings.
type Service interface {
	Create(ctx context.Context, req CreateServiceRequest) (*models.Service, error)
	Get(ctx context.Context, serviceID uuid.UUID) (*models.Service, error)
	ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Service, error)
	SetStatus(ctx context.Context, req SetStatusRequest) error
	// Listing returns an orderable service and one of its packages.
	Listing(ctx context.Context, serviceID, packageID uuid.UUID) (*models.Service, *models.ServicePackage, error)
}

type CreateServiceRequest struct {
	SellerID    uuid.UUID      `json:"-" validate:"required"`
	Title       string         `json:"title" validate:"required,min=3,max=200"`
	Description string         `json:"description" validate:"max=10000"`
	Category    string         `json:"category" validate:"max=100"`
	Packages    []PackageInput `json:"packages" validate:"required,min=1,max=10,dive"`
}

type PackageInput struct {
	Name         string      `json:"name" validate:"required,max=100"`
	Description  string      `json:"description" validate:"max=2000"`
	PriceCents   money.Cents `json:"price_cents" validate:"gt=0"`
	DeliveryDays int         `json:"delivery_days" validate:"gte=1,lte=365"`
}

type SetStatusRequest struct {
	SellerID  uuid.UUID           `validate:"required"`
	ServiceID uuid.UUID           `validate:"required"`
	Status    enums.ServiceStatus `json:"status" validate:"required,enum"`
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, req CreateServiceRequest) (*models.Service, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	svc := &models.Service{
		SellerID:    req.SellerID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Status:      enums.ServiceStatusActive,
	}
	for _, p := range req.Packages {
		svc.Packages = append(svc.Packages, models.ServicePackage{
			Name:         strings.TrimSpace(p.Name),
			Description:  strings.TrimSpace(p.Description),
			PriceCents:   p.PriceCents,
			DeliveryDays: p.DeliveryDays,
		})
	}
	if err := s.repo.Create(ctx, svc); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create service")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"service_id": svc.ID.String(),
		"seller_id":  svc.SellerID.String(),
		"packages":   len(svc.Packages),
	})
	s.logg.Info(logCtx, "service listed")
	return svc, nil
}

func (s *service) Get(ctx context.Context, serviceID uuid.UUID) (*models.Service, error) {
	svc, err := s.repo.FindByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "service not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service")
	}
	return svc, nil
}

func (s *service) ListBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Service, error) {
	services, err := s.repo.ListBySeller(ctx, sellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list services")
	}
	return services, nil
}

func (s *service) SetStatus(ctx context.Context, req SetStatusRequest) error {
	if err := validate.Struct(req); err != nil {
		return err
	}
	existing, err := s.Get(ctx, req.ServiceID)
	if err != nil {
		return err
	}
	if existing.SellerID != req.SellerID {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted for this service")
	}
	if _, err := s.repo.UpdateStatus(ctx, req.ServiceID, req.SellerID, req.Status); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update service status")
	}
	return nil
}

func (s *service) Listing(ctx context.Context, serviceID, packageID uuid.UUID) (*models.Service, *models.ServicePackage, error) {
	svc, err := s.Get(ctx, serviceID)
	if err != nil {
		return nil, nil, err
	}
	if svc.Status != enums.ServiceStatusActive {
		return nil, nil, validate.Field("service_id", "service is not accepting orders")
	}
	for i := range svc.Packages {
		if svc.Packages[i].ID == packageID {
			return svc, &svc.Packages[i], nil
		}
	}
	return nil, nil, validate.Field("package_id", "package does not belong to service")
}
