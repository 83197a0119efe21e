package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/money"
)

// Service is a seller's listing in the Service Hub.
type Service struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SellerID    uuid.UUID           `gorm:"column:seller_id;type:uuid;not null;index" json:"seller_id"`
	Title       string              `gorm:"column:title;type:text;not null" json:"title"`
	Description string              `gorm:"column:description;type:text;not null;default:''" json:"description"`
	Category    string              `gorm:"column:category;type:text;not null;default:''" json:"category"`
	Status      enums.ServiceStatus `gorm:"column:status;type:text;not null;default:'draft'" json:"status"`
	Packages    []ServicePackage    `gorm:"foreignKey:ServiceID" json:"packages,omitempty"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// ServicePackage is a priced tier of a Service.
type ServicePackage struct {
	ID           uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ServiceID    uuid.UUID   `gorm:"column:service_id;type:uuid;not null;index" json:"service_id"`
	Name         string      `gorm:"column:name;type:text;not null" json:"name"`
	Description  string      `gorm:"column:description;type:text;not null;default:''" json:"description"`
	PriceCents   money.Cents `gorm:"column:price_cents;not null" json:"price_cents"`
	DeliveryDays int         `gorm:"column:delivery_days;not null;default:1" json:"delivery_days"`
	CreatedAt    time.Time   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (p *ServicePackage) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}
