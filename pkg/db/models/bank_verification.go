package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/enums"
)

// OrganizationBankVerification records one outcome reported by the external
// bank-data provider.
type OrganizationBankVerification struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrganizationID    uuid.UUID                `gorm:"column:organization_id;type:uuid;not null;index" json:"organization_id"`
	Provider          string                   `gorm:"column:provider;type:text;not null" json:"provider"`
	ProviderReference string                   `gorm:"column:provider_reference;type:text;not null" json:"provider_reference"`
	Status            enums.VerificationStatus `gorm:"column:status;type:text;not null" json:"status"`
	Score             decimal.NullDecimal      `gorm:"column:score;type:numeric(6,3)" json:"score"`
	VerifiedAt        *time.Time               `gorm:"column:verified_at" json:"verified_at,omitempty"`
	RecordedBy        uuid.UUID                `gorm:"column:recorded_by;type:uuid;not null" json:"recorded_by"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (OrganizationBankVerification) TableName() string { return "organization_bank_verifications" }

func (v *OrganizationBankVerification) BeforeCreate(*gorm.DB) error {
	assignID(&v.ID)
	return nil
}
