package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
	"github.com/codinglabe/believe-app/pkg/validate"
)

var maxScore = decimal.NewFromInt(100)

// RecordRequest is an outcome reported by the bank-data provider. Score is
// the provider's match score between 0 and 100 when it sends one.
type RecordRequest struct {
	OrganizationID    uuid.UUID                `json:"-" validate:"required"`
	RecordedBy        uuid.UUID                `json:"-" validate:"required"`
	Provider          string                   `json:"provider" validate:"required,max=64"`
	ProviderReference string                   `json:"provider_reference" validate:"required,max=255"`
	Status            enums.VerificationStatus `json:"status" validate:"required,enum"`
	Score             decimal.NullDecimal      `json:"score"`
}

type Service interface {
	Record(ctx context.Context, req RecordRequest) (*models.OrganizationBankVerification, error)
	Latest(ctx context.Context, organizationID uuid.UUID) (*models.OrganizationBankVerification, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	db     *gorm.DB
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(db *gorm.DB, tx txRunner, outbox outboxPublisher, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{db: db, tx: tx, outbox: outbox, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Record(ctx context.Context, req RecordRequest) (*models.OrganizationBankVerification, error) {
	req.Provider = strings.TrimSpace(req.Provider)
	req.ProviderReference = strings.TrimSpace(req.ProviderReference)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.Score.Valid && (req.Score.Decimal.IsNegative() || req.Score.Decimal.GreaterThan(maxScore)) {
		return nil, validate.Field("score", "must be between 0 and 100")
	}

	row := &models.OrganizationBankVerification{
		OrganizationID:    req.OrganizationID,
		Provider:          req.Provider,
		ProviderReference: req.ProviderReference,
		Status:            req.Status,
		Score:             req.Score,
		RecordedBy:        req.RecordedBy,
	}
	if req.Status == enums.VerificationStatusVerified {
		now := s.now()
		row.VerifiedAt = &now
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record verification")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBankVerification,
			AggregateType: enums.AggregateOrganization,
			AggregateID:   row.OrganizationID,
			Actor:         &outbox.ActorRef{UserID: req.RecordedBy, Role: string(enums.UserRoleAdmin)},
			Data: payloads.BankVerificationRecordedEvent{
				VerificationID: row.ID,
				OrganizationID: row.OrganizationID,
				Status:         row.Status,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit verification event")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"organization_id": req.OrganizationID.String(),
		"provider":        req.Provider,
		"status":          string(req.Status),
	}), "bank verification recorded")
	return row, nil
}

func (s *service) Latest(ctx context.Context, organizationID uuid.UUID) (*models.OrganizationBankVerification, error) {
	var row models.OrganizationBankVerification
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").Order("id DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no bank verification recorded")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification")
	}
	return &row, nil
}
