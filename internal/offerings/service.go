package offerings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
	"github.com/codinglabe/believe-app/pkg/pagination"
	"github.com/codinglabe/believe-app/pkg/square"
	"github.com/codinglabe/believe-app/pkg/types"
	"github.com/codinglabe/believe-app/pkg/validate"
)

// CardCharger charges a tokenized card. Implemented by square.Client.
type CardCharger interface {
	CreatePayment(ctx context.Context, params square.PaymentCreateParams) (*sq.Payment, error)
}

// Service covers admin management of offerings and user purchases.
type Service interface {
	Create(ctx context.Context, req CreateOfferingRequest) (*models.FractionalOffering, error)
	Update(ctx context.Context, offeringID uuid.UUID, req UpdateOfferingRequest) (*models.FractionalOffering, error)
	Publish(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error)
	Close(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error)
	Get(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error)
	List(ctx context.Context, params ListParams) (*types.Page[models.FractionalOffering], error)
	Purchase(ctx context.Context, req PurchaseRequest) (*models.FractionalOrder, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[models.FractionalOrder], error)
	CloseExpired(ctx context.Context, limit int) (int, error)
}

type AssetInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	AssetType   string `json:"asset_type" validate:"max=100"`
	Description string `json:"description" validate:"max=5000"`
}

// CreateOfferingRequest creates a draft offering. Either AssetID or Asset
// must be given.
type CreateOfferingRequest struct {
	AssetID             *uuid.UUID       `json:"asset_id,omitempty"`
	Asset               *AssetInput      `json:"asset,omitempty" validate:"omitempty"`
	Title               string           `json:"title" validate:"required,max=200"`
	TotalShares         int64            `json:"total_shares" validate:"gt=0,lte=1000000000"`
	PricePerShareCents  money.Cents      `json:"price_per_share_cents" validate:"gte=0"`
	TokenPriceCents     money.Cents      `json:"token_price_cents" validate:"gte=0"`
	OwnershipPercentage *decimal.Decimal `json:"ownership_percentage,omitempty"`
	Currency            string           `json:"currency" validate:"omitempty,len=3,alpha"`
	GoLiveAt            *time.Time       `json:"go_live_at,omitempty"`
	CloseAt             *time.Time       `json:"close_at,omitempty"`
}

// UpdateOfferingRequest patches an offering. Share counts and prices only
// change while the offering is a draft.
type UpdateOfferingRequest struct {
	Title               *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	TotalShares         *int64           `json:"total_shares,omitempty" validate:"omitempty,gt=0,lte=1000000000"`
	PricePerShareCents  *money.Cents     `json:"price_per_share_cents,omitempty" validate:"omitempty,gte=0"`
	TokenPriceCents     *money.Cents     `json:"token_price_cents,omitempty" validate:"omitempty,gte=0"`
	OwnershipPercentage *decimal.Decimal `json:"ownership_percentage,omitempty"`
	GoLiveAt            *time.Time       `json:"go_live_at,omitempty"`
	CloseAt             *time.Time       `json:"close_at,omitempty"`
}

// PurchaseRequest is a user's buy of shares and/or tokens. SourceID is a
// Square card nonce; RequestID doubles as the charge idempotency key.
type PurchaseRequest struct {
	OfferingID    uuid.UUID           `json:"-" validate:"required"`
	UserID        uuid.UUID           `json:"-" validate:"required"`
	FullShares    int64               `json:"shares" validate:"gte=0,lte=1000000000"`
	TokenUnits    int64               `json:"tokens" validate:"gte=0,lte=1000000000"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required,enum"`
	SourceID      string              `json:"source_id" validate:"max=255"`
	RequestID     string              `json:"-"`
}

type ListParams struct {
	Status *enums.OfferingStatus
	// PublicOnly hides drafts.
	PublicOnly bool
	Limit      int
	Cursor     string
}

type Deps struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Tracker  *Tracker
	Charger  CardCharger
	Notifier notifications.Notifier
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	tracker  *Tracker
	charger  CardCharger
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("offerings repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Tracker == nil {
		return nil, fmt.Errorf("inventory tracker required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		outbox:   deps.Outbox,
		tracker:  deps.Tracker,
		charger:  deps.Charger,
		notifier: notifier,
		logg:     deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, req CreateOfferingRequest) (*models.FractionalOffering, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if (req.AssetID == nil) == (req.Asset == nil) {
		return nil, validate.Field("asset_id", "provide either asset_id or asset")
	}
	if err := checkWindow(req.GoLiveAt, req.CloseAt); err != nil {
		return nil, err
	}
	if err := checkPercentage(req.OwnershipPercentage); err != nil {
		return nil, err
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	offering := &models.FractionalOffering{
		Title:              strings.TrimSpace(req.Title),
		TotalShares:        req.TotalShares,
		AvailableShares:    req.TotalShares,
		PricePerShareCents: req.PricePerShareCents,
		TokenPriceCents:    req.TokenPriceCents,
		OwnershipPercentage: OwnershipPercentage(nullDecimal(req.OwnershipPercentage),
			req.PricePerShareCents, req.TokenPriceCents),
		Currency: currency,
		Status:   enums.OfferingStatusDraft,
		GoLiveAt: utc(req.GoLiveAt),
		CloseAt:  utc(req.CloseAt),
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if req.Asset != nil {
			asset := &models.FractionalAsset{
				Name:        strings.TrimSpace(req.Asset.Name),
				AssetType:   strings.TrimSpace(req.Asset.AssetType),
				Description: strings.TrimSpace(req.Asset.Description),
			}
			if err := repo.CreateAsset(ctx, asset); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create asset")
			}
			offering.AssetID = asset.ID
		} else {
			if _, err := repo.FindAsset(ctx, *req.AssetID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return validate.Field("asset_id", "asset not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load asset")
			}
			offering.AssetID = *req.AssetID
		}
		if err := repo.Create(ctx, offering); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create offering")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return offering, nil
}

func (s *service) Update(ctx context.Context, offeringID uuid.UUID, req UpdateOfferingRequest) (*models.FractionalOffering, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if err := checkPercentage(req.OwnershipPercentage); err != nil {
		return nil, err
	}

	var updated *models.FractionalOffering
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lock(ctx, repo, offeringID)
		if err != nil {
			return err
		}
		if current.Status == enums.OfferingStatusClosed {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "closed offerings cannot be edited")
		}
		pricing := req.TotalShares != nil || req.PricePerShareCents != nil || req.TokenPriceCents != nil
		if pricing && current.Status != enums.OfferingStatusDraft {
			return validate.Field("total_shares", "shares and prices can only change while draft")
		}

		goLive, closeAt := current.GoLiveAt, current.CloseAt
		if req.GoLiveAt != nil {
			goLive = utc(req.GoLiveAt)
		}
		if req.CloseAt != nil {
			closeAt = utc(req.CloseAt)
		}
		if err := checkWindow(goLive, closeAt); err != nil {
			return err
		}

		updates := map[string]any{"go_live_at": goLive, "close_at": closeAt}
		if req.Title != nil {
			updates["title"] = strings.TrimSpace(*req.Title)
		}
		pps, token := current.PricePerShareCents, current.TokenPriceCents
		if req.TotalShares != nil {
			updates["total_shares"] = *req.TotalShares
			updates["available_shares"] = *req.TotalShares
		}
		if req.PricePerShareCents != nil {
			pps = *req.PricePerShareCents
			updates["price_per_share_cents"] = pps
		}
		if req.TokenPriceCents != nil {
			token = *req.TokenPriceCents
			updates["token_price_cents"] = token
		}
		explicit := decimal.NullDecimal{}
		if req.OwnershipPercentage != nil {
			explicit = nullDecimal(req.OwnershipPercentage)
		}
		updates["ownership_percentage"] = OwnershipPercentage(explicit, pps, token)

		rows, err := repo.Update(ctx, current.ID, []enums.OfferingStatus{current.Status}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offering")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "offering changed concurrently")
		}
		updated, err = s.find(ctx, repo, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Publish(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error) {
	return s.setStatus(ctx, offeringID, []enums.OfferingStatus{enums.OfferingStatusDraft},
		enums.OfferingStatusLive, enums.EventOfferingPublished)
}

func (s *service) Close(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error) {
	return s.setStatus(ctx, offeringID, []enums.OfferingStatus{enums.OfferingStatusLive, enums.OfferingStatusSoldOut},
		enums.OfferingStatusClosed, enums.EventOfferingClosed)
}

func (s *service) setStatus(ctx context.Context, offeringID uuid.UUID, from []enums.OfferingStatus, to enums.OfferingStatus, event enums.OutboxEventType) (*models.FractionalOffering, error) {
	var updated *models.FractionalOffering
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.lock(ctx, repo, offeringID)
		if err != nil {
			return err
		}
		if to == enums.OfferingStatusLive && current.PricePerShareCents <= 0 {
			return validate.Field("price_per_share_cents", "must be set before publishing")
		}
		rows, err := repo.Update(ctx, current.ID, from, map[string]any{"status": to})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update offering status")
		}
		if rows == 0 {
			return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot move offering from %s to %s", current.Status, to).
				WithDetails(map[string]any{"from": current.Status, "to": to})
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     event,
			AggregateType: enums.AggregateOffering,
			AggregateID:   current.ID,
			Data:          payloads.OfferingStatusEvent{OfferingID: current.ID, Status: to, At: s.now()},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit offering event")
		}
		updated, err = s.find(ctx, repo, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{"offering_id": updated.ID.String(), "status": string(to)})
	s.logg.Info(logCtx, "offering status changed")
	return updated, nil
}

func (s *service) Get(ctx context.Context, offeringID uuid.UUID) (*models.FractionalOffering, error) {
	return s.find(ctx, s.repo, offeringID)
}

func (s *service) List(ctx context.Context, params ListParams) (*types.Page[models.FractionalOffering], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := listFilter{Cursor: cursor, Limit: params.Limit}
	switch {
	case params.Status != nil:
		if !params.Status.IsValid() || (params.PublicOnly && *params.Status == enums.OfferingStatusDraft) {
			return nil, validate.Field("status", "unsupported status filter")
		}
		filter.Statuses = []enums.OfferingStatus{*params.Status}
	case params.PublicOnly:
		filter.Statuses = []enums.OfferingStatus{enums.OfferingStatusLive, enums.OfferingStatusSoldOut, enums.OfferingStatusClosed}
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list offerings")
	}
	items, next := pagination.Trim(rows, params.Limit, func(o models.FractionalOffering) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &types.Page[models.FractionalOffering]{Items: items, NextCursor: next}, nil
}

// Purchase charges the buyer's card and then reserves the shares. Offerings
// settle by card only; believe points have no balance to debit. The sale
// window is checked before charging; the authoritative check happens again
// under the row lock.
func (s *service) Purchase(ctx context.Context, req PurchaseRequest) (*models.FractionalOrder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	if req.PaymentMethod != enums.PaymentMethodCard {
		return nil, validate.Field("payment_method", "offerings can only be paid by card")
	}
	sourceID := strings.TrimSpace(req.SourceID)
	if sourceID == "" {
		return nil, validate.Field("source_id", "card source is required")
	}
	offering, err := s.find(ctx, s.repo, req.OfferingID)
	if err != nil {
		return nil, err
	}
	if !IsOpen(offering, s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeOfferingNotLive, "offering is not open for purchase")
	}
	alloc, err := Allocate(req.FullShares, req.TokenUnits, offering.PricePerShareCents, offering.TokenPriceCents, offering.TokenBalanceCents)
	if err != nil {
		return nil, err
	}
	if alloc.Units > offering.AvailableShares {
		return nil, insufficient(alloc.Units, offering.AvailableShares)
	}
	amount, err := Amount(req.FullShares, req.TokenUnits, offering.PricePerShareCents, offering.TokenPriceCents)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, validate.Field("shares", "purchase amount must be positive")
	}
	if s.charger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}

	payment, err := s.charger.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents:    int64(amount),
		Currency:       offering.Currency,
		SourceID:       sourceID,
		IdempotencyKey: strings.TrimSpace(req.RequestID),
		ReferenceID:    offering.ID.String(),
		Note:           offering.Title,
	})
	if err != nil {
		return nil, err
	}
	paymentID := payment.GetID()
	if paymentID == nil || strings.TrimSpace(*paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "card charge returned no payment id")
	}

	order, err := s.tracker.ReserveShares(ctx, ReserveRequest{
		OfferingID:      req.OfferingID,
		UserID:          req.UserID,
		FullShares:      req.FullShares,
		TokenUnits:      req.TokenUnits,
		PaymentIntentID: paymentID,
	})
	if err != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"payment_id":  *paymentID,
			"offering_id": req.OfferingID.String(),
			"user_id":     req.UserID.String(),
		})
		s.logg.Error(logCtx, "reservation failed after card charge, manual refund required", err)
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.Event{
		Name:    string(enums.EventFractionalOrderPlaced),
		Title:   "Purchase confirmed",
		Message: fmt.Sprintf("Order %s for %s is confirmed. Your tag is %s.", order.OrderNumber, offering.Title, order.TagNumber),
		Link:    "/offerings/" + offering.ID.String(),
		Data:    map[string]any{"amount": order.AmountCents.String()},
	}, notifications.Recipient{UserID: req.UserID})
	return order, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*types.Page[models.FractionalOrder], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListOrders(ctx, userID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list fractional orders")
	}
	items, next := pagination.Trim(rows, params.Limit, func(o models.FractionalOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &types.Page[models.FractionalOrder]{Items: items, NextCursor: next}, nil
}

// CloseExpired closes live and sold out offerings whose close time passed.
func (s *service) CloseExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.repo.FindExpiredLive(ctx, s.now(), limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find expired offerings")
	}
	closed := 0
	for _, offering := range expired {
		if _, err := s.Close(ctx, offering.ID); err != nil {
			if pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
				continue
			}
			return closed, err
		}
		closed++
	}
	return closed, nil
}

func (s *service) find(ctx context.Context, repo Repository, id uuid.UUID) (*models.FractionalOffering, error) {
	offering, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load offering")
	}
	return offering, nil
}

func (s *service) lock(ctx context.Context, repo Repository, id uuid.UUID) (*models.FractionalOffering, error) {
	offering, err := repo.LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock offering")
	}
	return offering, nil
}

func checkWindow(goLive, closeAt *time.Time) error {
	if goLive != nil && closeAt != nil && !closeAt.After(*goLive) {
		return validate.Field("close_at", "must be after go_live_at")
	}
	return nil
}

func checkPercentage(pct *decimal.Decimal) error {
	if pct == nil {
		return nil
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return validate.Field("ownership_percentage", "must be between 0 and 100")
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
