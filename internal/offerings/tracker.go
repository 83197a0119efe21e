package offerings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/metrics"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
	"github.com/codinglabe/believe-app/pkg/refs"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ReserveRequest takes FullShares whole shares and TokenUnits tokens from an
// offering for UserID.
type ReserveRequest struct {
	OfferingID      uuid.UUID
	UserID          uuid.UUID
	FullShares      int64
	TokenUnits      int64
	PaymentIntentID *string
}

// Tracker guards offering inventory. Reservations serialize on the offering
// row lock, so concurrent buyers can never take more than is available.
type Tracker struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	metrics *metrics.MarketplaceMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewTracker(repo Repository, tx txRunner, outbox outboxPublisher, m *metrics.MarketplaceMetrics, logg *logger.Logger) (*Tracker, error) {
	if repo == nil {
		return nil, fmt.Errorf("offerings repository required")
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
	return &Tracker{
		repo:    repo,
		tx:      tx,
		outbox:  outbox,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// ReserveShares locks the offering, checks its sale window and inventory,
// draws the purchase from the counter and the open token balance, and
// records a paid FractionalOrder. Everything happens in one transaction.
func (t *Tracker) ReserveShares(ctx context.Context, req ReserveRequest) (*models.FractionalOrder, error) {
	if req.OfferingID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "offering id required")
	}
	if req.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "user identity missing")
	}
	if req.FullShares < 0 || req.TokenUnits < 0 || (req.FullShares == 0 && req.TokenUnits == 0) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shares and tokens must be non-negative and not both zero")
	}

	var (
		order     *models.FractionalOrder
		remaining int64
	)
	err := t.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := t.repo.WithTx(tx)
		offering, err := repo.LockByID(ctx, req.OfferingID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "offering not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock offering")
		}

		now := t.now()
		if !IsOpen(offering, now) {
			return pkgerrors.New(pkgerrors.CodeOfferingNotLive, "offering is not open for purchase").
				WithDetails(map[string]any{"status": offering.Status})
		}

		alloc, err := Allocate(req.FullShares, req.TokenUnits, offering.PricePerShareCents, offering.TokenPriceCents, offering.TokenBalanceCents)
		if err != nil {
			return err
		}
		units := alloc.Units
		if units > offering.AvailableShares {
			return insufficient(units, offering.AvailableShares)
		}
		amount, err := Amount(req.FullShares, req.TokenUnits, offering.PricePerShareCents, offering.TokenPriceCents)
		if err != nil {
			return err
		}

		remaining = offering.AvailableShares - units
		soldOut := SoldOut(remaining, alloc.TokenBalance, offering.TokenPriceCents)
		rows, err := repo.ConsumeInventory(ctx, offering.ID, inventoryChange{
			Units:        units,
			TokenBalance: alloc.TokenBalance,
			SoldOut:      soldOut,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume inventory")
		}
		if rows == 0 {
			return insufficient(units, offering.AvailableShares)
		}

		order = &models.FractionalOrder{
			OfferingID:      offering.ID,
			UserID:          req.UserID,
			OrderNumber:     refs.New(refs.PrefixFractionalOrder, now),
			TagNumber:       refs.New(refs.PrefixTag, now),
			Shares:          req.FullShares,
			Tokens:          req.TokenUnits,
			UnitsReserved:   units,
			AmountCents:     amount,
			PaymentIntentID: nonEmpty(req.PaymentIntentID),
			PaidAt:          now,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fractional order")
		}

		if err := t.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFractionalOrderPlaced,
			AggregateType: enums.AggregateFractionalOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: req.UserID},
			Data: payloads.FractionalOrderCreatedEvent{
				FractionalOrderID: order.ID,
				OfferingID:        offering.ID,
				UserID:            req.UserID,
				Shares:            order.Shares,
				Tokens:            order.Tokens,
				UnitsReserved:     units,
				AmountCents:       amount,
				RemainingShares:   remaining,
			},
		}); err != nil {
			return err
		}
		if soldOut {
			return t.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOfferingSoldOut,
				AggregateType: enums.AggregateOffering,
				AggregateID:   offering.ID,
				Data: payloads.OfferingStatusEvent{
					OfferingID: offering.ID,
					Status:     enums.OfferingStatusSoldOut,
					At:         now,
				},
			})
		}
		return nil
	})
	if err != nil {
		t.metrics.ObserveReservation(reservationOutcome(err), 0)
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve shares")
		}
		return nil, err
	}
	t.metrics.ObserveReservation(metrics.OutcomeOK, order.UnitsReserved)

	logCtx := t.logg.WithFields(ctx, map[string]any{
		"offering_id":      order.OfferingID.String(),
		"order_number":     order.OrderNumber,
		"units_reserved":   order.UnitsReserved,
		"remaining_shares": remaining,
	})
	t.logg.Info(logCtx, "shares reserved")
	return order, nil
}

// IsOpen reports whether offering accepts purchases at now. Window bounds
// are only checked when set; close_at is exclusive.
func IsOpen(offering *models.FractionalOffering, now time.Time) bool {
	if offering == nil || offering.Status != enums.OfferingStatusLive {
		return false
	}
	if offering.GoLiveAt != nil && now.Before(*offering.GoLiveAt) {
		return false
	}
	if offering.CloseAt != nil && !now.Before(*offering.CloseAt) {
		return false
	}
	return true
}

func insufficient(requested, available int64) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientInventory, "not enough shares available").
		WithDetails(map[string]any{"requested_units": requested, "available_shares": available})
}

func reservationOutcome(err error) string {
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientInventory),
		pkgerrors.HasCode(err, pkgerrors.CodeOfferingNotLive),
		pkgerrors.HasCode(err, pkgerrors.CodeValidation),
		pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func nonEmpty(value *string) *string {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil
	}
	v := strings.TrimSpace(*value)
	return &v
}
