package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
	"github.com/codinglabe/believe-app/pkg/pagination"
	"github.com/codinglabe/believe-app/pkg/types"
	"github.com/codinglabe/believe-app/pkg/validate"
)

const reviewUniqueIndex = "ux_reviews_order_role"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// OrderReader loads service orders. serviceorders.Repository satisfies it.
type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error)
}

type Service interface {
	Submit(ctx context.Context, req SubmitRequest) (*models.Review, error)
	Eligibility(ctx context.Context, orderID, actorID uuid.UUID) (*Eligibility, error)
	ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*SellerReviews, error)
	SellerSummary(ctx context.Context, sellerID uuid.UUID) (RatingSummary, error)
}

type SubmitRequest struct {
	OrderID  uuid.UUID `json:"-" validate:"required"`
	AuthorID uuid.UUID `json:"-" validate:"required"`
	Rating   int       `json:"rating"`
	Comment  string    `json:"comment" validate:"max=2000"`
}

// Eligibility tells the UI whether the actor may review the order now.
type Eligibility struct {
	CanReview bool              `json:"can_review"`
	Role      *enums.ReviewRole `json:"role,omitempty"`
}

type SellerReviews struct {
	Summary RatingSummary              `json:"summary"`
	Reviews *types.Page[models.Review] `json:"reviews"`
}

type service struct {
	repo     Repository
	orders   OrderReader
	tx       txRunner
	outbox   outboxPublisher
	notifier notifications.Notifier
	logg     *logger.Logger
}

func NewService(repo Repository, orders OrderReader, tx txRunner, outbox outboxPublisher, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
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
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &service{repo: repo, orders: orders, tx: tx, outbox: outbox, notifier: notifier, logg: logg}, nil
}

func (s *service) Submit(ctx context.Context, req SubmitRequest) (*models.Review, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	role, subject, ok := roleOf(order, req.AuthorID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted for this order")
	}
	if req.Rating < MinRating || req.Rating > MaxRating {
		return nil, pkgerrors.Newf(pkgerrors.CodeInvalidRating, "rating must be between %d and %d", MinRating, MaxRating).
			WithDetails(map[string]any{"rating": req.Rating})
	}

	review := &models.Review{
		OrderID:    order.ID,
		AuthorRole: role,
		AuthorID:   req.AuthorID,
		SubjectID:  subject,
		Rating:     req.Rating,
		Comment:    strings.TrimSpace(req.Comment),
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviews")
		}
		if !CanReview(order, role, existing) {
			return notAllowed(order, role)
		}
		if err := repo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, reviewUniqueIndex) || db.IsUniqueViolation(err, "reviews.order_id") {
				return notAllowed(order, role)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReviewSubmitted,
			AggregateType: enums.AggregateReview,
			AggregateID:   review.ID,
			Actor:         &outbox.ActorRef{UserID: req.AuthorID, Role: string(role)},
			Data: payloads.ReviewSubmittedEvent{
				ReviewID:   review.ID,
				OrderID:    order.ID,
				AuthorRole: role,
				SubjectID:  subject,
				Rating:     review.Rating,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit review event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"review_id": review.ID.String(),
		"order_id":  order.ID.String(),
		"role":      string(role),
		"rating":    review.Rating,
	})
	s.logg.Info(logCtx, "review submitted")

	s.notifier.Notify(ctx, notifications.Event{
		Name:    string(enums.EventReviewSubmitted),
		Title:   "You received a review",
		Message: fmt.Sprintf("Order %s received a %d star review.", order.OrderNumber, review.Rating),
		Link:    "/orders/" + order.ID.String(),
	}, notifications.Recipient{UserID: subject})
	return review, nil
}

func (s *service) Eligibility(ctx context.Context, orderID, actorID uuid.UUID) (*Eligibility, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	role, _, ok := roleOf(order, actorID)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted for this order")
	}
	existing, err := s.repo.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load reviews")
	}
	return &Eligibility{CanReview: CanReview(order, role, existing), Role: &role}, nil
}

func (s *service) ListForSeller(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (*SellerReviews, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	summary, err := s.SellerSummary(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListBySubject(ctx, sellerID, enums.ReviewRoleBuyer, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	items, next := pagination.Trim(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	return &SellerReviews{
		Summary: summary,
		Reviews: &types.Page[models.Review]{Items: items, NextCursor: next},
	}, nil
}

// SellerSummary averages the ratings buyers gave sellerID, rounded to two
// decimals.
func (s *service) SellerSummary(ctx context.Context, sellerID uuid.UUID) (RatingSummary, error) {
	summary, err := s.repo.Summary(ctx, sellerID, enums.ReviewRoleBuyer)
	if err != nil {
		return RatingSummary{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize reviews")
	}
	summary.Average, _ = decimal.NewFromFloat(summary.Average).Round(2).Float64()
	return summary, nil
}

func (s *service) loadOrder(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// roleOf returns the author's side of the order and the party being
// reviewed.
func roleOf(order *models.ServiceOrder, actorID uuid.UUID) (enums.ReviewRole, uuid.UUID, bool) {
	switch actorID {
	case order.BuyerID:
		return enums.ReviewRoleBuyer, order.SellerID, true
	case order.SellerID:
		return enums.ReviewRoleSeller, order.BuyerID, true
	default:
		return "", uuid.Nil, false
	}
}

func notAllowed(order *models.ServiceOrder, role enums.ReviewRole) error {
	return pkgerrors.Newf(pkgerrors.CodeReviewNotAllowed, "%s cannot review an order that is %s or already reviewed", role, order.Status)
}
