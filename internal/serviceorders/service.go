package serviceorders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/fees"
	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/pkg/db"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/metrics"
	"github.com/codinglabe/believe-app/pkg/money"
	"github.com/codinglabe/believe-app/pkg/outbox"
	"github.com/codinglabe/believe-app/pkg/outbox/payloads"
	"github.com/codinglabe/believe-app/pkg/pagination"
	"github.com/codinglabe/believe-app/pkg/refs"
	"github.com/codinglabe/believe-app/pkg/types"
	"github.com/codinglabe/believe-app/pkg/validate"
)

const (
	orderNumberAttempts  = 3
	orderNumberIndex     = "ux_service_orders_order_number"
	expiredPaymentReason = "payment not received"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ListingProvider resolves an orderable service package.
type ListingProvider interface {
	Listing(ctx context.Context, serviceID, packageID uuid.UUID) (*models.Service, *models.ServicePackage, error)
}

type feeCalculator interface {
	Compute(price money.Cents, method enums.PaymentMethod) (fees.Breakdown, error)
}

// Service runs the Service Hub order lifecycle.
type Service interface {
	Create(ctx context.Context, req CreateOrderRequest) (*models.ServiceOrder, error)
	MarkPaid(ctx context.Context, req MarkPaidRequest) (*models.ServiceOrder, error)
	Approve(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error)
	Reject(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error)
	Cancel(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error)
	Deliver(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error)
	AcceptDelivery(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error)
	Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDetail, error)
	List(ctx context.Context, params ListParams) (*types.Page[models.ServiceOrder], error)
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Listings ListingProvider
	Fees     feeCalculator
	Notifier notifications.Notifier
	Metrics  *metrics.MarketplaceMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	listings ListingProvider
	fees     feeCalculator
	notifier notifications.Notifier
	metrics  *metrics.MarketplaceMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	if deps.Repo == nil {
		return nil, fmt.Errorf("service orders repository required")
	}
	if deps.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deps.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if deps.Listings == nil {
		return nil, fmt.Errorf("listing provider required")
	}
	if deps.Fees == nil {
		return nil, fmt.Errorf("fee calculator required")
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
		listings: deps.Listings,
		fees:     deps.Fees,
		notifier: notifier,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, req CreateOrderRequest) (*models.ServiceOrder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	svc, pkg, err := s.listings.Listing(ctx, req.ServiceID, req.PackageID)
	if err != nil {
		return nil, err
	}
	if svc.SellerID == req.BuyerID {
		return nil, validate.Field("service_id", "you cannot order your own service")
	}
	breakdown, err := s.fees.Compute(pkg.PriceCents, req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	var order *models.ServiceOrder
	for attempt := 1; ; attempt++ {
		order = &models.ServiceOrder{
			OrderNumber:         refs.New(refs.PrefixServiceOrder, s.now()),
			BuyerID:             req.BuyerID,
			SellerID:            svc.SellerID,
			ServiceID:           svc.ID,
			PackageID:           pkg.ID,
			Status:              enums.ServiceOrderStatusPending,
			PaymentStatus:       enums.PaymentStatusPending,
			PaymentMethod:       req.PaymentMethod,
			AmountCents:         breakdown.Price,
			PlatformFeeCents:    breakdown.PlatformFee,
			TransactionFeeCents: breakdown.TransactionFee,
			SalesTaxCents:       breakdown.SalesTax,
			SellerEarningsCents: breakdown.SellerEarnings,
			Requirements:        strings.TrimSpace(req.Requirements),
			SpecialInstructions: trimmed(req.SpecialInstructions),
		}
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return err
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventServiceOrderCreated,
				AggregateType: enums.AggregateServiceOrder,
				AggregateID:   order.ID,
				Actor:         &outbox.ActorRef{UserID: req.BuyerID, Role: string(PartyBuyer)},
				Data: payloads.ServiceOrderCreatedEvent{
					OrderID:             order.ID,
					OrderNumber:         order.OrderNumber,
					BuyerID:             order.BuyerID,
					SellerID:            order.SellerID,
					ServiceID:           order.ServiceID,
					PaymentMethod:       order.PaymentMethod,
					AmountCents:         order.AmountCents,
					PlatformFeeCents:    order.PlatformFeeCents,
					SellerEarningsCents: order.SellerEarningsCents,
				},
			})
		})
		if err == nil {
			break
		}
		if db.IsUniqueViolation(err, orderNumberIndex) && attempt < orderNumberAttempts {
			continue
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create service order")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":     order.ID.String(),
		"order_number": order.OrderNumber,
		"amount_cents": int64(order.AmountCents),
	})
	s.logg.Info(logCtx, "service order created")

	s.notifier.Notify(ctx, notifications.Event{
		Name:    string(enums.EventServiceOrderCreated),
		Title:   "New order received",
		Message: fmt.Sprintf("Order %s for %s is awaiting payment.", order.OrderNumber, svc.Title),
		Link:    orderLink(order.ID),
	}, notifications.Recipient{UserID: order.SellerID})
	return order, nil
}

func (s *service) MarkPaid(ctx context.Context, req MarkPaidRequest) (*models.ServiceOrder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(req.Reference)

	var order *models.ServiceOrder
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, req.OrderID)
		if err != nil {
			return err
		}
		if current.Status != enums.ServiceOrderStatusPending || current.PaymentStatus != enums.PaymentStatusPending {
			return invalidTransition(current.Status, "mark_paid", "payment already recorded or order closed")
		}
		paidAt := s.now()
		rows, err := repo.MarkPaid(ctx, current.ID, reference, paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if rows == 0 {
			return invalidTransition(current.Status, "mark_paid", "order changed concurrently")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventServiceOrderPaid,
			AggregateType: enums.AggregateServiceOrder,
			AggregateID:   current.ID,
			Data: payloads.ServiceOrderPaidEvent{
				OrderID:   current.ID,
				Reference: reference,
				PaidAt:    paidAt,
			},
		}); err != nil {
			return err
		}
		order, err = s.load(ctx, repo, current.ID)
		return err
	})
	if err != nil {
		s.metrics.ObserveTransition("mark_paid", outcomeFor(err))
		return nil, coded(err, "mark order paid")
	}
	s.metrics.ObserveTransition("mark_paid", metrics.OutcomeOK)

	s.notifier.Notify(ctx, notifications.Event{
		Name:    string(enums.EventServiceOrderPaid),
		Title:   "Order paid",
		Message: fmt.Sprintf("Order %s is paid and awaiting your approval.", order.OrderNumber),
		Link:    orderLink(order.ID),
	}, notifications.Recipient{UserID: order.SellerID})
	return order, nil
}

func (s *service) Approve(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error) {
	return s.transition(ctx, OpApprove, req)
}

func (s *service) Reject(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error) {
	return s.transition(ctx, OpReject, req)
}

func (s *service) Cancel(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error) {
	return s.transition(ctx, OpCancel, req)
}

func (s *service) Deliver(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error) {
	return s.transition(ctx, OpDeliver, req)
}

func (s *service) AcceptDelivery(ctx context.Context, req TransitionRequest) (*models.ServiceOrder, error) {
	return s.transition(ctx, OpAcceptDelivery, req)
}

// transition loads the order, checks the actor before the state, then applies
// a conditional update and records the outbox event in the same transaction.
func (s *service) transition(ctx context.Context, op Operation, req TransitionRequest) (*models.ServiceOrder, error) {
	rule, ok := transitions[op]
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown operation %q", op)
	}
	if req.OrderID == uuid.Nil {
		return nil, validate.Field("order_id", "is required")
	}
	if req.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "user identity missing")
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	reason := trimmed(req.Reason)

	var (
		order *models.ServiceOrder
		from  enums.ServiceOrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.load(ctx, repo, req.OrderID)
		if err != nil {
			return err
		}
		if partyID(current, rule.actor) != req.ActorID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted for this order")
		}
		if !rule.allows(current.Status) {
			return invalidTransition(current.Status, op, "")
		}
		if op == OpDeliver && len(req.Deliverables) == 0 {
			return validate.Field("deliverables", "at least one deliverable is required")
		}
		if op == OpApprove && current.PaymentStatus != enums.PaymentStatusPaid {
			return invalidTransition(current.Status, op, "payment not received")
		}

		now := s.now()
		updates := map[string]any{"status": rule.to}
		switch op {
		case OpReject, OpCancel:
			updates["cancelled_at"] = now
			if reason != nil {
				updates["cancellation_reason"] = *reason
			}
		case OpDeliver:
			updates["deliverables"] = req.Deliverables
			updates["delivered_at"] = now
		case OpAcceptDelivery:
			updates["completed_at"] = now
		}

		rows, err := repo.UpdateStatus(ctx, current.ID, current.Status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update service order")
		}
		if rows == 0 {
			return invalidTransition(current.Status, op, "order changed concurrently")
		}

		event := payloads.ServiceOrderTransitionEvent{
			OrderID:     current.ID,
			OrderNumber: current.OrderNumber,
			BuyerID:     current.BuyerID,
			SellerID:    current.SellerID,
			From:        current.Status,
			To:          rule.to,
			At:          now,
		}
		if reason != nil {
			event.Reason = *reason
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     rule.event,
			AggregateType: enums.AggregateServiceOrder,
			AggregateID:   current.ID,
			Actor:         &outbox.ActorRef{UserID: req.ActorID, Role: string(rule.actor)},
			Data:          event,
		}); err != nil {
			return err
		}

		from = current.Status
		order, err = s.load(ctx, repo, current.ID)
		return err
	})
	if err != nil {
		s.metrics.ObserveTransition(string(op), outcomeFor(err))
		return nil, coded(err, "transition service order")
	}
	s.metrics.ObserveTransition(string(op), metrics.OutcomeOK)

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id":  order.ID.String(),
		"operation": string(op),
		"from":      string(from),
		"to":        string(order.Status),
	})
	s.logg.Info(logCtx, "service order transitioned")

	s.notifier.Notify(ctx, notifications.Event{
		Name:    string(rule.event),
		Title:   rule.title,
		Message: fmt.Sprintf("Order %s is now %s.", order.OrderNumber, strings.ReplaceAll(string(order.Status), "_", " ")),
		Link:    orderLink(order.ID),
	}, notifications.Recipient{UserID: partyID(order, rule.notify)})
	return order, nil
}

func (s *service) Get(ctx context.Context, viewer Viewer, orderID uuid.UUID) (*OrderDetail, error) {
	if viewer.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "user identity missing")
	}
	order, err := s.load(ctx, s.repo, orderID)
	if err != nil {
		return nil, err
	}

	detail := &OrderDetail{Order: order, Operations: []Operation{}}
	switch viewer.UserID {
	case order.BuyerID:
		role := PartyBuyer
		detail.ViewerRole = &role
	case order.SellerID:
		role := PartySeller
		detail.ViewerRole = &role
	default:
		if !viewer.IsAdmin {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted for this order")
		}
	}
	if detail.ViewerRole != nil {
		detail.Operations = AvailableOperations(order.Status, *detail.ViewerRole)
	}
	return detail, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*types.Page[models.ServiceOrder], error) {
	if params.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthenticated, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, validate.Field("status", "unknown order status")
	}

	filter := listFilter{Status: params.Status, Cursor: cursor, Limit: params.Limit}
	switch params.View {
	case PartySeller:
		filter.SellerID = &params.ActorID
	case PartyBuyer, "":
		filter.BuyerID = &params.ActorID
	default:
		return nil, validate.Field("view", "must be buyer or seller")
	}

	rows, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list service orders")
	}
	items, next := pagination.Trim(rows, params.Limit, func(o models.ServiceOrder) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &types.Page[models.ServiceOrder]{Items: items, NextCursor: next}, nil
}

// ExpireUnpaid cancels pending orders whose payment never arrived. Each
// order is handled in its own transaction; orders paid in the meantime are
// skipped by the conditional update.
func (s *service) ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	candidates, err := s.repo.FindUnpaidBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find unpaid orders")
	}

	expired := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		var applied bool
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			now := s.now()
			rows, err := s.repo.WithTx(tx).ExpireUnpaid(ctx, candidate.ID, expiredPaymentReason, now)
			if err != nil || rows == 0 {
				return err
			}
			applied = true
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventServiceOrderExpired,
				AggregateType: enums.AggregateServiceOrder,
				AggregateID:   candidate.ID,
				Data: payloads.ServiceOrderTransitionEvent{
					OrderID:     candidate.ID,
					OrderNumber: candidate.OrderNumber,
					BuyerID:     candidate.BuyerID,
					SellerID:    candidate.SellerID,
					From:        enums.ServiceOrderStatusPending,
					To:          enums.ServiceOrderStatusCancelled,
					Reason:      expiredPaymentReason,
					At:          now,
				},
			})
		})
		if err != nil {
			return expired, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "expire service order")
		}
		if !applied {
			continue
		}
		expired++
		s.metrics.ObserveTransition("expire", metrics.OutcomeOK)
		s.notifier.Notify(ctx, notifications.Event{
			Name:    string(enums.EventServiceOrderExpired),
			Title:   "Order expired",
			Message: fmt.Sprintf("Order %s was cancelled because payment was not received.", candidate.OrderNumber),
			Link:    orderLink(candidate.ID),
		}, notifications.Recipient{UserID: candidate.BuyerID})
	}
	return expired, nil
}

func (s *service) load(ctx context.Context, repo Repository, id uuid.UUID) (*models.ServiceOrder, error) {
	order, err := repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load service order")
	}
	return order, nil
}

func invalidTransition[T ~string](from enums.ServiceOrderStatus, op T, reason string) error {
	details := map[string]any{"from": from, "operation": op}
	if reason != "" {
		details["reason"] = reason
	}
	return pkgerrors.Newf(pkgerrors.CodeInvalidTransition, "cannot %s an order that is %s", strings.ReplaceAll(string(op), "_", " "), from).
		WithDetails(details)
}

// coded leaves workflow errors untouched and wraps anything else, such as an
// outbox failure, as a dependency error.
func coded(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func partyID(order *models.ServiceOrder, party Party) uuid.UUID {
	if party == PartySeller {
		return order.SellerID
	}
	return order.BuyerID
}

func outcomeFor(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		switch typed.Code() {
		case pkgerrors.CodeInternal, pkgerrors.CodeDependency:
			return metrics.OutcomeError
		}
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}

func orderLink(id uuid.UUID) string {
	return "/orders/" + id.String()
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
