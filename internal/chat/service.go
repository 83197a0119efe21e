package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/internal/notifications"
	"github.com/codinglabe/believe-app/pkg/db/models"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/pagination"
	"github.com/codinglabe/believe-app/pkg/validate"
)

const eventMessagePosted = "order_message_posted"

type OrderReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ServiceOrder, error)
}

// Service stores the buyer/seller conversation on an order. Clients poll
// with the cursor returned by the previous call.
type Service interface {
	Post(ctx context.Context, req PostRequest) (*models.OrderMessage, error)
	List(ctx context.Context, req ListRequest) (*Thread, error)
}

type PostRequest struct {
	OrderID  uuid.UUID `json:"-" validate:"required"`
	SenderID uuid.UUID `json:"-" validate:"required"`
	Body     string    `json:"body" validate:"required,min=1,max=2000"`
}

type ListRequest struct {
	OrderID uuid.UUID
	ActorID uuid.UUID
	After   string
	Limit   int
}

// Thread is one poll result. After is passed back on the next poll and is
// unchanged when nothing new arrived.
type Thread struct {
	Messages []models.OrderMessage `json:"messages"`
	After    string                `json:"after,omitempty"`
}

type service struct {
	repo     Repository
	orders   OrderReader
	notifier notifications.Notifier
	logg     *logger.Logger
}

func NewService(repo Repository, orders OrderReader, notifier notifications.Notifier, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("chat repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order reader required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &service{repo: repo, orders: orders, notifier: notifier, logg: logg}, nil
}

func (s *service) Post(ctx context.Context, req PostRequest) (*models.OrderMessage, error) {
	req.Body = strings.TrimSpace(req.Body)
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	order, err := s.participantOrder(ctx, req.OrderID, req.SenderID)
	if err != nil {
		return nil, err
	}

	msg := &models.OrderMessage{OrderID: order.ID, SenderID: req.SenderID, Body: req.Body}
	if err := s.repo.Create(ctx, msg); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store message")
	}

	recipient := order.SellerID
	if req.SenderID == order.SellerID {
		recipient = order.BuyerID
	}
	s.notifier.Notify(ctx, notifications.Event{
		Name:    eventMessagePosted,
		Title:   "New message",
		Message: fmt.Sprintf("New message on order %s.", order.OrderNumber),
		Link:    "/orders/" + order.ID.String(),
	}, notifications.Recipient{UserID: recipient})
	return msg, nil
}

func (s *service) List(ctx context.Context, req ListRequest) (*Thread, error) {
	after, err := pagination.ParseCursor(req.After)
	if err != nil {
		return nil, validate.Field("after", "is not a valid cursor")
	}
	if _, err := s.participantOrder(ctx, req.OrderID, req.ActorID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListAfter(ctx, req.OrderID, after, req.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list messages")
	}
	thread := &Thread{Messages: rows, After: req.After}
	if n := len(rows); n > 0 {
		thread.After = pagination.EncodeCursor(pagination.Cursor{CreatedAt: rows[n-1].CreatedAt, ID: rows[n-1].ID})
	}
	return thread, nil
}

// participantOrder loads the order and rejects anyone but its buyer or
// seller. Closed orders stay readable and writable.
func (s *service) participantOrder(ctx context.Context, orderID, actorID uuid.UUID) (*models.ServiceOrder, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if actorID != order.BuyerID && actorID != order.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not permitted for this order")
	}
	return order, nil
}
