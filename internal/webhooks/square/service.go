package squarewebhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/internal/serviceorders"
	"github.com/codinglabe/believe-app/pkg/db/models"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
)

const (
	consumerName           = "square_webhook"
	paymentStatusCompleted = "COMPLETED"
)

type paymentRecorder interface {
	MarkPaid(ctx context.Context, req serviceorders.MarkPaidRequest) (*models.ServiceOrder, error)
}

type processedGuard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Forget(ctx context.Context, consumer, eventID string) error
}

type ServiceParams struct {
	Orders paymentRecorder
	Guard  processedGuard
	Logger *logger.Logger
}

// Service applies Square payment notifications to service orders. A
// completed payment whose reference_id is a service order id marks that
// order paid.
type Service struct {
	orders paymentRecorder
	guard  processedGuard
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("service orders required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("idempotency guard required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{orders: params.Orders, guard: params.Guard, logg: params.Logger}, nil
}

type Event struct {
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *Payment `json:"payment"`
}

type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
	AmountMoney *struct {
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"amount_money"`
}

// HandleEvent processes each Square event id at most once. The marker is
// dropped when handling fails so Square's retry gets another attempt.
func (s *Service) HandleEvent(ctx context.Context, event *Event) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event required")
	}
	eventID := strings.TrimSpace(event.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(event.Data.ID)
	}
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "square event id missing")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"square_event_id": eventID, "square_event_type": event.Type})

	seen, err := s.guard.CheckAndMarkProcessed(ctx, consumerName, eventID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	if seen {
		s.logg.Info(ctx, "square event already processed")
		return nil
	}

	if err := s.dispatch(ctx, event); err != nil {
		if forgetErr := s.guard.Forget(ctx, consumerName, eventID); forgetErr != nil {
			s.logg.Error(ctx, "failed to clear square event marker", forgetErr)
		}
		return err
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *Event) error {
	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated":
		return s.applyPayment(ctx, event.Data.Object.Payment)
	default:
		s.logg.Debug(ctx, "square event ignored")
		return nil
	}
}

func (s *Service) applyPayment(ctx context.Context, payment *Payment) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment payload missing")
	}
	if !strings.EqualFold(payment.Status, paymentStatusCompleted) {
		return nil
	}
	orderID, err := uuid.Parse(strings.TrimSpace(payment.ReferenceID))
	if err != nil {
		// fractional share charges carry no order reference
		s.logg.Debug(ctx, "completed payment without service order reference")
		return nil
	}

	_, err = s.orders.MarkPaid(ctx, serviceorders.MarkPaidRequest{OrderID: orderID, Reference: payment.ID})
	switch {
	case err == nil:
		s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()), "service order paid via square")
		return nil
	case pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition), pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		s.logg.Warn(s.logg.WithField(ctx, "order_id", orderID.String()), "square payment not applied: "+err.Error())
		return nil
	default:
		return err
	}
}
