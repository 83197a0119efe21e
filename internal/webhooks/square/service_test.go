package squarewebhook

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/codinglabe/believe-app/internal/serviceorders"
	"github.com/codinglabe/believe-app/pkg/db/models"
	pkgerrors "github.com/codinglabe/believe-app/pkg/errors"
	"github.com/codinglabe/believe-app/pkg/logger"
)

type memoryGuard struct {
	seen      map[string]bool
	forgotten []string
}

func (g *memoryGuard) CheckAndMarkProcessed(_ context.Context, consumer, id string) (bool, error) {
	key := consumer + ":" + id
	if g.seen[key] {
		return true, nil
	}
	g.seen[key] = true
	return false, nil
}

func (g *memoryGuard) Forget(_ context.Context, consumer, id string) error {
	delete(g.seen, consumer+":"+id)
	g.forgotten = append(g.forgotten, id)
	return nil
}

type recorder struct {
	calls []serviceorders.MarkPaidRequest
	err   error
}

func (r *recorder) MarkPaid(_ context.Context, req serviceorders.MarkPaidRequest) (*models.ServiceOrder, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return &models.ServiceOrder{ID: req.OrderID}, nil
}

func newTestService(t *testing.T, rec *recorder) (*Service, *memoryGuard) {
	t.Helper()
	guard := &memoryGuard{seen: map[string]bool{}}
	svc, err := NewService(ServiceParams{Orders: rec, Guard: guard, Logger: logger.Nop()})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, guard
}

func paymentEvent(id, status, reference string) *Event {
	return &Event{
		EventID: id,
		Type:    "payment.updated",
		Data: EventData{Type: "payment", ID: "pay_1", Object: EventObject{Payment: &Payment{
			ID: "pay_1", Status: status, ReferenceID: reference,
		}}},
	}
}

func TestCompletedPaymentMarksOrderPaidOnce(t *testing.T) {
	rec := &recorder{}
	svc, _ := newTestService(t, rec)
	orderID := uuid.New()
	event := paymentEvent("evt_1", "COMPLETED", orderID.String())

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if len(rec.calls) != 1 {
		t.Fatalf("expected a single MarkPaid, got %d", len(rec.calls))
	}
	if rec.calls[0].OrderID != orderID || rec.calls[0].Reference != "pay_1" {
		t.Fatalf("unexpected request %+v", rec.calls[0])
	}
}

func TestIgnoredPayments(t *testing.T) {
	rec := &recorder{}
	svc, _ := newTestService(t, rec)
	ctx := context.Background()

	if err := svc.HandleEvent(ctx, paymentEvent("evt_a", "APPROVED", uuid.NewString())); err != nil {
		t.Fatalf("approved: %v", err)
	}
	if err := svc.HandleEvent(ctx, paymentEvent("evt_b", "COMPLETED", "FO-20260101-ABCDEF12")); err != nil {
		t.Fatalf("foreign reference: %v", err)
	}
	if err := svc.HandleEvent(ctx, &Event{EventID: "evt_c", Type: "refund.created"}); err != nil {
		t.Fatalf("other type: %v", err)
	}
	if len(rec.calls) != 0 {
		t.Fatalf("expected no MarkPaid calls, got %d", len(rec.calls))
	}
}

func TestAlreadyPaidIsNotAnError(t *testing.T) {
	rec := &recorder{err: pkgerrors.New(pkgerrors.CodeInvalidTransition, "payment already recorded")}
	svc, guard := newTestService(t, rec)

	if err := svc.HandleEvent(context.Background(), paymentEvent("evt_2", "COMPLETED", uuid.NewString())); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(guard.forgotten) != 0 {
		t.Fatal("handled event must stay marked")
	}
}

func TestFailureClearsMarkerForRetry(t *testing.T) {
	rec := &recorder{err: pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("db down"), "mark order paid")}
	svc, guard := newTestService(t, rec)
	event := paymentEvent("evt_3", "COMPLETED", uuid.NewString())

	if err := svc.HandleEvent(context.Background(), event); !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(guard.forgotten) != 1 || guard.forgotten[0] != "evt_3" {
		t.Fatalf("expected marker cleared, got %v", guard.forgotten)
	}

	rec.err = nil
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(rec.calls) != 2 {
		t.Fatalf("expected retry to call MarkPaid again, got %d calls", len(rec.calls))
	}
}

func TestMissingEventID(t *testing.T) {
	svc, _ := newTestService(t, &recorder{})
	err := svc.HandleEvent(context.Background(), &Event{Type: "payment.updated"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
