package webhooks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	squarewebhook "github.com/codinglabe/believe-app/internal/webhooks/square"
)

type stubVerifier struct{ ok bool }

func (s stubVerifier) VerifyWebhook([]byte, string) bool { return s.ok }

type stubWebhookService struct {
	event *squarewebhook.Event
	err   error
}

func (s *stubWebhookService) HandleEvent(_ context.Context, event *squarewebhook.Event) error {
	s.event = event
	return s.err
}

const paymentEvent = `{"event_id":"evt-1","type":"payment.updated","data":{"type":"payment","id":"pay-1","object":{"payment":{"id":"pay-1","status":"COMPLETED","reference_id":"abc"}}}}`

func TestSquareWebhookRejectsMissingSignature(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(paymentEvent))
	rec := httptest.NewRecorder()
	SquareWebhook(svc, stubVerifier{ok: true}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
	if svc.event != nil {
		t.Fatal("event should not be handled")
	}
}

func TestSquareWebhookRejectsBadSignature(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(paymentEvent))
	req.Header.Set(signatureHeader, "bogus")
	rec := httptest.NewRecorder()
	SquareWebhook(svc, stubVerifier{ok: false}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestSquareWebhookDispatchesEvent(t *testing.T) {
	svc := &stubWebhookService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(paymentEvent))
	req.Header.Set(signatureHeader, "sig")
	rec := httptest.NewRecorder()
	SquareWebhook(svc, stubVerifier{ok: true}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.event == nil || svc.event.EventID != "evt-1" || svc.event.Data.Object.Payment.ReferenceID != "abc" {
		t.Fatalf("unexpected event %+v", svc.event)
	}
}

func TestSquareWebhookSurfacesHandlerFailure(t *testing.T) {
	svc := &stubWebhookService{err: errors.New("db down")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", strings.NewReader(paymentEvent))
	req.Header.Set(signatureHeader, "sig")
	rec := httptest.NewRecorder()
	SquareWebhook(svc, stubVerifier{ok: true}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so Square retries, got %d", rec.Code)
	}
}
