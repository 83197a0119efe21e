package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codinglabe/believe-app/pkg/config"
	"github.com/codinglabe/believe-app/pkg/db/models"
	"github.com/codinglabe/believe-app/pkg/enums"
	"github.com/codinglabe/believe-app/pkg/logger"
	"github.com/codinglabe/believe-app/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newEvent(t, enums.EventServiceOrderCreated, "event-one", 0),
			newEvent(t, enums.EventServiceOrderApproved, "event-two", 0),
		},
	}
	domain := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, domain, &fakePublisher{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
	if got := domain.messages[1].Attributes["event_id"]; got != "event-two" {
		t.Fatalf("expected envelope event id attribute, got %q", got)
	}
	if got := domain.messages[1].Attributes["event_type"]; got != string(enums.EventServiceOrderApproved) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
}

func TestServiceProcessBatchDeadLettersUndecodablePayload(t *testing.T) {
	event := newEvent(t, enums.EventReviewSubmitted, "bad", 0)
	event.Payload = json.RawMessage(`"not an envelope"`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	domain := &fakePublisher{}
	deadLetter := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, domain, deadLetter, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(domain.messages) != 0 {
		t.Fatalf("undecodable payload must not reach the domain topic")
	}
	if len(deadLetter.messages) != 1 {
		t.Fatalf("expected dead-letter message, got %d", len(deadLetter.messages))
	}
	msg := deadLetter.messages[0]
	if msg.Attributes["dead_letter_reason"] != string(enums.DeadLetterNonRetryable) {
		t.Fatalf("unexpected reason %q", msg.Attributes["dead_letter_reason"])
	}
	if msg.Attributes["event_id"] != event.ID.String() {
		t.Fatalf("expected row id as event_id, got %q", msg.Attributes["event_id"])
	}
	if len(repo.terminal) != 1 || repo.terminal[0] != event.ID {
		t.Fatalf("expected row parked as terminal")
	}
}

func TestServiceProcessBatchDeadLettersOnMaxAttempts(t *testing.T) {
	event := newEvent(t, enums.EventOfferingClosed, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	domain := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	deadLetter := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, domain, deadLetter, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(deadLetter.messages) != 1 {
		t.Fatalf("expected dead-letter message, got %d", len(deadLetter.messages))
	}
	if got := deadLetter.messages[0].Attributes["dead_letter_reason"]; got != string(enums.DeadLetterMaxAttempts) {
		t.Fatalf("unexpected reason %q", got)
	}
	if len(repo.terminal) != 1 {
		t.Fatalf("expected terminal mark, got %d", len(repo.terminal))
	}
	if len(repo.failed) != 0 {
		t.Fatalf("terminal row must not also be marked failed")
	}
}

func TestServiceProcessBatchKeepsRowWhenDeadLetterFails(t *testing.T) {
	event := newEvent(t, enums.EventOfferingClosed, "dlq-down", 4)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	domain := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	deadLetter := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("unavailable")}}}
	service := newTestService(t, repo, domain, deadLetter, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.terminal) != 0 {
		t.Fatalf("row must stay retryable when the dead-letter topic is down")
	}
	if len(repo.failed) != 0 {
		t.Fatalf("attempt count must not advance past the limit, got %d failure marks", len(repo.failed))
	}
}

func TestNextBackoffCaps(t *testing.T) {
	base := 100 * time.Millisecond
	if got := nextBackoff(0, base, time.Second); got != 200*time.Millisecond {
		t.Fatalf("unexpected backoff %s", got)
	}
	if got := nextBackoff(800*time.Millisecond, base, time.Second); got != time.Second {
		t.Fatalf("expected cap, got %s", got)
	}
}

func newTestService(t *testing.T, repo outboxRepository, domain, deadLetter publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{Outbox: outboxCfg}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: repo,
		Domain:     domain,
		DeadLetter: deadLetter,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newEvent(tb testing.TB, eventType enums.OutboxEventType, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     eventType,
		AggregateType: enums.AggregateServiceOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) DomainPublisher() *gcppubsub.Publisher {
	return nil
}

func (f *fakePubSubClient) DeadLetterPublisher() *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}
