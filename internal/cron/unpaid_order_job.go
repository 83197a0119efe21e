package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/codinglabe/believe-app/pkg/logger"
)

const (
	defaultUnpaidTTL   = 72 * time.Hour
	defaultUnpaidBatch = 100
)

type unpaidOrderExpirer interface {
	ExpireUnpaid(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type UnpaidOrderJobParams struct {
	Logger    *logger.Logger
	Orders    unpaidOrderExpirer
	TTL       time.Duration
	BatchSize int
}

// NewUnpaidOrderJob cancels pending service orders that stayed unpaid for
// longer than TTL.
func NewUnpaidOrderJob(params UnpaidOrderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("service orders required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultUnpaidTTL
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultUnpaidBatch
	}
	return &unpaidOrderJob{logg: params.Logger, orders: params.Orders, ttl: ttl, batch: batch, now: time.Now}, nil
}

type unpaidOrderJob struct {
	logg   *logger.Logger
	orders unpaidOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *unpaidOrderJob) Name() string { return "unpaid-order-expiry" }

func (j *unpaidOrderJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpireUnpaid(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("expire unpaid orders: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":  cutoff,
		"expired": expired,
	}), "unpaid order sweep complete")
	return nil
}
