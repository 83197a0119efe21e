package cron

import (
	"context"
	"fmt"

	"github.com/codinglabe/believe-app/pkg/logger"
)

const defaultWindowBatch = 100

type offeringCloser interface {
	CloseExpired(ctx context.Context, limit int) (int, error)
}

type OfferingWindowJobParams struct {
	Logger    *logger.Logger
	Offerings offeringCloser
	BatchSize int
}

// NewOfferingWindowJob closes offerings whose close_at has passed. Batches
// repeat until a short batch shows nothing is left.
func NewOfferingWindowJob(params OfferingWindowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Offerings == nil {
		return nil, fmt.Errorf("offerings service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultWindowBatch
	}
	return &offeringWindowJob{logg: params.Logger, offerings: params.Offerings, batch: batch}, nil
}

type offeringWindowJob struct {
	logg      *logger.Logger
	offerings offeringCloser
	batch     int
}

func (j *offeringWindowJob) Name() string { return "offering-window" }

func (j *offeringWindowJob) Run(ctx context.Context) error {
	total := 0
	for {
		closed, err := j.offerings.CloseExpired(ctx, j.batch)
		total += closed
		if err != nil {
			return fmt.Errorf("close expired offerings: %w", err)
		}
		if closed < j.batch {
			break
		}
	}
	j.logg.Info(j.logg.WithField(ctx, "closed", total), "offering window sweep complete")
	return nil
}
