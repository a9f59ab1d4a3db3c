package cron

import (
	"context"
	"fmt"

	"github.com/lacucina/restaurant-backend/internal/retention"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

// OrderRetentionJobParams configure the scheduled order purge.
type OrderRetentionJobParams struct {
	Logger *logger.Logger
	Purger orderPurger
	Days   int
}

type orderPurger interface {
	Purge(ctx context.Context, days int) (*retention.PurgeResult, error)
}

func NewOrderRetentionJob(params OrderRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("order purger required")
	}
	return &orderRetentionJob{logg: params.Logger, purger: params.Purger, days: params.Days}, nil
}

type orderRetentionJob struct {
	logg   *logger.Logger
	purger orderPurger
	days   int
}

func (j *orderRetentionJob) Name() string { return "order-retention" }

func (j *orderRetentionJob) Run(ctx context.Context) error {
	res, err := j.purger.Purge(ctx, j.days)
	if err != nil {
		return fmt.Errorf("order retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"deleted": res.Deleted, "cutoff": res.Cutoff})
	j.logg.Info(logCtx, "order retention complete")
	return nil
}
