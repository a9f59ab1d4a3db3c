package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/lacucina/restaurant-backend/internal/payments"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const (
	defaultPendingMinAge = 15 * time.Minute
	defaultPendingMaxAge = 48 * time.Hour
	defaultPendingBatch  = 50
)

// PendingReconcileJobParams configure the pending payment sweep.
type PendingReconcileJobParams struct {
	Logger     *logger.Logger
	Orders     pendingOrderReader
	Reconciler orderReconciler
	MinAge     time.Duration
	MaxAge     time.Duration
	Batch      int
}

type pendingOrderReader interface {
	ListPendingWithGatewayReference(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Order, error)
}

type orderReconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.Verdict, error)
}

// NewPendingReconcileJob builds the job that settles redirect payments whose
// customer never came back through the return leg.
func NewPendingReconcileJob(params PendingReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending orders reader required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultPendingMinAge
	}
	maxAge := params.MaxAge
	if maxAge <= minAge {
		maxAge = defaultPendingMaxAge
	}
	batch := params.Batch
	if batch <= 0 {
		batch = defaultPendingBatch
	}
	return &pendingReconcileJob{
		logg:       params.Logger,
		orders:     params.Orders,
		reconciler: params.Reconciler,
		minAge:     minAge,
		maxAge:     maxAge,
		batch:      batch,
		now:        time.Now,
	}, nil
}

type pendingReconcileJob struct {
	logg       *logger.Logger
	orders     pendingOrderReader
	reconciler orderReconciler
	minAge     time.Duration
	maxAge     time.Duration
	batch      int
	now        func() time.Time
}

func (j *pendingReconcileJob) Name() string { return "pending-reconcile" }

func (j *pendingReconcileJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	pending, err := j.orders.ListPendingWithGatewayReference(ctx, now.Add(-j.maxAge), now.Add(-j.minAge), j.batch)
	if err != nil {
		return fmt.Errorf("query pending redirect orders: %w", err)
	}

	var errs []error
	paid, failed, open, skipped := 0, 0, 0, 0
	for _, order := range pending {
		verdict, err := j.reconciler.Reconcile(ctx, order.ID)
		if err != nil {
			// Retrying cannot help (for example the order was purged
			// mid-batch), so it does not fail the run.
			if !pkgerrors.IsRetryable(err) {
				skipped++
				j.logg.Warn(j.logg.WithField(j.logg.WithOrderID(ctx, order.ID.String()), "error", err.Error()), "pending order skipped")
				continue
			}
			errs = append(errs, fmt.Errorf("reconcile order %s: %w", order.ID, err))
			continue
		}
		switch {
		case verdict.Paid:
			paid++
		case verdict.Failed:
			failed++
		default:
			open++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": len(pending),
		"paid":    paid,
		"failed":  failed,
		"pending": open,
		"skipped": skipped,
		"errors":  len(errs),
	})
	j.logg.Info(logCtx, "pending reconcile loop complete")
	return multierr.Combine(errs...)
}
