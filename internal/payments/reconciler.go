package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/acquiring"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/metrics"
)

const (
	defaultStatusAttempts  = 3
	defaultStatusRetryBase = 200 * time.Millisecond
)

// ReconcilerParams wires the reconciler dependencies.
type ReconcilerParams struct {
	Repo    orders.Repository
	Gateway StatusQuerier
	Logger  *logger.Logger
	Metrics *metrics.PaymentMetrics

	// StatusAttempts bounds status queries per reconciliation, first call included.
	StatusAttempts int
	RetryBase      time.Duration
}

// Reconciler settles pending orders from the redirect gateway's status. The
// return leg, the check-status endpoint and the pending sweep all go through it.
type Reconciler struct {
	repo      orders.Repository
	gateway   StatusQuerier
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
	attempts  int
	retryBase time.Duration
}

func NewReconciler(params ReconcilerParams) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("status gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	attempts := params.StatusAttempts
	if attempts <= 0 {
		attempts = defaultStatusAttempts
	}
	base := params.RetryBase
	if base <= 0 {
		base = defaultStatusRetryBase
	}
	return &Reconciler{
		repo:      params.Repo,
		gateway:   params.Gateway,
		logg:      params.Logger,
		metrics:   params.Metrics,
		attempts:  attempts,
		retryBase: base,
	}, nil
}

// Reconcile queries the gateway for the order's registered attempt and moves
// a pending order to its terminal status. Settled orders are answered from
// the store without a gateway call.
func (r *Reconciler) Reconcile(ctx context.Context, orderID uuid.UUID) (*Verdict, error) {
	order, err := r.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	return r.reconcile(ctx, order)
}

// ReconcileByGatewayOrder resolves the order from the gateway's id, as carried
// by the return leg, and reconciles it.
func (r *Reconciler) ReconcileByGatewayOrder(ctx context.Context, gatewayOrderID string) (*Verdict, error) {
	if gatewayOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id is required")
	}
	order, err := r.repo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no order for gateway order id")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order by gateway order id")
	}
	return r.reconcile(ctx, order)
}

func (r *Reconciler) reconcile(ctx context.Context, order *models.Order) (*Verdict, error) {
	ctx = r.logg.WithOrderID(ctx, order.ID.String())

	if !order.HasGatewayReference() {
		r.metrics.IncReconcile(metrics.OutcomeMissingRef)
		msg := "order has no gateway reference"
		if !order.PaymentMethod.UsesGateway() {
			msg = fmt.Sprintf("order is paid by %s and has no gateway reference", order.PaymentMethod)
		}
		return nil, pkgerrors.New(pkgerrors.CodeMissingGatewayReference, msg)
	}
	gatewayOrderID := *order.GatewayOrderID
	ctx = r.logg.WithGatewayOrderID(ctx, gatewayOrderID)

	if order.Status.IsSettled() {
		r.metrics.IncReconcile(metrics.OutcomeAlreadySettled)
		return verdictFromOrder(order), nil
	}

	status, err := r.queryStatus(ctx, gatewayOrderID)
	if err != nil {
		r.metrics.IncReconcile(metrics.OutcomeGatewayError)
		r.logg.Warn(ctx, fmt.Sprintf("gateway status query failed: %v", err))
		return nil, err
	}
	raw := status.OrderStatus

	next := transitionFor(raw)
	if !next.terminal {
		r.metrics.IncReconcile(metrics.OutcomePending)
		return &Verdict{
			OrderID:        order.ID,
			GatewayOrderID: gatewayOrderID,
			RawStatus:      &raw,
			OrderStatus:    order.Status,
		}, nil
	}

	updated, err := r.repo.UpdateStatusIfPending(ctx, order.ID, orders.StatusUpdate{
		Status:        next.status,
		PaymentStatus: next.paymentStatus,
		GatewayStatus: &raw,
	})
	if err != nil {
		r.metrics.IncReconcile(metrics.OutcomePersistenceFail)
		msg := "order status update failed after gateway verdict"
		if next.status == enums.OrderStatusConfirmed {
			msg = "payment verified paid but order status update failed"
		}
		r.logg.Error(r.logg.WithField(ctx, "gateway_status", raw.String()), msg, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update order status")
	}

	if !updated {
		// Another reconciliation settled the order first; report what it wrote.
		current, err := r.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reload order")
		}
		r.metrics.IncReconcile(metrics.OutcomeAlreadySettled)
		return verdictFromOrder(current), nil
	}

	outcome := metrics.OutcomeCancelled
	if next.paymentStatus == enums.PaymentStatusPaid {
		outcome = metrics.OutcomeConfirmed
	}
	r.metrics.IncReconcile(outcome)
	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"gateway_status": raw.String(),
		"order_status":   next.status.String(),
	}), "order reconciled")

	return &Verdict{
		OrderID:        order.ID,
		GatewayOrderID: gatewayOrderID,
		Paid:           next.paymentStatus == enums.PaymentStatusPaid,
		Failed:         next.paymentStatus == enums.PaymentStatusFailed,
		RawStatus:      &raw,
		OrderStatus:    next.status,
	}, nil
}

// queryStatus retries gateway failures only; the status call has no side
// effects at the gateway.
func (r *Reconciler) queryStatus(ctx context.Context, gatewayOrderID string) (*acquiring.StatusResponse, error) {
	var status *acquiring.StatusResponse
	backoff := retry.WithMaxRetries(uint64(r.attempts-1), retry.NewExponential(r.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		resp, err := r.gateway.OrderStatus(ctx, gatewayOrderID)
		if err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeGateway) {
				return retry.RetryableError(err)
			}
			return err
		}
		status = resp
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "query gateway status")
		}
		return nil, err
	}
	return status, nil
}
