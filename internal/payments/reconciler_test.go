package payments

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/metrics"
)

func newTestReconciler(t *testing.T, repo orders.Repository, gw StatusQuerier, buf *bytes.Buffer, m *metrics.PaymentMetrics) *Reconciler {
	t.Helper()
	r, err := NewReconciler(ReconcilerParams{
		Repo:      repo,
		Gateway:   gw,
		Logger:    newTestLogger(buf),
		Metrics:   m,
		RetryBase: 1,
	})
	require.NoError(t, err)
	return r
}

func withGatewayRef(id string) func(*models.Order) {
	return func(o *models.Order) {
		o.GatewayOrderID = &id
		o.PaymentMethod = enums.PaymentMethodCardRedirect
		o.PaymentStatus = enums.PaymentStatusPending
	}
}

func TestTransitionForCoversEveryGatewayCode(t *testing.T) {
	want := map[enums.GatewayStatus]enums.OrderStatus{
		enums.GatewayStatusRegistered:            enums.OrderStatusPending,
		enums.GatewayStatusPreAuthorized:         enums.OrderStatusPending,
		enums.GatewayStatusDeposited:             enums.OrderStatusConfirmed,
		enums.GatewayStatusAuthorizationReversed: enums.OrderStatusCancelled,
		enums.GatewayStatusRefunded:              enums.OrderStatusPending,
		enums.GatewayStatusACSInitiated:          enums.OrderStatusPending,
		enums.GatewayStatusDeclined:              enums.OrderStatusCancelled,
	}
	for code := 0; code <= 6; code++ {
		status, err := enums.ParseGatewayStatus(code)
		require.NoError(t, err)
		got := transitionFor(status)
		assert.Equalf(t, want[status], got.status, "code %d", code)
		assert.Equalf(t, got.status != enums.OrderStatusPending, got.terminal, "code %d", code)
	}
}

func TestReconcileEndToEndIsIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "150.00", nil)

	registrar := &fakeRegistrar{}
	redirect, err := NewRedirectService(RedirectServiceParams{
		Repo:      repo,
		Gateway:   registrar,
		Guard:     newFakeGuardStore(),
		ReturnURL: "https://site.test/payment/redirect/return",
		FailURL:   "https://site.test/payment/redirect/fail",
		Logger:    newTestLogger(nil),
	})
	require.NoError(t, err)

	session, err := redirect.Initiate(context.Background(), InitiateInput{
		OrderID: order.ID,
		Amount:  decimal.RequireFromString("150.00"),
	})
	require.NoError(t, err)
	require.Equal(t, "G1", session.GatewayOrderID)
	require.Equal(t, int64(15000), registrar.requests[0].AmountMinor)

	gw := &fakeStatusGateway{responses: []statusReply{{status: enums.GatewayStatusDeposited}}}
	reconciler := newTestReconciler(t, repo, gw, nil, nil)

	first, err := reconciler.Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, first.Paid)
	assert.False(t, first.Failed)
	assert.Equal(t, enums.OrderStatusConfirmed, first.OrderStatus)
	require.NotNil(t, first.RawStatus)
	assert.Equal(t, enums.GatewayStatusDeposited, *first.RawStatus)
	assert.Equal(t, []string{"G1"}, gw.ids)

	second, err := reconciler.ReconcileByGatewayOrder(context.Background(), "G1")
	require.NoError(t, err)
	assert.True(t, second.Paid)
	assert.Equal(t, enums.OrderStatusConfirmed, second.OrderStatus)
	require.NotNil(t, second.RawStatus)
	assert.Equal(t, enums.GatewayStatusDeposited, *second.RawStatus)
	assert.Equal(t, 1, gw.calls, "settled orders must not hit the gateway again")

	stored := mustLoad(t, repo, order.ID)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	assert.Equal(t, enums.PaymentStatusPaid, stored.PaymentStatus)
}

func TestReconcileMissingGatewayReference(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "20.00", nil)
	gw := &fakeStatusGateway{responses: []statusReply{{status: enums.GatewayStatusDeposited}}}

	_, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeMissingGatewayReference))
	assert.Zero(t, gw.calls)
	assert.Equal(t, enums.OrderStatusPending, mustLoad(t, repo, order.ID).Status)
}

func TestReconcileDeclinedCancels(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "20.00", withGatewayRef("G-declined"))
	gw := &fakeStatusGateway{responses: []statusReply{{status: enums.GatewayStatusDeclined}}}

	verdict, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Failed)
	assert.False(t, verdict.Paid)

	stored := mustLoad(t, repo, order.ID)
	assert.Equal(t, enums.OrderStatusCancelled, stored.Status)
	assert.Equal(t, enums.PaymentStatusFailed, stored.PaymentStatus)
}

func TestReconcileInProgressLeavesOrderUntouched(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "20.00", withGatewayRef("G-acs"))
	before := mustLoad(t, repo, order.ID)
	gw := &fakeStatusGateway{responses: []statusReply{{status: enums.GatewayStatusACSInitiated}}}

	verdict, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, verdict.Paid)
	assert.False(t, verdict.Failed)
	assert.Equal(t, enums.OrderStatusPending, verdict.OrderStatus)

	after := mustLoad(t, repo, order.ID)
	assert.Equal(t, before.Status, after.Status)
	assert.Nil(t, after.GatewayStatus)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestReconcileRetriesGatewayErrors(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "20.00", withGatewayRef("G-flaky"))
	gwErr := pkgerrors.New(pkgerrors.CodeGateway, "timeout")
	gw := &fakeStatusGateway{responses: []statusReply{{err: gwErr}, {err: gwErr}, {status: enums.GatewayStatusDeposited}}}

	verdict, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	assert.True(t, verdict.Paid)
	assert.Equal(t, 3, gw.calls)
}

func TestReconcileGatewayErrorAfterRetriesKeepsPending(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "20.00", withGatewayRef("G-down"))
	gw := &fakeStatusGateway{responses: []statusReply{{err: pkgerrors.New(pkgerrors.CodeGateway, "timeout")}}}

	_, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
	assert.Equal(t, 3, gw.calls)
	assert.Equal(t, enums.OrderStatusPending, mustLoad(t, repo, order.ID).Status)
}

func TestReconcileDoesNotRetryNonGatewayErrors(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "20.00", withGatewayRef("G-bad"))
	gw := &fakeStatusGateway{responses: []statusReply{{err: pkgerrors.New(pkgerrors.CodeValidation, "bad id")}}}

	_, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, 1, gw.calls)
}

func TestReconcileLosesRaceAndReportsStoredStatus(t *testing.T) {
	base := newTestRepo(t)
	order := createOrder(t, base, "20.00", withGatewayRef("G-race"))
	repo := &racingRepo{Repository: base, settleAs: enums.OrderStatusCancelled}
	gw := &fakeStatusGateway{responses: []statusReply{{status: enums.GatewayStatusDeposited}}}

	verdict, err := newTestReconciler(t, repo, gw, nil, nil).Reconcile(context.Background(), order.ID)
	require.NoError(t, err)
	assert.False(t, verdict.Paid)
	assert.True(t, verdict.Failed)
	assert.Equal(t, enums.OrderStatusCancelled, verdict.OrderStatus)
}

func TestReconcilePaidButWriteFailsIsLoud(t *testing.T) {
	base := newTestRepo(t)
	order := createOrder(t, base, "20.00", withGatewayRef("G-lost"))
	repo := &racingRepo{Repository: base, failWith: errBoom}
	gw := &fakeStatusGateway{responses: []statusReply{{status: enums.GatewayStatusDeposited}}}

	var logs bytes.Buffer
	reg := prometheus.NewRegistry()
	_, err := newTestReconciler(t, repo, gw, &logs, metrics.NewPaymentMetrics(reg)).Reconcile(context.Background(), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))
	assert.Contains(t, logs.String(), `"level":"error"`)
	assert.Contains(t, logs.String(), "payment verified paid")
	assert.Contains(t, logs.String(), order.ID.String())

	count, gatherErr := testutil.GatherAndCount(reg, "payments_reconcile_total")
	require.NoError(t, gatherErr)
	assert.Equal(t, 1, count)
}

func TestReconcileUnknownOrders(t *testing.T) {
	repo := newTestRepo(t)
	reconciler := newTestReconciler(t, repo, &fakeStatusGateway{responses: []statusReply{{}}}, nil, nil)

	_, err := reconciler.Reconcile(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = reconciler.ReconcileByGatewayOrder(context.Background(), "nope")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = reconciler.ReconcileByGatewayOrder(context.Background(), "")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
