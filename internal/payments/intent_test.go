package payments

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v84"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/stripe"
)

type fakeIntentGateway struct {
	inputs []stripe.PaymentIntentInput
	err    error
}

func (f *fakeIntentGateway) CreatePaymentIntent(ctx context.Context, in stripe.PaymentIntentInput) (*stripe.PaymentIntent, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret", Status: "requires_payment_method"}, nil
}

func newTestIntent(t *testing.T, repo orders.Repository, gw IntentGateway) *IntentService {
	t.Helper()
	svc, err := NewIntentService(IntentServiceParams{Repo: repo, Gateway: gw, Logger: newTestLogger(nil)})
	require.NoError(t, err)
	return svc
}

func TestCreateIntentUsesOrderTotalInCents(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "19.99", nil)
	gw := &fakeIntentGateway{}

	res, err := newTestIntent(t, repo, gw).CreateIntent(context.Background(), decimal.RequireFromString("19.99"), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret", res.ClientSecret)
	assert.Equal(t, "pi_123", res.IntentID)

	require.Len(t, gw.inputs, 1)
	in := gw.inputs[0]
	assert.Equal(t, int64(1999), in.AmountMinor)
	assert.Equal(t, order.ID.String(), in.OrderID)
	assert.Equal(t, order.OrderNumber, in.OrderNumber)
	assert.Equal(t, fmt.Sprintf("intent-%s-1999", order.ID), in.IdempotencyKey)

	stored := mustLoad(t, repo, order.ID)
	assert.Equal(t, enums.PaymentMethodCardIntent, stored.PaymentMethod)
	assert.Equal(t, enums.PaymentStatusPending, stored.PaymentStatus)
}

func TestCreateIntentRejectsMismatchedAmount(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "19.99", nil)
	gw := &fakeIntentGateway{}

	_, err := newTestIntent(t, repo, gw).CreateIntent(context.Background(), decimal.RequireFromString("20.00"), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, map[string]any{"expected": "19.99"}, pkgerrors.As(err).Details())
	assert.Empty(t, gw.inputs)
}

func TestCreateIntentValidatesInput(t *testing.T) {
	svc := newTestIntent(t, newTestRepo(t), &fakeIntentGateway{})

	_, err := svc.CreateIntent(context.Background(), decimal.Zero, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateIntent(context.Background(), decimal.RequireFromString("1"), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.CreateIntent(context.Background(), decimal.RequireFromString("1"), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateIntentSurfacesGatewayMessage(t *testing.T) {
	repo := newTestRepo(t)
	order := createOrder(t, repo, "5.00", nil)
	gw := &fakeIntentGateway{err: &stripego.Error{Msg: "Your card was declined."}}

	_, err := newTestIntent(t, repo, gw).CreateIntent(context.Background(), decimal.RequireFromString("5"), order.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeGateway))
	assert.Contains(t, err.Error(), "Your card was declined.")
	assert.Equal(t, enums.PaymentMethodCash, mustLoad(t, repo, order.ID).PaymentMethod)
}
