package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/internal/pricing"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/stripe"
)

// IntentResult is handed to the storefront to confirm the card payment client side.
type IntentResult struct {
	ClientSecret string
	IntentID     string
}

// IntentServiceParams wires the intent service dependencies.
type IntentServiceParams struct {
	Repo    orders.Repository
	Gateway IntentGateway
	Logger  *logger.Logger
}

// IntentService creates card payment intents for pending orders.
type IntentService struct {
	repo    orders.Repository
	gateway IntentGateway
	logg    *logger.Logger
}

func NewIntentService(params IntentServiceParams) (*IntentService, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("intent gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &IntentService{repo: params.Repo, gateway: params.Gateway, logg: params.Logger}, nil
}

// CreateIntent asks the intent gateway for a client secret covering amount.
// The amount must equal the order total at cent precision.
func (s *IntentService) CreateIntent(ctx context.Context, amount decimal.Decimal, orderID uuid.UUID) (*IntentResult, error) {
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	ctx = s.logg.WithOrderID(ctx, orderID.String())

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	if order.Status.IsSettled() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is no longer awaiting payment").
			WithDetails(map[string]any{"status": order.Status.String()})
	}

	cents, err := matchOrderTotal(amount, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, stripe.PaymentIntentInput{
		AmountMinor:    cents,
		OrderID:        order.ID.String(),
		OrderNumber:    order.OrderNumber,
		ReceiptEmail:   order.CustomerEmail,
		IdempotencyKey: fmt.Sprintf("intent-%s-%d", order.ID, cents),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, errors.New(stripe.ErrorMessage(err)), "create payment intent")
	}

	ctx = s.logg.WithField(ctx, "gateway", enums.PaymentMethodCardIntent.GatewayName())
	if _, err := s.repo.UpdatePaymentIfPending(ctx, order.ID, enums.PaymentMethodCardIntent, enums.PaymentStatusPending); err != nil {
		s.logg.Error(ctx, "record intent payment method", err)
	}

	s.logg.Info(s.logg.WithField(ctx, "intent_id", intent.ID), "payment intent created")
	return &IntentResult{ClientSecret: intent.ClientSecret, IntentID: intent.ID}, nil
}

// matchOrderTotal converts amount to minor units and checks it against the
// persisted order total.
func matchOrderTotal(amount, total decimal.Decimal) (int64, error) {
	cents, err := pricing.ToMinorUnits(amount)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	expected, err := pricing.ToMinorUnits(total)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid order total")
	}
	if cents != expected {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match order total").
			WithDetails(map[string]any{"expected": total.StringFixed(pricing.Scale)})
	}
	return cents, nil
}
