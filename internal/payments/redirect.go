package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/acquiring"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
	"github.com/lacucina/restaurant-backend/pkg/metrics"
)

// InitiateInput starts a redirect payment for an order.
type InitiateInput struct {
	OrderID        uuid.UUID
	Amount         decimal.Decimal
	CustomerName   string
	CustomerEmail  string
	IdempotencyKey string
}

// InitiateResult tells the storefront where to send the browser.
type InitiateResult struct {
	RedirectFormURL string
	GatewayOrderID  string
	OrderNumber     string
	Reused          bool
}

// RedirectServiceParams wires the redirect payment service.
type RedirectServiceParams struct {
	Repo      orders.Repository
	Gateway   Registrar
	Guard     guardStore
	ReturnURL string
	FailURL   string
	Logger    *logger.Logger
	Metrics   *metrics.PaymentMetrics
}

// RedirectService registers orders with the redirect gateway.
type RedirectService struct {
	repo      orders.Repository
	gateway   Registrar
	guard     *registrationGuard
	returnURL string
	failURL   string
	logg      *logger.Logger
	metrics   *metrics.PaymentMetrics
}

func NewRedirectService(params RedirectServiceParams) (*RedirectService, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("redirect gateway required")
	}
	if params.Guard == nil {
		return nil, fmt.Errorf("registration guard store required")
	}
	if params.ReturnURL == "" || params.FailURL == "" {
		return nil, fmt.Errorf("return and fail urls required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &RedirectService{
		repo:      params.Repo,
		gateway:   params.Gateway,
		guard:     &registrationGuard{store: params.Guard},
		returnURL: params.ReturnURL,
		failURL:   params.FailURL,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Initiate registers a new gateway attempt for the order and persists the
// gateway order id before handing back the hosted payment page URL. A replay
// with the same idempotency key returns the stored session instead of
// registering again.
func (s *RedirectService) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	if in.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !in.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	token := strings.TrimSpace(in.IdempotencyKey)
	if token == "" {
		token = in.OrderID.String()
	}
	ctx = s.logg.WithOrderID(ctx, in.OrderID.String())

	order, err := s.repo.FindByID(ctx, in.OrderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}

	cents, err := matchOrderTotal(in.Amount, order.TotalAmount)
	if err != nil {
		return nil, err
	}

	// A settled order's hosted page is dead even if a session is remembered.
	if order.Status.IsSettled() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is no longer awaiting payment").
			WithDetails(map[string]any{"status": order.Status.String()})
	}
	if session, err := s.guard.Lookup(ctx, order.ID, token); err != nil {
		return nil, err
	} else if session != nil {
		s.metrics.IncRegistration("reused")
		s.logg.Info(s.logg.WithGatewayOrderID(ctx, session.GatewayOrderID), "returning stored redirect session")
		return sessionResult(session, true), nil
	}

	if order.HasGatewayReference() {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already registered for this order").
			WithDetails(map[string]any{"gatewayOrderId": *order.GatewayOrderID})
	}

	acquired, err := s.guard.Acquire(ctx, order.ID, token)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment registration already in progress")
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), order.ID, token); err != nil {
			s.logg.Warn(ctx, err.Error())
		}
	}()

	attempt, err := s.repo.NextGatewayAttempt(ctx, order.ID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already registered for this order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "reserve gateway attempt")
	}
	attemptNumber := orders.AttemptNumber(order.OrderNumber, attempt)

	registered, err := s.gateway.Register(ctx, acquiring.RegisterRequest{
		AmountMinor: cents,
		OrderNumber: attemptNumber,
		ReturnURL:   s.returnURL,
		FailURL:     s.failURL,
		Description: describe(order.OrderNumber, in.CustomerName, in.CustomerEmail),
	})
	if err != nil {
		s.metrics.IncRegistration("error")
		s.logg.Warn(s.logg.WithField(ctx, "attempt_number", attemptNumber), fmt.Sprintf("gateway registration failed: %v", err))
		return nil, err
	}
	ctx = s.logg.WithGatewayOrderID(ctx, registered.GatewayOrderID)

	stored, err := s.repo.SetGatewayOrderID(ctx, order.ID, registered.GatewayOrderID)
	if err != nil {
		s.logg.Error(ctx, "registered payment could not be linked to order", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "persist gateway order id")
	}
	if !stored {
		s.logg.Error(ctx, "order already carries a gateway reference; new registration left unlinked", nil)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment already registered for this order")
	}

	ctx = s.logg.WithField(ctx, "gateway", enums.PaymentMethodCardRedirect.GatewayName())
	if _, err := s.repo.UpdatePaymentIfPending(ctx, order.ID, enums.PaymentMethodCardRedirect, enums.PaymentStatusPending); err != nil {
		s.logg.Error(ctx, "record redirect payment method", err)
	}

	session := RedirectSession{
		GatewayOrderID: registered.GatewayOrderID,
		FormURL:        registered.FormURL,
		OrderNumber:    order.OrderNumber,
		IdempotencyKey: token,
	}
	if err := s.guard.Remember(ctx, order.ID, session); err != nil {
		s.logg.Warn(ctx, fmt.Sprintf("store redirect session: %v", err))
	}

	s.metrics.IncRegistration("ok")
	s.logg.Info(s.logg.WithField(ctx, "attempt_number", attemptNumber), "redirect payment registered")
	return sessionResult(&session, false), nil
}

func sessionResult(session *RedirectSession, reused bool) *InitiateResult {
	return &InitiateResult{
		RedirectFormURL: session.FormURL,
		GatewayOrderID:  session.GatewayOrderID,
		OrderNumber:     session.OrderNumber,
		Reused:          reused,
	}
}

func describe(orderNumber, name, email string) string {
	parts := []string{"Order " + orderNumber}
	if name = strings.TrimSpace(name); name != "" {
		parts = append(parts, name)
	}
	if email = strings.TrimSpace(email); email != "" {
		parts = append(parts, email)
	}
	return strings.Join(parts, " / ")
}
