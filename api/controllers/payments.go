package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/api/responses"
	"github.com/lacucina/restaurant-backend/api/validators"
	"github.com/lacucina/restaurant-backend/internal/payments"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

type IntentCreator interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, orderID uuid.UUID) (*payments.IntentResult, error)
}

type RedirectInitiator interface {
	Initiate(ctx context.Context, in payments.InitiateInput) (*payments.InitiateResult, error)
}

type OrderReconciler interface {
	Reconcile(ctx context.Context, orderID uuid.UUID) (*payments.Verdict, error)
	ReconcileByGatewayOrder(ctx context.Context, gatewayOrderID string) (*payments.Verdict, error)
}

type intentRequest struct {
	Amount  decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	OrderID uuid.UUID       `json:"orderId" validate:"required"`
}

type intentResponse struct {
	ClientSecret string `json:"clientSecret"`
	IntentID     string `json:"intentId"`
}

// PaymentIntent creates a card payment intent for an order.
func PaymentIntent(svc IntentCreator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "intent service unavailable"))
			return
		}
		var payload intentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.CreateIntent(r.Context(), payload.Amount, payload.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intentResponse{ClientSecret: res.ClientSecret, IntentID: res.IntentID})
	}
}

type initiateRequest struct {
	Amount        decimal.Decimal `json:"amount" validate:"decimal_gt0"`
	OrderID       uuid.UUID       `json:"orderId" validate:"required"`
	CustomerName  string          `json:"customerName" validate:"omitempty,max=200"`
	CustomerEmail string          `json:"customerEmail" validate:"omitempty,email,max=320"`
}

type initiateResponse struct {
	RedirectFormURL string `json:"redirectFormUrl"`
	GatewayOrderID  string `json:"gatewayOrderId"`
	OrderNumber     string `json:"orderNumber"`
	Reused          bool   `json:"reused,omitempty"`
}

// RedirectInitiate registers the order with the redirect gateway and returns
// the hosted payment page URL.
func RedirectInitiate(svc RedirectInitiator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redirect service unavailable"))
			return
		}
		var payload initiateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Initiate(r.Context(), payments.InitiateInput{
			OrderID:        payload.OrderID,
			Amount:         payload.Amount,
			CustomerName:   validators.SanitizeString(payload.CustomerName, 200),
			CustomerEmail:  strings.TrimSpace(payload.CustomerEmail),
			IdempotencyKey: r.Header.Get("Idempotency-Key"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, initiateResponse{
			RedirectFormURL: res.RedirectFormURL,
			GatewayOrderID:  res.GatewayOrderID,
			OrderNumber:     res.OrderNumber,
			Reused:          res.Reused,
		})
	}
}

type checkStatusRequest struct {
	GatewayOrderID string `json:"gatewayOrderId" validate:"required,max=128"`
}

type verdictResponse struct {
	OrderID        uuid.UUID `json:"orderId"`
	GatewayOrderID string    `json:"gatewayOrderId"`
	IsPaid         bool      `json:"isPaid"`
	IsFailed       bool      `json:"isFailed"`
	RawStatus      *int      `json:"rawStatus"`
	OrderStatus    string    `json:"orderStatus"`
}

func newVerdictResponse(v *payments.Verdict) verdictResponse {
	resp := verdictResponse{
		OrderID:        v.OrderID,
		GatewayOrderID: v.GatewayOrderID,
		IsPaid:         v.Paid,
		IsFailed:       v.Failed,
		OrderStatus:    v.OrderStatus.String(),
	}
	if v.RawStatus != nil {
		raw := int(*v.RawStatus)
		resp.RawStatus = &raw
	}
	return resp
}

// RedirectCheckStatus polls the gateway for a registered attempt. It shares
// the reconciliation path with the return leg.
func RedirectCheckStatus(rec OrderReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		var payload checkStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		verdict, err := rec.ReconcileByGatewayOrder(r.Context(), strings.TrimSpace(payload.GatewayOrderID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVerdictResponse(verdict))
	}
}

// RedirectLanding handles the browser coming back from the hosted payment
// page. The query parameters only identify the attempt; the verdict always
// comes from the gateway status query.
func RedirectLanding(rec OrderReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		gatewayOrderID := validators.FirstQueryValue(r, "orderId", "mdOrder")
		if gatewayOrderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "orderId query parameter is required"))
			return
		}
		verdict, err := rec.ReconcileByGatewayOrder(r.Context(), validators.SanitizeString(gatewayOrderID, 128))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVerdictResponse(verdict))
	}
}

// OrderPaymentStatus reconciles by our own order id, for a customer who
// revisits the payment page without fresh redirect parameters.
func OrderPaymentStatus(rec OrderReconciler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if rec == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		verdict, err := rec.Reconcile(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newVerdictResponse(verdict))
	}
}
