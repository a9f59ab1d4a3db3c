package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/api/responses"
	"github.com/lacucina/restaurant-backend/api/validators"
	"github.com/lacucina/restaurant-backend/internal/orders"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Kind      string    `json:"kind" validate:"required,oneof=product wine"`
	Quantity  int       `json:"quantity" validate:"min=1,max=99"`
}

type checkoutRequest struct {
	CustomerName    string                `json:"customerName" validate:"required,max=200"`
	CustomerEmail   string                `json:"customerEmail" validate:"required,email,max=320"`
	CustomerPhone   string                `json:"customerPhone" validate:"required,max=40"`
	DeliveryAddress *string               `json:"deliveryAddress,omitempty" validate:"omitempty,max=500"`
	Notes           *string               `json:"notes,omitempty" validate:"omitempty,max=1000"`
	PaymentMethod   string                `json:"paymentMethod" validate:"required,oneof=cash card_intent card_redirect"`
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

type orderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"productId"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	OrderNumber     string              `json:"orderNumber"`
	Status          string              `json:"status"`
	TotalAmount     decimal.Decimal     `json:"totalAmount"`
	CustomerName    string              `json:"customerName"`
	CustomerEmail   string              `json:"customerEmail"`
	CustomerPhone   string              `json:"customerPhone"`
	DeliveryAddress *string             `json:"deliveryAddress,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	PaymentMethod   string              `json:"paymentMethod"`
	PaymentStatus   string              `json:"paymentStatus"`
	PaymentSettled  bool                `json:"paymentSettled"`
	GatewayOrderID  *string             `json:"gatewayOrderId,omitempty"`
	Items           []orderItemResponse `json:"items"`
	CreatedAt       time.Time           `json:"createdAt"`
}

func newOrderResponse(o *models.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Kind:      item.ProductKind.String(),
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status.String(),
		TotalAmount:     o.TotalAmount,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		DeliveryAddress: o.DeliveryAddress,
		Notes:           o.Notes,
		PaymentMethod:   o.PaymentMethod.String(),
		PaymentStatus:   o.PaymentStatus.String(),
		PaymentSettled:  o.PaymentStatus.IsFinal(),
		GatewayOrderID:  o.GatewayOrderID,
		Items:           items,
		CreatedAt:       o.CreatedAt.UTC(),
	}
}

// OrderCheckout prices the submitted cart from the catalog and stores a pending order.
func OrderCheckout(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		method, err := enums.ParsePaymentMethod(payload.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		input := orders.CheckoutInput{
			CustomerName:    validators.SanitizeString(payload.CustomerName, 200),
			CustomerEmail:   strings.TrimSpace(payload.CustomerEmail),
			CustomerPhone:   validators.SanitizeString(payload.CustomerPhone, 40),
			DeliveryAddress: payload.DeliveryAddress,
			Notes:           payload.Notes,
			PaymentMethod:   method,
		}
		for _, item := range payload.Items {
			kind, err := enums.ParseProductKind(item.Kind)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product kind"))
				return
			}
			input.Items = append(input.Items, orders.CheckoutItem{
				ProductID: item.ProductID,
				Kind:      kind,
				Quantity:  item.Quantity,
			})
		}

		order, err := svc.Checkout(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newOrderResponse(order))
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	return validators.ParseUUID(chi.URLParam(r, "orderId"), "orderId")
}
