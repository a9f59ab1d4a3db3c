package payments

import (
	"github.com/google/uuid"

	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// Verdict is the outcome of reconciling an order with the gateway.
type Verdict struct {
	OrderID        uuid.UUID
	GatewayOrderID string
	Paid           bool
	Failed         bool
	RawStatus      *enums.GatewayStatus
	OrderStatus    enums.OrderStatus
}

// transition is the order write implied by a gateway status.
type transition struct {
	terminal      bool
	status        enums.OrderStatus
	paymentStatus enums.PaymentStatus
}

// transitionFor maps every gateway code to exactly one outcome. Only a
// deposited payment confirms; reversed and declined cancel; anything else
// leaves the order pending.
func transitionFor(status enums.GatewayStatus) transition {
	switch status {
	case enums.GatewayStatusDeposited:
		return transition{terminal: true, status: enums.OrderStatusConfirmed, paymentStatus: enums.PaymentStatusPaid}
	case enums.GatewayStatusAuthorizationReversed, enums.GatewayStatusDeclined:
		return transition{terminal: true, status: enums.OrderStatusCancelled, paymentStatus: enums.PaymentStatusFailed}
	case enums.GatewayStatusRegistered,
		enums.GatewayStatusPreAuthorized,
		enums.GatewayStatusRefunded,
		enums.GatewayStatusACSInitiated:
		return transition{status: enums.OrderStatusPending}
	default:
		return transition{status: enums.OrderStatusPending}
	}
}

// verdictFromOrder reports what the store already says about the order.
func verdictFromOrder(order *models.Order) *Verdict {
	v := &Verdict{
		OrderID:     order.ID,
		RawStatus:   order.GatewayStatus,
		OrderStatus: order.Status,
	}
	if order.GatewayOrderID != nil {
		v.GatewayOrderID = *order.GatewayOrderID
	}
	switch {
	case order.PaymentStatus == enums.PaymentStatusPaid:
		v.Paid = true
	case order.Status == enums.OrderStatusCancelled || order.PaymentStatus == enums.PaymentStatusFailed:
		v.Failed = true
	}
	return v
}
