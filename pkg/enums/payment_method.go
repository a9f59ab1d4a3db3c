package enums

import "fmt"

// PaymentMethod describes how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCardIntent   PaymentMethod = "card_intent"
	PaymentMethodCardRedirect PaymentMethod = "card_redirect"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCardIntent, PaymentMethodCardRedirect:
		return true
	}
	return false
}

// UsesGateway reports whether the method settles through a card gateway and
// therefore needs reconciliation.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodCardIntent || m == PaymentMethodCardRedirect
}

// GatewayName is the provider label used in logs and metrics.
func (m PaymentMethod) GatewayName() string {
	switch m {
	case PaymentMethodCardIntent:
		return "stripe"
	case PaymentMethodCardRedirect:
		return "acquiring"
	}
	return "none"
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	m := PaymentMethod(value)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return m, nil
}
