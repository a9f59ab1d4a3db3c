package payments

import (
	"context"
	"time"

	"github.com/lacucina/restaurant-backend/pkg/acquiring"
	"github.com/lacucina/restaurant-backend/pkg/stripe"
)

// IntentGateway creates card payment intents (Stripe).
type IntentGateway interface {
	CreatePaymentIntent(ctx context.Context, in stripe.PaymentIntentInput) (*stripe.PaymentIntent, error)
}

// Registrar registers payment attempts at the redirect gateway.
type Registrar interface {
	Register(ctx context.Context, req acquiring.RegisterRequest) (*acquiring.RegisterResponse, error)
}

// StatusQuerier reads the authoritative status of a registered attempt.
type StatusQuerier interface {
	OrderStatus(ctx context.Context, gatewayOrderID string) (*acquiring.StatusResponse, error)
}

// RedirectGateway is the full redirect gateway surface.
type RedirectGateway interface {
	Registrar
	StatusQuerier
}

// guardStore is the Redis surface used by the registration guard.
type guardStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	RegistrationKey(orderID, token string) string
}
