package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/lacucina/restaurant-backend/pkg/config"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe secret key is required")
	errCurrencyRequired = errors.New("stripe currency is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// PaymentIntentInput describes a card payment for a single order.
type PaymentIntentInput struct {
	AmountMinor    int64
	OrderID        string
	OrderNumber    string
	ReceiptEmail   string
	IdempotencyKey string
}

// PaymentIntent is the subset of Stripe's intent handed back to the storefront.
type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *stripe.Client
	environment string
	currency    string
}

// NewClient initializes Stripe once with the configured secret and env.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger, opts ...stripe.ClientOption) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.SecretKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		return nil, errCurrencyRequired
	}

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         stripe.NewClient(apiKey, opts...),
		environment: env,
		currency:    currency,
	}, nil
}

// CreatePaymentIntent creates an intent with automatic payment methods enabled.
// Stripe failures are returned as *stripe.Error so callers can surface Msg.
func (c *Client) CreatePaymentIntent(ctx context.Context, in PaymentIntentInput) (*PaymentIntent, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("stripe client not initialized")
	}
	if in.AmountMinor <= 0 {
		return nil, fmt.Errorf("amount must be positive, got %d", in.AmountMinor)
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(c.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_id": in.OrderID,
		},
	}
	if in.OrderNumber != "" {
		params.Metadata["order_number"] = in.OrderNumber
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := c.api.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		return nil, err
	}
	return &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// Currency reports the ISO currency used for every intent.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// ErrorMessage extracts Stripe's human readable message from err, if any.
func ErrorMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Msg != "" {
		return stripeErr.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
