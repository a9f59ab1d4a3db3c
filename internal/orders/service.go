package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lacucina/restaurant-backend/internal/catalog"
	"github.com/lacucina/restaurant-backend/internal/pricing"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
	"github.com/lacucina/restaurant-backend/pkg/logger"
)

const (
	maxCheckoutItems   = 50
	maxItemQuantity    = 99
	orderNumberRetries = 3
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type numberSource interface {
	Next() string
}

// Service converts carts into priced orders and exposes order reads.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// CheckoutItem is one cart line as submitted by the storefront.
type CheckoutItem struct {
	ProductID uuid.UUID
	Kind      enums.ProductKind
	Quantity  int
}

// CheckoutInput is the submitted cart plus customer details.
type CheckoutInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	DeliveryAddress *string
	Notes           *string
	PaymentMethod   enums.PaymentMethod
	Items           []CheckoutItem
}

// ServiceParams wires the checkout service dependencies.
type ServiceParams struct {
	Repo    Repository
	Catalog catalog.Repository
	Tx      txRunner
	Numbers numberSource
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
	numbers numberSource
	logg    *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	numbers := params.Numbers
	if numbers == nil {
		numbers = NewNumberGenerator()
	}
	return &service{
		repo:    params.Repo,
		catalog: params.Catalog,
		tx:      params.Tx,
		numbers: numbers,
		logg:    params.Logger,
	}, nil
}

func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	lines, err := normalizeCheckout(input)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:              uuid.New(),
		Status:          enums.OrderStatusPending,
		CustomerName:    strings.TrimSpace(input.CustomerName),
		CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
		DeliveryAddress: trimmedOrNil(input.DeliveryAddress),
		Notes:           trimmedOrNil(input.Notes),
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   enums.PaymentStatusUnpaid,
	}

	total := decimal.Zero
	for _, line := range lines {
		item, err := s.catalog.GetPriceable(ctx, line.Kind, line.ProductID)
		if err != nil {
			return nil, err
		}
		if !item.Available {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not available", item.Name).
				WithDetails(map[string]any{"productId": item.ID.String()})
		}
		unit := item.FinalPrice()
		order.Items = append(order.Items, models.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductID:   item.ID,
			ProductKind: item.Kind,
			Name:        item.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unit,
		})
		total = total.Add(pricing.LineTotal(unit, line.Quantity))
	}
	order.TotalAmount = total.RoundBank(pricing.Scale)
	if !order.TotalAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	if err := s.create(ctx, order); err != nil {
		return nil, err
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"order_number":   order.OrderNumber,
		"total":          order.TotalAmount.StringFixed(pricing.Scale),
		"customer_email": order.CustomerEmail,
	})
	s.logg.Info(ctx, "order created")
	return order, nil
}

// create inserts the order, drawing a new number when the random suffix collides.
func (s *service) create(ctx context.Context, order *models.Order) error {
	var lastErr error
	for attempt := 0; attempt < orderNumberRetries; attempt++ {
		order.OrderNumber = s.numbers.Next()
		lastErr = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.repo.WithTx(tx).Create(ctx, order)
		})
		if lastErr == nil {
			return nil
		}
		if !db.IsUniqueViolation(lastErr, "order_number") {
			break
		}
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, lastErr, "create order")
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	return order, nil
}

type lineKey struct {
	kind enums.ProductKind
	id   uuid.UUID
}

// normalizeCheckout validates the cart and merges repeated lines.
func normalizeCheckout(input CheckoutInput) ([]CheckoutItem, error) {
	if strings.TrimSpace(input.CustomerName) == "" || strings.TrimSpace(input.CustomerEmail) == "" || strings.TrimSpace(input.CustomerPhone) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name, email and phone are required")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", input.PaymentMethod)
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	if len(input.Items) > maxCheckoutItems {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "cart exceeds %d lines", maxCheckoutItems)
	}

	index := map[lineKey]int{}
	lines := make([]CheckoutItem, 0, len(input.Items))
	for i, item := range input.Items {
		if !item.Kind.IsValid() {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d]: invalid kind %q", i, item.Kind)
		}
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d]: product id is required", i)
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "items[%d]: quantity must be positive", i)
		}
		key := lineKey{kind: item.Kind, id: item.ProductID}
		if pos, ok := index[key]; ok {
			lines[pos].Quantity += item.Quantity
		} else {
			index[key] = len(lines)
			lines = append(lines, item)
		}
	}
	for _, line := range lines {
		if line.Quantity > maxItemQuantity {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for %s exceeds %d", line.ProductID, maxItemQuantity)
		}
	}
	return lines, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

