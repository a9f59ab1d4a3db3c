package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// Repository is the order store used by checkout, payments and retention.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)

	// UpdateStatusIfPending moves a pending order to a terminal status. It
	// reports false when the order was no longer pending.
	UpdateStatusIfPending(ctx context.Context, id uuid.UUID, update StatusUpdate) (bool, error)
	// UpdatePaymentIfPending records the chosen gateway on a pending order.
	UpdatePaymentIfPending(ctx context.Context, id uuid.UUID, method enums.PaymentMethod, status enums.PaymentStatus) (bool, error)
	// NextGatewayAttempt increments and returns the registration attempt
	// counter of an order that has no gateway reference yet.
	NextGatewayAttempt(ctx context.Context, id uuid.UUID) (int, error)
	// SetGatewayOrderID stores the gateway reference once. It reports false
	// when a reference was already present.
	SetGatewayOrderID(ctx context.Context, id uuid.UUID, gatewayOrderID string) (bool, error)

	ListPendingWithGatewayReference(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.Order, error)
	CountCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	ListCreatedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	// DeleteCreatedBefore removes matching orders and their items and returns
	// the number of orders removed. Callers run it inside a transaction.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// StatusUpdate is the terminal write performed by reconciliation.
type StatusUpdate struct {
	Status        enums.OrderStatus
	PaymentStatus enums.PaymentStatus
	GatewayStatus *enums.GatewayStatus
}
