package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// Order is a customer order placed through the storefront checkout.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string               `gorm:"column:order_number;not null;uniqueIndex"`
	Status          enums.OrderStatus    `gorm:"column:status;type:text;not null;default:'pending'"`
	TotalAmount     decimal.Decimal      `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CustomerName    string               `gorm:"column:customer_name;not null"`
	CustomerEmail   string               `gorm:"column:customer_email;not null"`
	CustomerPhone   string               `gorm:"column:customer_phone;not null"`
	DeliveryAddress *string              `gorm:"column:delivery_address"`
	Notes           *string              `gorm:"column:notes"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:text;not null;default:'cash'"`
	PaymentStatus   enums.PaymentStatus  `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	GatewayOrderID  *string              `gorm:"column:gateway_order_id;uniqueIndex"`
	GatewayAttempt  int                  `gorm:"column:gateway_attempt;not null;default:0"`
	GatewayStatus   *enums.GatewayStatus `gorm:"column:gateway_status"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// HasGatewayReference reports whether the acquiring gateway registration was persisted.
func (o *Order) HasGatewayReference() bool {
	return o != nil && o.GatewayOrderID != nil && *o.GatewayOrderID != ""
}
