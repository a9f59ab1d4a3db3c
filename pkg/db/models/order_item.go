package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// OrderItem snapshots a catalog entry at the price charged when the order was placed.
type OrderItem struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductKind enums.ProductKind `gorm:"column:product_kind;type:text;not null"`
	Name        string            `gorm:"column:name;not null"`
	Quantity    int               `gorm:"column:quantity;not null"`
	UnitPrice   decimal.Decimal   `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
