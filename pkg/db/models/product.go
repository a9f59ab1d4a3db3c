package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// Product is a menu dish managed from the admin dashboard.
type Product struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID     *uuid.UUID          `gorm:"column:category_id;type:uuid"`
	Name           string              `gorm:"column:name;not null"`
	Description    *string             `gorm:"column:description"`
	Price          decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountType   *enums.DiscountType `gorm:"column:discount_type;type:text"`
	DiscountValue  *decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2)"`
	DiscountActive bool                `gorm:"column:discount_active;not null;default:false"`
	IsAvailable    bool                `gorm:"column:is_available;not null;default:true"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
