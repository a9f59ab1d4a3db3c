package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// Wine is an entry of the wine list; it is priced like a menu product.
type Wine struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name           string              `gorm:"column:name;not null"`
	Region         *string             `gorm:"column:region"`
	Vintage        *int                `gorm:"column:vintage"`
	Price          decimal.Decimal     `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountType   *enums.DiscountType `gorm:"column:discount_type;type:text"`
	DiscountValue  *decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2)"`
	DiscountActive bool                `gorm:"column:discount_active;not null;default:false"`
	IsAvailable    bool                `gorm:"column:is_available;not null;default:true"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
