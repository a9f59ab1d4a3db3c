package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/lacucina/restaurant-backend/internal/pricing"
	"github.com/lacucina/restaurant-backend/pkg/db"
	"github.com/lacucina/restaurant-backend/pkg/db/models"
	"github.com/lacucina/restaurant-backend/pkg/enums"
	pkgerrors "github.com/lacucina/restaurant-backend/pkg/errors"
)

// Priceable is the pricing view of a dish or a wine.
type Priceable struct {
	ID        uuid.UUID
	Kind      enums.ProductKind
	Name      string
	BasePrice decimal.Decimal
	Discount  pricing.Discount
	Available bool
}

// FinalPrice returns the unit price a customer is charged today.
func (p Priceable) FinalPrice() decimal.Decimal {
	return pricing.FinalPrice(p.BasePrice, p.Discount)
}

// Repository reads priceable catalog entries.
type Repository interface {
	GetPriceable(ctx context.Context, kind enums.ProductKind, id uuid.UUID) (*Priceable, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetPriceable(ctx context.Context, kind enums.ProductKind, id uuid.UUID) (*Priceable, error) {
	switch kind {
	case enums.ProductKindDish:
		var product models.Product
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
			return nil, lookupError(err, kind, id)
		}
		return &Priceable{
			ID:        product.ID,
			Kind:      kind,
			Name:      product.Name,
			BasePrice: product.Price,
			Discount:  discountOf(product.DiscountType, product.DiscountValue, product.DiscountActive),
			Available: product.IsAvailable,
		}, nil
	case enums.ProductKindWine:
		var wine models.Wine
		if err := r.db.WithContext(ctx).Where("id = ?", id).First(&wine).Error; err != nil {
			return nil, lookupError(err, kind, id)
		}
		return &Priceable{
			ID:        wine.ID,
			Kind:      kind,
			Name:      wine.Name,
			BasePrice: wine.Price,
			Discount:  discountOf(wine.DiscountType, wine.DiscountValue, wine.DiscountActive),
			Available: wine.IsAvailable,
		}, nil
	default:
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown product kind %q", kind)
	}
}

func discountOf(typ *enums.DiscountType, value *decimal.Decimal, active bool) pricing.Discount {
	d := pricing.Discount{Value: value, Active: active}
	if typ != nil {
		d.Type = *typ
	}
	return d
}

func lookupError(err error, kind enums.ProductKind, id uuid.UUID) error {
	if db.IsNotFound(err) {
		return pkgerrors.Newf(pkgerrors.CodeNotFound, "%s %s not found", kind, id)
	}
	return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load catalog entry")
}
