package pricing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/lacucina/restaurant-backend/pkg/enums"
)

// Scale is the number of decimal places persisted for money columns.
const Scale = 2

var (
	hundred  = decimal.NewFromInt(100)
	maxMinor = decimal.NewFromInt(math.MaxInt64)
)

// Discount describes the promotion attached to a catalog entry.
type Discount struct {
	Type   enums.DiscountType
	Value  *decimal.Decimal
	Active bool
}

// FinalPrice applies d to base. The result never leaves [0, base] and is
// rounded to cents with banker's rounding because it is snapshotted into
// order items.
func FinalPrice(base decimal.Decimal, d Discount) decimal.Decimal {
	if base.IsNegative() {
		base = decimal.Zero
	}
	if !d.Active || d.Value == nil || !d.Value.IsPositive() {
		return base.RoundBank(Scale)
	}

	var price decimal.Decimal
	switch d.Type {
	case enums.DiscountTypePercentage:
		price = base.Mul(decimal.NewFromInt(1).Sub(d.Value.Div(hundred)))
	case enums.DiscountTypeFixed:
		price = base.Sub(*d.Value)
	default:
		return base.RoundBank(Scale)
	}

	return clamp(price, base).RoundBank(Scale)
}

func clamp(price, base decimal.Decimal) decimal.Decimal {
	if price.IsNegative() {
		return decimal.Zero
	}
	if price.GreaterThan(base) {
		return base
	}
	return price
}

// LineTotal is unit × quantity at cent precision.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	if quantity <= 0 {
		return decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(int64(quantity))).RoundBank(Scale)
}

// ToMinorUnits converts a major-unit amount into integer cents for the
// payment gateways.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s is negative", amount.String())
	}
	minor := amount.Mul(hundred).RoundBank(0)
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("amount %s overflows minor units", amount.String())
	}
	return minor.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -Scale)
}
