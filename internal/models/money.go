package models

import (
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitExp is the number of fractional digits in one minor currency unit.
const MinorUnitExp = 2

// MaxAmount is the largest money value accepted as input: a delivery fee,
// unit price, line amount, items subtotal or payment.
var MaxAmount = decimal.New(1, 9)

var (
	minCents = decimal.NewFromInt(math.MinInt64)
	maxCents = decimal.NewFromInt(math.MaxInt64)
)

// IsMinorUnits reports whether d can be expressed exactly in minor units.
func IsMinorUnits(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(MinorUnitExp))
}

// InCentsRange reports whether d fits in int64 minor units.
func InCentsRange(d decimal.Decimal) bool {
	c := d.Shift(MinorUnitExp)
	return c.GreaterThanOrEqual(minCents) && c.LessThanOrEqual(maxCents)
}

// ToCents converts d to minor units. d must satisfy IsMinorUnits and
// InCentsRange; larger values do not round-trip.
func ToCents(d decimal.Decimal) int64 {
	return d.Shift(MinorUnitExp).IntPart()
}

// FromCents converts minor units back to a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -MinorUnitExp)
}
