package checkout

import (
	"math"

	"ms-booking/internal/apperrors"

	"github.com/shopspring/decimal"
)

// minorPerMajor is the number of minor units (paise) in one rupee.
const minorPerMajor = 100

// ToMinorUnits converts a major-unit amount to the gateway's integer minor
// units, rounding half up: 199.999 -> 20000, 100 -> 10000. Amounts that are not
// positive and finite, or that round to zero, are rejected.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}
	minor := decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(minorPerMajor)).Round(0)
	if !minor.IsPositive() || minor.GreaterThan(decimal.NewFromInt(math.MaxInt64/2)) {
		return 0, apperrors.ErrInvalidAmount
	}
	return minor.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) float64 {
	return decimal.New(minor, 0).Div(decimal.NewFromInt(minorPerMajor)).InexactFloat64()
}
