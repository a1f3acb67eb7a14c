package model

import (
	"fmt"
	"math"

	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/shopspring/decimal"
)

// MinorUnitExponent is the number of fractional digits kept for every currency.
const MinorUnitExponent = 2

var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseAmount converts a decimal major-unit amount into exact minor units.
func ParseAmount(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(MinorUnitExponent)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %s has more than %d decimal places", apperrors.ErrInvalidInput, d.String(), MinorUnitExponent)
	}
	if shifted.Abs().GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: amount %s is out of range", apperrors.ErrInvalidInput, d.String())
	}
	return shifted.IntPart(), nil
}

func FormatAmount(minor int64) string {
	return decimal.New(minor, -MinorUnitExponent).StringFixed(MinorUnitExponent)
}
