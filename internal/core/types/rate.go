package types

import (
	"github.com/shopspring/decimal"
)

// Rate is a percentage rounded half-up to two decimal places.
type Rate = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// Percent returns num/den*100 rounded to 2 places, or zero when den is zero.
func Percent(num, den int64) Rate {
	if den == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(num).Mul(hundred).DivRound(decimal.NewFromInt(den), 2)
}
