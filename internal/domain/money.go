package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money columns are NUMERIC(12,2).
const moneyScale = 2

var moneyLimit = decimal.New(1, 10)

// CheckMoney rejects amounts the money columns cannot store exactly: more
// than two decimal places, or ten or more integer digits.
func CheckMoney(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(moneyScale)) {
		return fmt.Errorf("%w: %s allows at most %d decimal places", ErrValidation, field, moneyScale)
	}
	if amount.Abs().GreaterThanOrEqual(moneyLimit) {
		return fmt.Errorf("%w: %s must be below %s", ErrValidation, field, moneyLimit.String())
	}
	return nil
}
