package workflow

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"b2bmarket/internal/apperr"
)

var (
	hundred       = decimal.NewFromInt(100)
	flatRetention = decimal.RequireFromString("0.95")
)

// ParseCommission reads a commission percentage such as "5" or "2.5".
func ParseCommission(raw string) (decimal.Decimal, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return decimal.Zero, nil
	}
	pct, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, apperr.Validation(fmt.Sprintf("invalid commission %q", raw))
	}
	if pct.IsNegative() || pct.GreaterThanOrEqual(hundred) {
		return decimal.Zero, apperr.Validation("commission must be between 0 and 100")
	}
	return pct, nil
}

// StripMarkup removes a percentage markup: amount / (1 + pct/100).
func StripMarkup(amount float64, pct decimal.Decimal) float64 {
	divisor := decimal.NewFromInt(1).Add(pct.Div(hundred))
	return decimal.NewFromFloat(amount).Div(divisor).Round(2).InexactFloat64()
}

// AddMarkup applies a percentage markup: amount * (1 + pct/100).
func AddMarkup(amount float64, pct decimal.Decimal) float64 {
	factor := decimal.NewFromInt(1).Add(pct.Div(hundred))
	return decimal.NewFromFloat(amount).Mul(factor).Round(2).InexactFloat64()
}

// FlatDeduction keeps 95% of amount regardless of the configured commission.
func FlatDeduction(amount float64) float64 {
	return decimal.NewFromFloat(amount).Mul(flatRetention).Round(2).InexactFloat64()
}

// SumAmounts adds money values without float drift.
func SumAmounts(values ...float64) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(decimal.NewFromFloat(v))
	}
	return total
}

// AmountsMatch compares two money values with a one-cent tolerance.
func AmountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(decimal.RequireFromString("0.01"))
}
