package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMarkupDividesByOnePlusCommission(t *testing.T) {
	pct, err := ParseCommission("5")
	require.NoError(t, err)

	assert.Equal(t, 100.0, StripMarkup(105, pct))
	assert.Equal(t, 95.24, StripMarkup(100, pct))
	assert.Equal(t, 250.0, StripMarkup(250, decimal.Zero))
}

func TestFlatDeductionIgnoresCommission(t *testing.T) {
	assert.Equal(t, 95.0, FlatDeduction(100))
	assert.Equal(t, 1187.5, FlatDeduction(1250))
}

func TestAddMarkupInvertsStripMarkup(t *testing.T) {
	pct := decimal.NewFromInt(8)
	assert.Equal(t, 108.0, AddMarkup(100, pct))
	assert.Equal(t, 100.0, StripMarkup(AddMarkup(100, pct), pct))
}

func TestParseCommissionBounds(t *testing.T) {
	for _, raw := range []string{"-1", "100", "abc"} {
		_, err := ParseCommission(raw)
		assert.Error(t, err, raw)
	}
	pct, err := ParseCommission(" 2.5 ")
	require.NoError(t, err)
	assert.True(t, pct.Equal(decimal.RequireFromString("2.5")))
}

func TestAmountsMatchWithinOneCent(t *testing.T) {
	total := SumAmounts(0.1, 0.2)
	assert.True(t, AmountsMatch(total, decimal.RequireFromString("0.3")))
	assert.False(t, AmountsMatch(total, decimal.RequireFromString("0.32")))
}
