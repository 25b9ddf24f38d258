package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T) *PriceCalculator {
	t.Helper()
	calc, err := NewPriceCalculator(defaultClassifier(t), "USD", 2)
	require.NoError(t, err)
	return calc
}

func TestPriceIsExactProduct(t *testing.T) {
	calc := newTestCalculator(t)

	amount, err := calc.Price(400, "PREMIUM", dec("1.0"), dec("0.10"))
	require.NoError(t, err)
	assert.True(t, amount.Equal(dec("50")), "got %s", amount)
	assert.Equal(t, "50.00", calc.Round(amount).StringFixed(2))
	assert.Equal(t, "USD 50.00", calc.Format(amount))
}

func TestPriceScalesWithSeriesMultiplier(t *testing.T) {
	calc := newTestCalculator(t)

	base, err := calc.Price(250, "ENHANCED", dec("1"), dec("0.10"))
	require.NoError(t, err)
	boosted, err := calc.Price(250, "ENHANCED", dec("2.5"), dec("0.10"))
	require.NoError(t, err)
	assert.True(t, boosted.Equal(base.Mul(dec("2.5"))))
	assert.True(t, base.Equal(dec("27.5")))
}

func TestPriceValidation(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.Price(100, "MYTHIC", dec("1"), dec("0.10"))
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "unknown_tier", CodeOf(err))

	_, err = calc.Price(100, "STANDARD", dec("0"), dec("0.10"))
	assert.Equal(t, "invalid_multiplier", CodeOf(err))

	_, err = calc.Price(100, "STANDARD", dec("1"), dec("-0.10"))
	assert.Equal(t, "invalid_base_price", CodeOf(err))
}

func TestRoundHalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"2.675":   "2.68",
		"0.125":   "0.13",
		"10":      "10",
		"33.3333": "33.33",
	}
	for in, want := range cases {
		assert.True(t, RoundHalfUp(dec(in), 2).Equal(dec(want)), "%s rounds to %s", in, want)
	}
}

func TestFormatUsesCurrencyAndGrouping(t *testing.T) {
	calc := newTestCalculator(t)
	assert.Equal(t, "USD 1,234.57", calc.Format(dec("1234.5678")))

	jpy, err := NewPriceCalculator(defaultClassifier(t), "JPY", 0)
	require.NoError(t, err)
	assert.Equal(t, "JPY 1,235", jpy.Format(dec("1234.5")))
}

func TestFormatKeepsEveryDigit(t *testing.T) {
	calc := newTestCalculator(t)

	// float64 cannot hold this amount exactly
	amount := dec("98765432109876.54")
	assert.Equal(t, "USD 98,765,432,109,876.54", calc.Format(amount))
	assert.Equal(t, calc.Round(amount).StringFixed(2), "98765432109876.54")
	assert.Equal(t, "USD 0.05", calc.Format(dec("0.045")))
}

func TestNewPriceCalculatorRejectsUnknownCurrency(t *testing.T) {
	_, err := NewPriceCalculator(defaultClassifier(t), "ZZZ", 2)
	assert.Error(t, err)
}
