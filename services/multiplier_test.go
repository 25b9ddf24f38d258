package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestBaselineMultiplier(t *testing.T) {
	want := []string{"1", "1.5", "2", "2.5"}
	for i, w := range want {
		assert.True(t, BaselineMultiplier(i+1).Equal(dec(w)), "series %d", i+1)
	}
	assert.True(t, BaselineMultiplier(0).Equal(dec("1")))
	assert.True(t, BaselineMultiplier(9).Equal(dec("2.5")))
}

func TestSellThroughRate(t *testing.T) {
	assert.True(t, SellThroughRate(9, 10).Equal(dec("0.9")))
	assert.True(t, SellThroughRate(1, 3).Equal(dec("0.3333")))
	assert.True(t, SellThroughRate(2, 3).Equal(dec("0.6667")))
	assert.True(t, SellThroughRate(0, 10).IsZero())
	assert.True(t, SellThroughRate(5, 0).IsZero(), "zero inventory is a zero rate")
	assert.True(t, SellThroughRate(12, 10).Equal(dec("1")), "clamped to 1")
	assert.True(t, SellThroughRate(-1, 10).IsZero())
}

func TestNextSeriesMultiplier(t *testing.T) {
	cases := []struct {
		series      int
		sold, total int64
		want        string
	}{
		{series: 1, sold: 99, total: 100, want: "1"},
		{series: 2, sold: 9, total: 10, want: "2"},
		{series: 2, sold: 8, total: 10, want: "2"},
		{series: 2, sold: 79999, total: 100000, want: "1.5"},
		{series: 2, sold: 7999, total: 10000, want: "1.5"},
		{series: 2, sold: 5, total: 10, want: "1.5"},
		{series: 2, sold: 49999, total: 100000, want: "1.25"},
		{series: 2, sold: 3, total: 10, want: "1.25"},
		{series: 3, sold: 3, total: 10, want: "1.75"},
		{series: 3, sold: 10, total: 10, want: "2.5"},
		{series: 3, sold: 2, total: 3, want: "2"},
		{series: 4, sold: 0, total: 0, want: "2.25"},
		{series: 4, sold: 85, total: 100, want: "3"},
	}
	for _, tc := range cases {
		got := NextSeriesMultiplier(tc.series, SellThrough{Sold: tc.sold, Total: tc.total})
		assert.True(t, got.Equal(dec(tc.want)), "series %d at %d/%d: got %s", tc.series, tc.sold, tc.total, got)
		assert.True(t, got.GreaterThanOrEqual(decimal.NewFromInt(1)))
	}
}

func TestSellThroughThresholdsUseExactRatio(t *testing.T) {
	nearHigh := SellThrough{Sold: 79999, Total: 100000}
	assert.True(t, nearHigh.Rate().Equal(dec("0.8")), "stored rate rounds up")
	assert.False(t, nearHigh.AtLeast(dec("0.8")))

	nearLow := SellThrough{Sold: 49999, Total: 100000}
	assert.True(t, nearLow.Rate().Equal(dec("0.5")))
	assert.False(t, nearLow.AtLeast(dec("0.5")))

	assert.True(t, SellThrough{Sold: 4, Total: 5}.AtLeast(dec("0.8")))
	assert.True(t, SellThrough{Sold: 12, Total: 10}.AtLeast(dec("1")), "oversold clamps to 1")
	assert.False(t, SellThrough{Sold: 3, Total: 0}.AtLeast(dec("0.5")), "no inventory is a zero rate")
}
