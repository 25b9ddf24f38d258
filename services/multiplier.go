package services

import (
	"github.com/shopspring/decimal"
)

// Baseline multipliers indexed by series number (1-based).
var seriesBaselines = []decimal.Decimal{
	decimal.RequireFromString("1.0"),
	decimal.RequireFromString("1.5"),
	decimal.RequireFromString("2.0"),
	decimal.RequireFromString("2.5"),
}

var (
	highSellThrough   = decimal.RequireFromString("0.8")
	lowSellThrough    = decimal.RequireFromString("0.5")
	highDemandBonus   = decimal.RequireFromString("0.5")
	lowDemandPenalty  = decimal.RequireFromString("0.25")
	multiplierFloor   = decimal.NewFromInt(1)
	sellThroughPlaces = int32(4)
)

// BaselineMultiplier returns the unadjusted multiplier for a series number.
func BaselineMultiplier(seriesNumber int) decimal.Decimal {
	if seriesNumber < 1 {
		return seriesBaselines[0]
	}
	if seriesNumber > len(seriesBaselines) {
		return seriesBaselines[len(seriesBaselines)-1]
	}
	return seriesBaselines[seriesNumber-1]
}

// SellThrough is the raw sold/total count pair of a completed series.
type SellThrough struct {
	Sold  int64
	Total int64
}

// exact returns the clamped ratio as a numerator/denominator pair; zero
// inventory counts as nothing sold.
func (s SellThrough) exact() (decimal.Decimal, decimal.Decimal) {
	if s.Total <= 0 || s.Sold <= 0 {
		return decimal.Zero, decimal.NewFromInt(1)
	}
	if s.Sold >= s.Total {
		return decimal.NewFromInt(1), decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(s.Sold), decimal.NewFromInt(s.Total)
}

// AtLeast reports sold/total >= threshold without dividing.
func (s SellThrough) AtLeast(threshold decimal.Decimal) bool {
	num, den := s.exact()
	return num.GreaterThanOrEqual(den.Mul(threshold))
}

// Rate is sold/total clamped to [0,1], rounded to four places for storage
// and display. Multiplier decisions never read it.
func (s SellThrough) Rate() decimal.Decimal {
	num, den := s.exact()
	return num.DivRound(den, sellThroughPlaces)
}

// SellThroughRate is the stored four-place rate for sold/total.
func SellThroughRate(sold, total int64) decimal.Decimal {
	return SellThrough{Sold: sold, Total: total}.Rate()
}

// NextSeriesMultiplier applies the sell-through rule to the baseline of
// the series being activated. Series 1 is always 1.0.
func NextSeriesMultiplier(nextSeriesNumber int, previous SellThrough) decimal.Decimal {
	baseline := BaselineMultiplier(nextSeriesNumber)
	if nextSeriesNumber <= 1 {
		return baseline
	}
	switch {
	case previous.AtLeast(highSellThrough):
		return baseline.Add(highDemandBonus)
	case !previous.AtLeast(lowSellThrough):
		return decimal.Max(multiplierFloor, baseline.Sub(lowDemandPenalty))
	default:
		return baseline
	}
}
