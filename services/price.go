package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PriceCalculator computes display prices. All intermediate math is exact
// decimal arithmetic; rounding happens once, in Round.
type PriceCalculator struct {
	tiers    *TierClassifier
	places   int32
	printer  *message.Printer
	currency string
}

// NewPriceCalculator binds a tier table to a currency and its minor-unit precision.
func NewPriceCalculator(tiers *TierClassifier, currencyCode string, places int32) (*PriceCalculator, error) {
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("unknown currency %q: %w", currencyCode, err)
	}
	return &PriceCalculator{
		tiers:    tiers,
		places:   places,
		printer:  message.NewPrinter(language.English),
		currency: unit.String(),
	}, nil
}

// ExactPrice is basePricePerPoint × score × tierMultiplier × seriesMultiplier, unrounded.
func ExactPrice(score int, tierMultiplier, seriesMultiplier, basePricePerPoint decimal.Decimal) decimal.Decimal {
	return basePricePerPoint.
		Mul(decimal.NewFromInt(int64(score))).
		Mul(tierMultiplier).
		Mul(seriesMultiplier)
}

// RoundHalfUp rounds a non-negative amount to the given number of places.
// decimal.Round rounds half away from zero, which is half-up for amounts >= 0.
func RoundHalfUp(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.Round(places)
}

// Price resolves the tier multiplier and returns the exact amount.
func (p *PriceCalculator) Price(score int, tier Tier, seriesMultiplier, basePricePerPoint decimal.Decimal) (decimal.Decimal, error) {
	tm, ok := p.tiers.Multiplier(tier)
	if !ok {
		return decimal.Zero, validationError("unknown_tier", "tier %q is not configured", tier)
	}
	if !seriesMultiplier.IsPositive() {
		return decimal.Zero, validationError("invalid_multiplier", "series multiplier must be > 0")
	}
	if !basePricePerPoint.IsPositive() {
		return decimal.Zero, validationError("invalid_base_price", "base price per point must be > 0")
	}
	return ExactPrice(score, tm, seriesMultiplier, basePricePerPoint), nil
}

// Round applies the display rounding for the configured currency.
func (p *PriceCalculator) Round(amount decimal.Decimal) decimal.Decimal {
	return RoundHalfUp(amount, p.places)
}

// Format renders a rounded amount for humans, e.g. "USD 1,250.00". The
// digits come from the decimal itself; the printer only adds grouping.
func (p *PriceCalculator) Format(amount decimal.Decimal) string {
	fixed := p.Round(amount).StringFixed(p.places)
	whole, frac, _ := strings.Cut(fixed, ".")
	sign := ""
	if strings.HasPrefix(whole, "-") {
		sign, whole = "-", whole[1:]
	}
	if n, err := strconv.ParseInt(whole, 10, 64); err == nil {
		whole = p.printer.Sprintf("%d", n)
	}
	if frac != "" {
		whole += "." + frac
	}
	return fmt.Sprintf("%s %s%s", p.currency, sign, whole)
}

// Currency returns the ISO code prices are quoted in.
func (p *PriceCalculator) Currency() string { return p.currency }

// Places returns the number of minor-unit digits used for rounding.
func (p *PriceCalculator) Places() int32 { return p.places }

// Tiers exposes the classifier the calculator was built with.
func (p *PriceCalculator) Tiers() *TierClassifier { return p.tiers }
