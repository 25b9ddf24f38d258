package services

import (
	"fmt"
	"sort"
	"strings"

	"collectible-admin-system/config"

	"github.com/shopspring/decimal"
)

// Tier is a badge tier code such as "PREMIUM".
type Tier string

// TierBand covers [MinScore, next band's MinScore).
type TierBand struct {
	Tier       Tier            `json:"tier"`
	MinScore   int             `json:"min_score"`
	MaxScore   int             `json:"max_score"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// TierClassifier maps a quality score to its badge tier and price factor.
// Scores outside the configured range are clamped to the nearest band.
type TierClassifier struct {
	minScore int
	maxScore int
	bands    []TierBand
	byTier   map[Tier]decimal.Decimal
}

// NewTierClassifier validates a tier table: the range must be non-empty,
// the first band must start at the range minimum, band starts must be
// strictly increasing and inside the range, tier codes unique and
// multipliers positive and non-decreasing.
func NewTierClassifier(table config.TierTable) (*TierClassifier, error) {
	r := table.ScoreRange
	if r.Max <= r.Min {
		return nil, fmt.Errorf("tier table: score_range.max (%d) must exceed min (%d)", r.Max, r.Min)
	}
	if len(table.Bands) == 0 {
		return nil, fmt.Errorf("tier table: at least one band is required")
	}

	c := &TierClassifier{
		minScore: r.Min,
		maxScore: r.Max,
		bands:    make([]TierBand, 0, len(table.Bands)),
		byTier:   make(map[Tier]decimal.Decimal, len(table.Bands)),
	}

	var errs []string
	prevMin := r.Min
	prevMult := decimal.Zero
	for i, raw := range table.Bands {
		code := Tier(strings.ToUpper(strings.TrimSpace(raw.Tier)))
		if code == "" {
			errs = append(errs, fmt.Sprintf("bands[%d].tier is required", i))
		}
		if _, dup := c.byTier[code]; dup {
			errs = append(errs, fmt.Sprintf("bands[%d].tier %q is duplicated", i, code))
		}
		if i == 0 && raw.MinScore != r.Min {
			errs = append(errs, fmt.Sprintf("bands[0].min_score must equal score_range.min (%d)", r.Min))
		}
		if i > 0 && raw.MinScore <= prevMin {
			errs = append(errs, fmt.Sprintf("bands[%d].min_score must be strictly greater than %d", i, prevMin))
		}
		if raw.MinScore > r.Max {
			errs = append(errs, fmt.Sprintf("bands[%d].min_score exceeds score_range.max", i))
		}
		mult, err := decimal.NewFromString(strings.TrimSpace(raw.Multiplier))
		if err != nil {
			errs = append(errs, fmt.Sprintf("bands[%d].multiplier %q is not a number", i, raw.Multiplier))
			mult = prevMult
		} else if !mult.IsPositive() {
			errs = append(errs, fmt.Sprintf("bands[%d].multiplier must be > 0", i))
		} else if mult.LessThan(prevMult) {
			errs = append(errs, fmt.Sprintf("bands[%d].multiplier must not decrease", i))
		}

		c.bands = append(c.bands, TierBand{Tier: code, MinScore: raw.MinScore, Multiplier: mult})
		c.byTier[code] = mult
		prevMin = raw.MinScore
		prevMult = mult
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("tier table: %s", strings.Join(errs, "; "))
	}

	for i := range c.bands {
		if i+1 < len(c.bands) {
			c.bands[i].MaxScore = c.bands[i+1].MinScore - 1
		} else {
			c.bands[i].MaxScore = r.Max
		}
	}
	return c, nil
}

// Classify returns the tier and its multiplier. Never fails; out-of-range
// scores land in the first or last band.
func (c *TierClassifier) Classify(score int) (Tier, decimal.Decimal) {
	score = c.Clamp(score)
	i := sort.Search(len(c.bands), func(i int) bool { return c.bands[i].MinScore > score }) - 1
	if i < 0 {
		i = 0
	}
	b := c.bands[i]
	return b.Tier, b.Multiplier
}

// Clamp pins a score into the configured range.
func (c *TierClassifier) Clamp(score int) int {
	if score < c.minScore {
		return c.minScore
	}
	if score > c.maxScore {
		return c.maxScore
	}
	return score
}

// Multiplier looks up a tier's factor.
func (c *TierClassifier) Multiplier(t Tier) (decimal.Decimal, bool) {
	m, ok := c.byTier[t]
	return m, ok
}

// Bands returns a copy of the validated bands, lowest first.
func (c *TierClassifier) Bands() []TierBand {
	out := make([]TierBand, len(c.bands))
	copy(out, c.bands)
	return out
}

// ScoreRange returns the inclusive score bounds.
func (c *TierClassifier) ScoreRange() (int, int) {
	return c.minScore, c.maxScore
}
