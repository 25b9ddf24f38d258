package services

import (
	"testing"

	"collectible-admin-system/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyDefaultTable(t *testing.T) {
	c := defaultClassifier(t)

	cases := []struct {
		score int
		tier  Tier
		mult  string
	}{
		{score: 0, tier: "STANDARD", mult: "1"},
		{score: 199, tier: "STANDARD", mult: "1"},
		{score: 200, tier: "ENHANCED", mult: "1.1"},
		{score: 299, tier: "ENHANCED", mult: "1.1"},
		{score: 300, tier: "PREMIUM", mult: "1.25"},
		{score: 449, tier: "PREMIUM", mult: "1.25"},
		{score: 450, tier: "ELITE", mult: "1.5"},
		{score: 500, tier: "ELITE", mult: "1.5"},
		{score: -40, tier: "STANDARD", mult: "1"},
		{score: 9000, tier: "ELITE", mult: "1.5"},
	}
	for _, tc := range cases {
		tier, mult := c.Classify(tc.score)
		assert.Equal(t, tc.tier, tier, "score %d", tc.score)
		assert.True(t, mult.Equal(dec(tc.mult)), "score %d: multiplier %s", tc.score, mult)
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	c := defaultClassifier(t)
	lo, hi := c.ScoreRange()

	_, prev := c.Classify(lo - 10)
	for s := lo - 10; s <= hi+10; s++ {
		_, m := c.Classify(s)
		require.False(t, m.LessThan(prev), "multiplier decreased at score %d", s)
		prev = m
	}
}

func TestBandsCoverRange(t *testing.T) {
	c := defaultClassifier(t)
	bands := c.Bands()
	lo, hi := c.ScoreRange()

	require.NotEmpty(t, bands)
	assert.Equal(t, lo, bands[0].MinScore)
	assert.Equal(t, hi, bands[len(bands)-1].MaxScore)
	for i := 1; i < len(bands); i++ {
		assert.Equal(t, bands[i-1].MaxScore+1, bands[i].MinScore)
	}
}

func TestNewTierClassifierRejectsBadTables(t *testing.T) {
	band := func(tier string, from int, mult string) config.TierBand {
		return config.TierBand{Tier: tier, MinScore: from, Multiplier: mult}
	}
	rng := config.ScoreRange{Min: 0, Max: 100}

	cases := map[string]config.TierTable{
		"empty range":       {ScoreRange: config.ScoreRange{Min: 10, Max: 10}, Bands: []config.TierBand{band("A", 10, "1")}},
		"no bands":          {ScoreRange: rng},
		"gap at start":      {ScoreRange: rng, Bands: []config.TierBand{band("A", 5, "1")}},
		"not increasing":    {ScoreRange: rng, Bands: []config.TierBand{band("A", 0, "1"), band("B", 50, "1.2"), band("C", 50, "1.3")}},
		"start beyond max":  {ScoreRange: rng, Bands: []config.TierBand{band("A", 0, "1"), band("B", 101, "1.2")}},
		"duplicate tier":    {ScoreRange: rng, Bands: []config.TierBand{band("A", 0, "1"), band("a", 50, "1.2")}},
		"zero multiplier":   {ScoreRange: rng, Bands: []config.TierBand{band("A", 0, "0")}},
		"decreasing factor": {ScoreRange: rng, Bands: []config.TierBand{band("A", 0, "1.5"), band("B", 50, "1.2")}},
		"bad number":        {ScoreRange: rng, Bands: []config.TierBand{band("A", 0, "x1")}},
	}
	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewTierClassifier(table)
			assert.Error(t, err)
		})
	}
}
