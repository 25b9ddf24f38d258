package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TierTable is the on-disk shape of the badge tier configuration.
//
//	score_range: {min: 0, max: 500}
//	bands:
//	  - {tier: STANDARD, min_score: 0, multiplier: "1.00"}
//	  - {tier: PREMIUM, min_score: 300, multiplier: "1.25"}
type TierTable struct {
	ScoreRange ScoreRange `yaml:"score_range" json:"score_range"`
	Bands      []TierBand `yaml:"bands" json:"bands"`
}

type ScoreRange struct {
	Min int `yaml:"min" json:"min"`
	Max int `yaml:"max" json:"max"`
}

// TierBand starts at MinScore and runs up to the next band's MinScore.
// Multiplier is kept as a string so it parses as an exact decimal.
type TierBand struct {
	Tier       string `yaml:"tier" json:"tier"`
	MinScore   int    `yaml:"min_score" json:"min_score"`
	Multiplier string `yaml:"multiplier" json:"multiplier"`
}

// DefaultTierTable is used when TIER_TABLE_PATH is unset.
func DefaultTierTable() TierTable {
	return TierTable{
		ScoreRange: ScoreRange{Min: 0, Max: 500},
		Bands: []TierBand{
			{Tier: "STANDARD", MinScore: 0, Multiplier: "1.00"},
			{Tier: "ENHANCED", MinScore: 200, Multiplier: "1.10"},
			{Tier: "PREMIUM", MinScore: 300, Multiplier: "1.25"},
			{Tier: "ELITE", MinScore: 450, Multiplier: "1.50"},
		},
	}
}

// LoadTierTable reads a YAML tier table. An empty path yields the default table.
// Semantic validation happens where the table is turned into a classifier.
func LoadTierTable(path string) (TierTable, error) {
	if path == "" {
		return DefaultTierTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TierTable{}, fmt.Errorf("tier table %s does not exist", path)
		}
		return TierTable{}, fmt.Errorf("read tier table: %w", err)
	}
	var table TierTable
	if err := yaml.Unmarshal(b, &table); err != nil {
		return TierTable{}, fmt.Errorf("parse tier table: %w", err)
	}
	return table, nil
}
