package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// LifecycleSettingsID is the primary key of the single settings row.
const LifecycleSettingsID = 1

// CategoryOverride adjusts pricing for one inventory category.
type CategoryOverride struct {
	BasePricePerPoint decimal.Decimal `json:"base_price_per_point"`
}

// CategoryOverrides is keyed by inventory category.
type CategoryOverrides map[string]CategoryOverride

// LifecycleSettings carries the admin-tunable pricing knobs.
type LifecycleSettings struct {
	ID                uint            `json:"-" gorm:"primaryKey"`
	BasePricePerPoint decimal.Decimal `json:"base_price_per_point" gorm:"type:numeric(18,6);not null"`
	// SeriesGrowthPercent belongs to the retired single-ladder pricing mode.
	// It is stored and reported, never used for a price.
	SeriesGrowthPercent decimal.Decimal                      `json:"legacy_series_growth_percent" gorm:"type:numeric(6,2);not null;default:0"`
	CategoryOverrides   datatypes.JSONType[CategoryOverrides] `json:"category_overrides"`
	UpdatedAt           time.Time                            `json:"updated_at" gorm:"autoUpdateTime"`
}

// Overrides returns the typed override map, never nil.
func (s *LifecycleSettings) Overrides() CategoryOverrides {
	o := s.CategoryOverrides.Data()
	if o == nil {
		return CategoryOverrides{}
	}
	return o
}
