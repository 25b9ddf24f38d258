package services

import (
	"context"
	"errors"
	"strings"

	"collectible-admin-system/models"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Quote is a fully resolved display price.
type Quote struct {
	ItemID            string          `json:"item_id,omitempty"`
	Category          string          `json:"category,omitempty"`
	Score             int             `json:"score"`
	ClassifiedScore   int             `json:"classified_score"`
	Tier              Tier            `json:"tier"`
	TierMultiplier    decimal.Decimal `json:"tier_multiplier"`
	SeriesNumber      int             `json:"series_number"`
	SeriesMultiplier  decimal.Decimal `json:"series_multiplier"`
	BasePricePerPoint decimal.Decimal `json:"base_price_per_point"`
	ExactAmount       decimal.Decimal `json:"exact_amount"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Display           string          `json:"display"`
}

// SettingsUpdate changes pricing knobs. Nil fields are left untouched.
type SettingsUpdate struct {
	BasePricePerPoint *decimal.Decimal         `json:"base_price_per_point"`
	CategoryOverrides models.CategoryOverrides `json:"category_overrides"`
}

// PricingService quotes prices from the live lifecycle state.
type PricingService struct {
	DB          *gorm.DB
	Repo        LifecycleRepository
	Calc        *PriceCalculator
	DefaultBase decimal.Decimal
}

func NewPricingService(db *gorm.DB, repo LifecycleRepository, calc *PriceCalculator, defaultBase decimal.Decimal) *PricingService {
	return &PricingService{DB: db, Repo: repo, Calc: calc, DefaultBase: defaultBase}
}

// Quote prices a score for a category.
func (s *PricingService) Quote(ctx context.Context, score int, category string) (*Quote, error) {
	snap, err := readSnapshot(ctx, s.Repo)
	if err != nil {
		return nil, err
	}
	return s.quote(snap, score, category)
}

// QuoteItem prices a mirrored inventory item.
func (s *PricingService) QuoteItem(ctx context.Context, itemID string) (*Quote, error) {
	var item models.Item
	err := s.DB.WithContext(ctx).Where("id = ?", itemID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("item_not_found", "item %q is not in the inventory mirror", itemID)
	}
	if err != nil {
		return nil, persistenceError("load item", err)
	}

	q, err := s.Quote(ctx, item.Score, item.Category)
	if err != nil {
		return nil, err
	}
	q.ItemID = item.ID
	return q, nil
}

func (s *PricingService) quote(snap *Snapshot, score int, category string) (*Quote, error) {
	tiers := s.Calc.Tiers()
	// prices use the clamped score; Quote.Score keeps the caller's value
	classified := tiers.Clamp(score)
	tier, tierMult := tiers.Classify(classified)
	seriesMult := currentMultiplier(snap)
	base := s.basePrice(snap.Settings, category)

	exact, err := s.Calc.Price(classified, tier, seriesMult, base)
	if err != nil {
		return nil, err
	}
	amount := s.Calc.Round(exact)

	q := &Quote{
		Category:          category,
		Score:             score,
		ClassifiedScore:   classified,
		Tier:              tier,
		TierMultiplier:    tierMult,
		SeriesMultiplier:  seriesMult,
		BasePricePerPoint: base,
		ExactAmount:       exact,
		Amount:            amount,
		Currency:          s.Calc.Currency(),
		Display:           s.Calc.Format(amount),
	}
	if active := snap.ActiveSeries(); active != nil {
		q.SeriesNumber = active.Number
	} else if last := snap.LastCompletedSeries(); last != nil {
		q.SeriesNumber = last.Number
	}
	return q, nil
}

// basePrice is the single place the per-point base is resolved: a category
// override wins, then the stored setting, then the configured default.
func (s *PricingService) basePrice(settings *models.LifecycleSettings, category string) decimal.Decimal {
	if settings == nil {
		return s.DefaultBase
	}
	if o, ok := settings.Overrides()[normalizeCategory(category)]; ok && o.BasePricePerPoint.IsPositive() {
		return o.BasePricePerPoint
	}
	if settings.BasePricePerPoint.IsPositive() {
		return settings.BasePricePerPoint
	}
	return s.DefaultBase
}

// Settings returns the stored pricing settings, or the defaults when none exist yet.
func (s *PricingService) Settings(ctx context.Context) (*models.LifecycleSettings, error) {
	snap, err := readSnapshot(ctx, s.Repo)
	if err != nil {
		return nil, err
	}
	if snap.Settings != nil {
		return snap.Settings, nil
	}
	return &models.LifecycleSettings{BasePricePerPoint: s.DefaultBase}, nil
}

// UpdateSettings validates and stores pricing knobs. A non-nil override map
// replaces the stored one.
func (s *PricingService) UpdateSettings(ctx context.Context, upd SettingsUpdate) (*models.LifecycleSettings, error) {
	if upd.BasePricePerPoint != nil && !upd.BasePricePerPoint.IsPositive() {
		return nil, validationError("invalid_base_price", "base price per point must be > 0")
	}
	var overrides models.CategoryOverrides
	if upd.CategoryOverrides != nil {
		overrides = make(models.CategoryOverrides, len(upd.CategoryOverrides))
		for cat, o := range upd.CategoryOverrides {
			key := normalizeCategory(cat)
			if key == "" {
				return nil, validationError("invalid_category", "category override keys must not be empty")
			}
			if !o.BasePricePerPoint.IsPositive() {
				return nil, validationError("invalid_base_price", "override for %q must have a base price > 0", cat)
			}
			overrides[key] = o
		}
	}

	var saved *models.LifecycleSettings
	err := s.Repo.Transaction(ctx, func(tx LifecycleTx) error {
		settings, err := tx.Settings()
		if err != nil {
			return err
		}
		if settings == nil {
			settings = &models.LifecycleSettings{BasePricePerPoint: s.DefaultBase}
		}
		if upd.BasePricePerPoint != nil {
			settings.BasePricePerPoint = *upd.BasePricePerPoint
		}
		if overrides != nil {
			settings.CategoryOverrides = datatypes.NewJSONType(overrides)
		}
		if err := tx.SaveSettings(settings); err != nil {
			return err
		}
		saved = settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
