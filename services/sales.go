package services

import (
	"context"

	"collectible-admin-system/models"

	"github.com/shopspring/decimal"
)

// SalesTotals are the counters of the active pair after a ledger write.
type SalesTotals struct {
	Position Position      `json:"position"`
	Series   models.Series `json:"series"`
	Phase    models.Phase  `json:"phase"`
}

// RecordSale adds completed purchases to the active series and phase.
// Those counters feed the sell-through rate when the series closes.
func (c *LifecycleController) RecordSale(ctx context.Context, count int64, revenue decimal.Decimal) (*SalesTotals, error) {
	if count <= 0 {
		err := validationError("invalid_count", "sale count must be positive, got %d", count)
		c.record("record_sale", err)
		return nil, err
	}
	if revenue.IsNegative() {
		err := validationError("invalid_revenue", "revenue must not be negative")
		c.record("record_sale", err)
		return nil, err
	}

	totals, err := c.applyToActive(ctx, func(s *models.Series, p *models.Phase) {
		s.SoldItems += count
		s.Revenue = s.Revenue.Add(revenue)
		p.SoldItems += count
	})
	c.record("record_sale", err)
	if err != nil {
		return nil, err
	}

	e := c.event(ctx, EventSalesRecorded, c.clock.Now(), totals.Position)
	e.Data = map[string]interface{}{
		"count":        count,
		"revenue":      revenue.String(),
		"series_sold":  totals.Series.SoldItems,
		"series_total": totals.Series.TotalItems,
	}
	c.telemetry.Emit(e)
	return totals, nil
}

// RegisterInventory adds newly listed items to the active pair's totals.
func (c *LifecycleController) RegisterInventory(ctx context.Context, count int64) (*SalesTotals, error) {
	if count <= 0 {
		err := validationError("invalid_count", "inventory count must be positive, got %d", count)
		c.record("register_inventory", err)
		return nil, err
	}

	totals, err := c.applyToActive(ctx, func(s *models.Series, p *models.Phase) {
		s.TotalItems += count
		p.TotalItems += count
	})
	c.record("register_inventory", err)
	if err != nil {
		return nil, err
	}

	e := c.event(ctx, EventInventoryUpdated, c.clock.Now(), totals.Position)
	e.Data = map[string]interface{}{"count": count, "series_total": totals.Series.TotalItems}
	c.telemetry.Emit(e)
	return totals, nil
}

// applyToActive mutates the active pair under the pointer lock. The pointer
// version is left alone: counters do not change the lifecycle position.
func (c *LifecycleController) applyToActive(ctx context.Context, mutate func(*models.Series, *models.Phase)) (*SalesTotals, error) {
	var totals *SalesTotals
	err := c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		ptr, err := c.lockActive(tx, nil)
		if err != nil {
			return err
		}
		series, phase, err := loadActivePair(tx, ptr)
		if err != nil {
			return err
		}
		mutate(series, phase)
		if err := tx.SaveSeries(series); err != nil {
			return err
		}
		if err := tx.SavePhase(phase); err != nil {
			return err
		}
		totals = &SalesTotals{Position: positionOf(ptr), Series: *series, Phase: *phase}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}
