package services

import (
	"context"
	"time"

	"collectible-admin-system/models"

	"github.com/shopspring/decimal"
)

// PhaseProgress is a phase row plus its derived clock values.
type PhaseProgress struct {
	models.Phase
	TimeRemainingSeconds int64 `json:"time_remaining_seconds"`
}

// SeriesProgress is a series row with its phases expanded.
type SeriesProgress struct {
	models.Series
	Phases []PhaseProgress `json:"phases"`
}

// StatusReport is the admin dashboard view of the whole lifecycle.
type StatusReport struct {
	Initialized          bool             `json:"initialized"`
	Position             Position         `json:"position"`
	ActiveSeries         *SeriesProgress  `json:"active_series,omitempty"`
	ActivePhase          *PhaseProgress   `json:"active_phase,omitempty"`
	Paused               bool             `json:"paused"`
	TimeRemainingSeconds int64            `json:"time_remaining_seconds"`
	Deadline             *time.Time       `json:"deadline,omitempty"`
	Expired              bool             `json:"expired"`
	CurrentMultiplier    decimal.Decimal  `json:"current_multiplier"`
	BasePricePerPoint    decimal.Decimal  `json:"base_price_per_point"`
	LegacyGrowthPercent  decimal.Decimal  `json:"legacy_series_growth_percent"`
	Series               []SeriesProgress `json:"series"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

// Status reads a consistent snapshot and derives remaining times from it.
func (c *LifecycleController) Status(ctx context.Context) (*StatusReport, error) {
	snap, err := readSnapshot(ctx, c.repo)
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()

	report := &StatusReport{
		Initialized:       len(snap.Series) > 0,
		Position:          positionOf(snap.Pointer),
		CurrentMultiplier: currentMultiplier(snap),
		BasePricePerPoint: c.defaults.BasePricePerPoint,
		GeneratedAt:       now.UTC(),
	}
	if snap.Settings != nil {
		report.BasePricePerPoint = snap.Settings.BasePricePerPoint
		report.LegacyGrowthPercent = snap.Settings.SeriesGrowthPercent
	}

	for _, s := range snap.Series {
		sp := SeriesProgress{Series: s}
		sp.Series.Phases = nil
		for _, p := range s.Phases {
			sp.Phases = append(sp.Phases, PhaseProgress{
				Phase:                p,
				TimeRemainingSeconds: int64(TimeRemaining(&p, now) / time.Second),
			})
		}
		report.Series = append(report.Series, sp)
	}

	if !snap.Pointer.HasActive() {
		return report, nil
	}
	for i := range report.Series {
		if report.Series[i].Number != snap.Pointer.SeriesNumber {
			continue
		}
		report.ActiveSeries = &report.Series[i]
		for j := range report.Series[i].Phases {
			if report.Series[i].Phases[j].Number == snap.Pointer.PhaseNumber {
				report.ActivePhase = &report.Series[i].Phases[j]
			}
		}
	}
	if report.ActivePhase != nil {
		phase := &report.ActivePhase.Phase
		report.Paused = phase.IsPaused
		report.TimeRemainingSeconds = report.ActivePhase.TimeRemainingSeconds
		report.Deadline = c.phases.Deadline(phase)
		report.Expired = c.phases.Expired(phase)
	}
	return report, nil
}

// currentMultiplier is the series multiplier prices use right now. Before
// initialization it is 1; once exhausted the last series' value stays.
func currentMultiplier(snap *Snapshot) decimal.Decimal {
	if s := snap.ActiveSeries(); s != nil {
		return s.Multiplier
	}
	if last := snap.LastCompletedSeries(); last != nil {
		return last.Multiplier
	}
	return decimal.NewFromInt(1)
}
