package services

import (
	"context"
	"math"
	"time"

	"collectible-admin-system/metrics"
	"collectible-admin-system/models"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
)

const secondsPerDay = 24 * 60 * 60

var maxGrowthPercent = decimal.NewFromInt(100)

// LifecycleDefaults seed a fresh lifecycle.
type LifecycleDefaults struct {
	PhaseDuration     time.Duration
	BasePricePerPoint decimal.Decimal
}

// Position identifies the active pair together with the pointer version
// observed when it was read.
type Position struct {
	SeriesNumber int   `json:"series"`
	PhaseNumber  int   `json:"phase"`
	Version      int64 `json:"version"`
	Exhausted    bool  `json:"exhausted"`
}

// AdvanceResult describes one committed advance.
type AdvanceResult struct {
	From            Position       `json:"from"`
	To              Position       `json:"to"`
	CompletedPhase  models.Phase   `json:"completed_phase"`
	CompletedSeries *models.Series `json:"completed_series,omitempty"`
	ActiveSeries    *models.Series `json:"active_series,omitempty"`
	ActivePhase     *models.Phase  `json:"active_phase,omitempty"`
	SeriesRolled    bool           `json:"series_rolled"`
	Exhausted       bool           `json:"exhausted"`
}

// PhaseState is returned by pause/resume.
type PhaseState struct {
	Position             Position     `json:"position"`
	Phase                models.Phase `json:"phase"`
	TimeRemainingSeconds int64        `json:"time_remaining_seconds"`
}

// LifecycleController owns every transition of the Series/Phase state
// machine. Each mutating call is one repository transaction that re-reads
// the pointer, validates, writes all affected rows and swaps the pointer.
type LifecycleController struct {
	repo      LifecycleRepository
	clock     clockwork.Clock
	phases    PhaseClock
	telemetry Telemetry
	defaults  LifecycleDefaults
}

type ControllerOption func(*LifecycleController)

func WithClock(clock clockwork.Clock) ControllerOption {
	return func(c *LifecycleController) { c.clock = clock }
}

func WithTelemetry(t Telemetry) ControllerOption {
	return func(c *LifecycleController) { c.telemetry = t }
}

func NewLifecycleController(repo LifecycleRepository, defaults LifecycleDefaults, opts ...ControllerOption) *LifecycleController {
	c := &LifecycleController{
		repo:      repo,
		clock:     clockwork.NewRealClock(),
		telemetry: noopTelemetry{},
		defaults:  defaults,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.phases = NewPhaseClock(c.clock)
	return c
}

// Clock exposes the time source shared with the phase clock.
func (c *LifecycleController) Clock() clockwork.Clock { return c.clock }

// PhaseClock exposes the read-only remaining-time view.
func (c *LifecycleController) PhaseClock() PhaseClock { return c.phases }

type actorKey struct{}

// WithActor tags a context with the admin performing an operation.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func actorFrom(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}

// Initialize seeds the roster and activates Series 1 / Phase 1. Calling it
// again is a no-op that reports the current position.
func (c *LifecycleController) Initialize(ctx context.Context) (Position, error) {
	var pos Position
	created := false
	now := c.clock.Now()

	err := c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		ptr, err := tx.LockPointer()
		if err != nil {
			return err
		}
		if ptr != nil {
			pos = positionOf(ptr)
			return nil
		}

		if err := tx.CreateRoster(c.buildRoster(now)); err != nil {
			return err
		}
		if err := c.ensureSettings(tx); err != nil {
			return err
		}
		ptr = &models.LifecyclePointer{SeriesNumber: 1, PhaseNumber: 1, Version: 1}
		if err := tx.CreatePointer(ptr); err != nil {
			return err
		}
		pos = positionOf(ptr)
		created = true
		return nil
	})
	c.record("initialize", err)
	if err != nil {
		return Position{}, err
	}

	if created {
		metrics.SetPosition(1, 1, false)
		e := c.event(ctx, EventInitialized, now, pos)
		e.Data = map[string]interface{}{
			"series":            models.SeriesCount,
			"phases_per_series": models.PhasesPerSeries,
			"phase_duration_s":  int64(c.defaults.PhaseDuration / time.Second),
		}
		c.telemetry.Emit(e)
	}
	return pos, nil
}

func (c *LifecycleController) buildRoster(now time.Time) []models.Series {
	durationSeconds := int64(c.defaults.PhaseDuration / time.Second)
	roster := make([]models.Series, 0, models.SeriesCount)
	for s := 1; s <= models.SeriesCount; s++ {
		// a pending series has no multiplier until it is activated
		series := models.Series{
			Number:     s,
			Status:     models.StatusPending,
			Multiplier: decimal.Zero,
			Revenue:    decimal.Zero,
		}
		for p := 1; p <= models.PhasesPerSeries; p++ {
			series.Phases = append(series.Phases, models.Phase{
				SeriesNumber:    s,
				Number:          p,
				Status:          models.StatusPending,
				DurationSeconds: durationSeconds,
			})
		}
		roster = append(roster, series)
	}

	first := &roster[0]
	first.Status = models.StatusActive
	first.Multiplier = NextSeriesMultiplier(1, SellThrough{})
	first.StartedAt = &now
	activatePhase(&first.Phases[0], now)
	return roster
}

func (c *LifecycleController) ensureSettings(tx LifecycleTx) error {
	settings, err := tx.Settings()
	if err != nil || settings != nil {
		return err
	}
	return tx.SaveSettings(&models.LifecycleSettings{
		BasePricePerPoint:   c.defaults.BasePricePerPoint,
		SeriesGrowthPercent: decimal.Zero,
	})
}

// Current returns the pointer position without touching the roster.
func (c *LifecycleController) Current(ctx context.Context) (Position, error) {
	snap, err := readSnapshot(ctx, c.repo)
	if err != nil {
		return Position{}, err
	}
	return positionOf(snap.Pointer), nil
}

// Advance moves to the next phase, or closes the series and opens the next.
// It commits only against the pointer version it observed, so of two
// overlapping calls one fails with ErrStaleVersion instead of skipping a phase.
func (c *LifecycleController) Advance(ctx context.Context) (*AdvanceResult, error) {
	pos, err := c.Current(ctx)
	if err != nil {
		c.record("advance", err)
		return nil, err
	}
	return c.advance(ctx, &pos.Version)
}

// AdvanceFrom advances only if the pointer still has the expected version.
func (c *LifecycleController) AdvanceFrom(ctx context.Context, expectedVersion int64) (*AdvanceResult, error) {
	return c.advance(ctx, &expectedVersion)
}

func (c *LifecycleController) advance(ctx context.Context, expected *int64) (*AdvanceResult, error) {
	var res *AdvanceResult
	now := c.clock.Now()

	err := c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		ptr, err := c.lockActive(tx, expected)
		if err != nil {
			return err
		}
		series, phase, err := loadActivePair(tx, ptr)
		if err != nil {
			return err
		}

		from := positionOf(ptr)
		settlePause(phase, now)
		phase.Status = models.StatusCompleted
		phase.EndedAt = &now
		if err := tx.SavePhase(phase); err != nil {
			return err
		}
		res = &AdvanceResult{From: from, CompletedPhase: *phase}

		if phase.Number < models.PhasesPerSeries {
			next, err := pendingPhase(tx, series.Number, phase.Number+1)
			if err != nil {
				return err
			}
			activatePhase(next, now)
			if err := tx.SavePhase(next); err != nil {
				return err
			}
			ptr.PhaseNumber = next.Number
			if err := tx.CompareAndSwapPointer(ptr, from.Version); err != nil {
				return err
			}
			res.To = positionOf(ptr)
			res.ActiveSeries = series
			res.ActivePhase = next
			return nil
		}

		sales := SellThrough{Sold: series.SoldItems, Total: series.TotalItems}
		rate := sales.Rate()
		series.Status = models.StatusCompleted
		series.EndedAt = &now
		series.SellThroughRate = &rate
		if err := tx.SaveSeries(series); err != nil {
			return err
		}
		res.CompletedSeries = series
		res.SeriesRolled = true

		if series.Number >= models.SeriesCount {
			ptr.Exhausted = true
			if err := tx.CompareAndSwapPointer(ptr, from.Version); err != nil {
				return err
			}
			res.To = positionOf(ptr)
			res.Exhausted = true
			return nil
		}

		nextSeries, err := tx.SeriesByNumber(series.Number + 1)
		if err != nil {
			return err
		}
		if nextSeries.Status != models.StatusPending {
			return conflictError("roster_corrupt", "series %d is %s, expected PENDING", nextSeries.Number, nextSeries.Status)
		}
		nextSeries.Multiplier = NextSeriesMultiplier(nextSeries.Number, sales)
		nextSeries.Status = models.StatusActive
		nextSeries.StartedAt = &now
		if err := tx.SaveSeries(nextSeries); err != nil {
			return err
		}
		first, err := pendingPhase(tx, nextSeries.Number, 1)
		if err != nil {
			return err
		}
		activatePhase(first, now)
		if err := tx.SavePhase(first); err != nil {
			return err
		}

		ptr.SeriesNumber = nextSeries.Number
		ptr.PhaseNumber = first.Number
		if err := tx.CompareAndSwapPointer(ptr, from.Version); err != nil {
			return err
		}
		res.To = positionOf(ptr)
		res.ActiveSeries = nextSeries
		res.ActivePhase = first
		return nil
	})
	if err != nil {
		c.record("advance", err)
		return nil, err
	}

	c.emitAdvance(ctx, now, res)
	if res.Exhausted {
		c.record("advance", ErrLifecycleExhausted)
		metrics.SetPosition(0, 0, false)
		return res, conflictError(ErrLifecycleExhausted.Code,
			"series %d completed; no further series or phase can be activated", res.CompletedSeries.Number)
	}
	c.record("advance", nil)
	metrics.SetPosition(res.To.SeriesNumber, res.To.PhaseNumber, false)
	return res, nil
}

func (c *LifecycleController) emitAdvance(ctx context.Context, now time.Time, res *AdvanceResult) {
	e := c.event(ctx, EventPhaseAdvanced, now, res.To)
	e.Data = map[string]interface{}{
		"from_series":       res.From.SeriesNumber,
		"from_phase":        res.From.PhaseNumber,
		"paused_duration_s": int64(res.CompletedPhase.PausedDuration / time.Second),
	}
	c.telemetry.Emit(e)

	if res.CompletedSeries != nil {
		done := c.event(ctx, EventSeriesCompleted, now, res.To)
		done.SeriesNumber = res.CompletedSeries.Number
		done.PhaseNumber = 0
		done.Data = map[string]interface{}{
			"sell_through_rate": res.CompletedSeries.SellThroughRate.String(),
			"sold_items":        res.CompletedSeries.SoldItems,
			"total_items":       res.CompletedSeries.TotalItems,
			"revenue":           res.CompletedSeries.Revenue.String(),
			"multiplier":        res.CompletedSeries.Multiplier.String(),
		}
		c.telemetry.Emit(done)
	}
	if res.Exhausted {
		c.telemetry.Emit(c.event(ctx, EventExhausted, now, res.To))
		return
	}
	if res.SeriesRolled && res.ActiveSeries != nil {
		act := c.event(ctx, EventSeriesActivated, now, res.To)
		act.Data = map[string]interface{}{
			"multiplier": res.ActiveSeries.Multiplier.String(),
			"baseline":   BaselineMultiplier(res.ActiveSeries.Number).String(),
		}
		c.telemetry.Emit(act)
	}
}

// Pause freezes the active phase's remaining time.
func (c *LifecycleController) Pause(ctx context.Context) (*PhaseState, error) {
	return c.togglePause(ctx, "pause", EventPhasePaused, pausePhase)
}

// Resume adds the paused interval to the phase's accumulated pause time.
func (c *LifecycleController) Resume(ctx context.Context) (*PhaseState, error) {
	return c.togglePause(ctx, "resume", EventPhaseResumed, resumePhase)
}

func (c *LifecycleController) togglePause(ctx context.Context, op, eventType string, apply func(*models.Phase, time.Time) error) (*PhaseState, error) {
	var state *PhaseState
	now := c.clock.Now()

	err := c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		ptr, err := c.lockActive(tx, nil)
		if err != nil {
			return err
		}
		_, phase, err := loadActivePair(tx, ptr)
		if err != nil {
			return err
		}
		if err := apply(phase, now); err != nil {
			return err
		}
		if err := tx.SavePhase(phase); err != nil {
			return err
		}
		if err := tx.CompareAndSwapPointer(ptr, ptr.Version); err != nil {
			return err
		}
		state = &PhaseState{
			Position:             positionOf(ptr),
			Phase:                *phase,
			TimeRemainingSeconds: int64(TimeRemaining(phase, now) / time.Second),
		}
		return nil
	})
	c.record(op, err)
	if err != nil {
		return nil, err
	}

	metrics.SetPosition(state.Position.SeriesNumber, state.Position.PhaseNumber, state.Phase.IsPaused)
	e := c.event(ctx, eventType, now, state.Position)
	e.Data = map[string]interface{}{
		"paused_duration_s":      int64(state.Phase.PausedDuration / time.Second),
		"time_remaining_seconds": state.TimeRemainingSeconds,
	}
	c.telemetry.Emit(e)
	return state, nil
}

// SetPhaseDuration sets the configured duration of phase number n (1..5)
// in every series where that phase has not completed yet.
func (c *LifecycleController) SetPhaseDuration(ctx context.Context, phaseNumber int, days float64) ([]models.Phase, error) {
	seconds, err := durationFromDays(days)
	if err != nil {
		c.record("set_phase_duration", err)
		return nil, err
	}
	if phaseNumber < 1 || phaseNumber > models.PhasesPerSeries {
		err := notFoundError("phase_not_found", "phase %d does not exist (valid: 1..%d)", phaseNumber, models.PhasesPerSeries)
		c.record("set_phase_duration", err)
		return nil, err
	}

	var updated []models.Phase
	var pos Position
	err = c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		ptr, err := tx.LockPointer()
		if err != nil {
			return err
		}
		phases, err := tx.PhasesByNumber(phaseNumber)
		if err != nil {
			return err
		}
		if len(phases) == 0 {
			return notFoundError("phase_not_found", "phase %d has not been created; initialize the lifecycle first", phaseNumber)
		}
		for i := range phases {
			if phases[i].Status == models.StatusCompleted {
				continue
			}
			phases[i].DurationSeconds = seconds
			if err := tx.SavePhase(&phases[i]); err != nil {
				return err
			}
			updated = append(updated, phases[i])
		}
		if len(updated) == 0 {
			return conflictError("phase_completed", "phase %d has already completed in every series", phaseNumber)
		}
		return c.touchPointer(tx, ptr, &pos)
	})
	c.record("set_phase_duration", err)
	if err != nil {
		return nil, err
	}

	e := c.event(ctx, EventPhaseDuration, c.clock.Now(), pos)
	e.PhaseNumber = phaseNumber
	e.Data = map[string]interface{}{"duration_seconds": seconds, "phases_updated": len(updated)}
	c.telemetry.Emit(e)
	return updated, nil
}

// SetSeriesPhaseDuration targets a single phase of a single series.
func (c *LifecycleController) SetSeriesPhaseDuration(ctx context.Context, seriesNumber, phaseNumber int, days float64) (*models.Phase, error) {
	seconds, err := durationFromDays(days)
	if err != nil {
		c.record("set_phase_duration", err)
		return nil, err
	}
	if seriesNumber < 1 || seriesNumber > models.SeriesCount || phaseNumber < 1 || phaseNumber > models.PhasesPerSeries {
		err := notFoundError("phase_not_found", "phase %d of series %d does not exist", phaseNumber, seriesNumber)
		c.record("set_phase_duration", err)
		return nil, err
	}

	var updated *models.Phase
	var pos Position
	err = c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		ptr, err := tx.LockPointer()
		if err != nil {
			return err
		}
		phase, err := tx.PhaseAt(seriesNumber, phaseNumber)
		if err != nil {
			return err
		}
		if phase.Status == models.StatusCompleted {
			return conflictError("phase_completed", "phase %d of series %d has already completed", phaseNumber, seriesNumber)
		}
		phase.DurationSeconds = seconds
		if err := tx.SavePhase(phase); err != nil {
			return err
		}
		updated = phase
		return c.touchPointer(tx, ptr, &pos)
	})
	c.record("set_phase_duration", err)
	if err != nil {
		return nil, err
	}

	e := c.event(ctx, EventPhaseDuration, c.clock.Now(), pos)
	e.SeriesNumber = seriesNumber
	e.PhaseNumber = phaseNumber
	e.Data = map[string]interface{}{"duration_seconds": seconds, "phases_updated": 1}
	c.telemetry.Emit(e)
	return updated, nil
}

// SetSeriesMultiplierGrowth stores the legacy ladder percentage (0..100).
func (c *LifecycleController) SetSeriesMultiplierGrowth(ctx context.Context, percent decimal.Decimal) (*models.LifecycleSettings, error) {
	if percent.IsNegative() || percent.GreaterThan(maxGrowthPercent) {
		err := validationError("invalid_percent", "series growth percent must be within [0,100], got %s", percent)
		c.record("set_series_growth", err)
		return nil, err
	}

	var saved *models.LifecycleSettings
	err := c.repo.Transaction(ctx, func(tx LifecycleTx) error {
		if err := c.ensureSettings(tx); err != nil {
			return err
		}
		settings, err := tx.Settings()
		if err != nil {
			return err
		}
		settings.SeriesGrowthPercent = percent
		if err := tx.SaveSettings(settings); err != nil {
			return err
		}
		saved = settings
		return nil
	})
	c.record("set_series_growth", err)
	if err != nil {
		return nil, err
	}

	e := NewLifecycleEvent(EventSeriesGrowth, c.clock.Now())
	e.Actor = actorFrom(ctx)
	e.Data = map[string]interface{}{"percent": percent.String()}
	c.telemetry.Emit(e)
	return saved, nil
}

// lockActive re-reads the pointer and checks it names an active pair.
func (c *LifecycleController) lockActive(tx LifecycleTx, expected *int64) (*models.LifecyclePointer, error) {
	ptr, err := tx.LockPointer()
	if err != nil {
		return nil, err
	}
	if ptr == nil {
		return nil, conflictError(ErrNoActivePhase.Code, "lifecycle has not been initialized")
	}
	if ptr.Exhausted {
		return nil, conflictError(ErrLifecycleExhausted.Code, "all %d series have completed", models.SeriesCount)
	}
	if expected != nil && *expected != ptr.Version {
		return nil, conflictError(ErrStaleVersion.Code, "lifecycle is at version %d, caller expected %d", ptr.Version, *expected)
	}
	if !ptr.HasActive() {
		return nil, conflictError(ErrNoActivePhase.Code, "no phase is active")
	}
	return ptr, nil
}

// touchPointer bumps the version after a configuration change so that
// pollers and optimistic callers observe it. No-op before initialization.
func (c *LifecycleController) touchPointer(tx LifecycleTx, ptr *models.LifecyclePointer, pos *Position) error {
	if ptr == nil {
		return nil
	}
	if err := tx.CompareAndSwapPointer(ptr, ptr.Version); err != nil {
		return err
	}
	*pos = positionOf(ptr)
	return nil
}

func loadActivePair(tx LifecycleTx, ptr *models.LifecyclePointer) (*models.Series, *models.Phase, error) {
	series, err := tx.SeriesByNumber(ptr.SeriesNumber)
	if err != nil {
		return nil, nil, err
	}
	phase, err := tx.PhaseAt(ptr.SeriesNumber, ptr.PhaseNumber)
	if err != nil {
		return nil, nil, err
	}
	if series.Status != models.StatusActive || phase.Status != models.StatusActive {
		return nil, nil, conflictError(ErrNoActivePhase.Code,
			"pointer names series %d (%s) / phase %d (%s), both must be ACTIVE",
			series.Number, series.Status, phase.Number, phase.Status)
	}
	return series, phase, nil
}

func pendingPhase(tx LifecycleTx, seriesNumber, phaseNumber int) (*models.Phase, error) {
	p, err := tx.PhaseAt(seriesNumber, phaseNumber)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusPending {
		return nil, conflictError("roster_corrupt", "phase %d of series %d is %s, expected PENDING", phaseNumber, seriesNumber, p.Status)
	}
	return p, nil
}

func activatePhase(p *models.Phase, now time.Time) {
	p.Status = models.StatusActive
	p.StartedAt = &now
	p.EndedAt = nil
	resetPause(p)
}

func durationFromDays(days float64) (int64, error) {
	if math.IsNaN(days) || math.IsInf(days, 0) || days <= 0 {
		return 0, validationError("invalid_duration", "duration must be a positive number of days")
	}
	seconds := int64(math.Round(days * secondsPerDay))
	if seconds < 1 {
		return 0, validationError("invalid_duration", "duration must be at least one second")
	}
	return seconds, nil
}

func positionOf(ptr *models.LifecyclePointer) Position {
	if ptr == nil {
		return Position{}
	}
	return Position{
		SeriesNumber: ptr.SeriesNumber,
		PhaseNumber:  ptr.PhaseNumber,
		Version:      ptr.Version,
		Exhausted:    ptr.Exhausted,
	}
}

func (c *LifecycleController) event(ctx context.Context, eventType string, at time.Time, pos Position) LifecycleEvent {
	e := NewLifecycleEvent(eventType, at)
	e.Actor = actorFrom(ctx)
	e.SeriesNumber = pos.SeriesNumber
	e.PhaseNumber = pos.PhaseNumber
	e.Version = pos.Version
	return e
}

func (c *LifecycleController) record(op string, err error) {
	if err == nil {
		metrics.LifecycleOp(op, "ok")
		return
	}
	metrics.LifecycleOp(op, CodeOf(err))
}
