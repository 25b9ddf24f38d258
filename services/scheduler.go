// services/scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

// AutoAdvancer closes phases whose time ran out. The phase clock itself
// never advances anything; this job is the only automatic caller.
type AutoAdvancer struct {
	Controller *LifecycleController
	Interval   time.Duration
	sched      gocron.Scheduler
}

func NewAutoAdvancer(ctrl *LifecycleController, interval time.Duration) *AutoAdvancer {
	return &AutoAdvancer{Controller: ctrl, Interval: interval}
}

// Start registers the expiry check as a singleton duration job.
func (a *AutoAdvancer) Start() error {
	sched, err := gocron.NewScheduler(gocron.WithClock(a.Controller.Clock()))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(a.Interval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), a.Interval)
			defer cancel()
			if _, err := a.Tick(ctx); err != nil {
				log.Error().Err(err).Str("component", "scheduler").Msg("❌ auto-advance check failed")
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to register auto-advance job: %w", err)
	}

	sched.Start()
	a.sched = sched
	log.Info().Str("component", "scheduler").Dur("interval", a.Interval).Msg("✅ auto-advance scheduler running")
	return nil
}

// Stop shuts the scheduler down and waits for a running check.
func (a *AutoAdvancer) Stop() error {
	if a.sched == nil {
		return nil
	}
	return a.sched.Shutdown()
}

// Tick advances once if the active phase is unpaused and expired.
// Losing the race to another caller is not an error.
func (a *AutoAdvancer) Tick(ctx context.Context) (bool, error) {
	status, err := a.Controller.Status(ctx)
	if err != nil {
		return false, err
	}
	if status.ActivePhase == nil || status.Paused || !status.Expired {
		return false, nil
	}

	res, err := a.Controller.AdvanceFrom(ctx, status.Position.Version)
	switch {
	case errors.Is(err, ErrLifecycleExhausted) && res != nil:
		log.Info().Str("component", "scheduler").Int("series", res.From.SeriesNumber).
			Msg("🏁 final phase expired, lifecycle exhausted")
		return true, nil
	case errors.Is(err, ErrStaleVersion), errors.Is(err, ErrLifecycleExhausted), errors.Is(err, ErrNoActivePhase):
		log.Debug().Err(err).Str("component", "scheduler").Msg("another caller advanced first")
		return false, nil
	case err != nil:
		return false, err
	}

	log.Info().Str("component", "scheduler").
		Int("from_series", res.From.SeriesNumber).Int("from_phase", res.From.PhaseNumber).
		Int("series", res.To.SeriesNumber).Int("phase", res.To.PhaseNumber).
		Msg("⏭️ expired phase auto-advanced")
	return true, nil
}
