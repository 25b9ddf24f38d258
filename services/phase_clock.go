package services

import (
	"time"

	"collectible-admin-system/models"

	"github.com/jonboulle/clockwork"
)

// PhaseClock derives the remaining time of a phase. It never mutates and
// never advances the lifecycle on expiry.
type PhaseClock struct {
	clock clockwork.Clock
}

func NewPhaseClock(clock clockwork.Clock) PhaseClock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return PhaseClock{clock: clock}
}

// TimeRemaining is floored at zero.
func (c PhaseClock) TimeRemaining(p *models.Phase) time.Duration {
	return TimeRemaining(p, c.clock.Now())
}

// Deadline is the effective wall-clock end of the phase, paused time included.
// While paused the deadline keeps moving, so it is reported as of now.
func (c PhaseClock) Deadline(p *models.Phase) *time.Time {
	if p == nil || p.StartedAt == nil || p.Status != models.StatusActive {
		return nil
	}
	now := c.clock.Now()
	d := now.Add(TimeRemaining(p, now))
	return &d
}

// Expired reports whether an active, unpaused phase has used up its duration.
func (c PhaseClock) Expired(p *models.Phase) bool {
	return p != nil && p.Status == models.StatusActive && !p.IsPaused && c.TimeRemaining(p) == 0
}

// TimeRemaining computes the remaining time at a given instant:
//
//	end = start + configured
//	paused:   end + pausedTotal - pausedAt
//	running:  end + pausedTotal - now
//
// pausedTotal only holds closed pause windows, so the first pause reduces
// to end - pausedAt.
//
// Pending phases report their full configured duration, completed ones zero.
func TimeRemaining(p *models.Phase, now time.Time) time.Duration {
	if p == nil {
		return 0
	}
	switch p.Status {
	case models.StatusPending:
		return p.ConfiguredDuration()
	case models.StatusCompleted:
		return 0
	}
	if p.StartedAt == nil {
		return p.ConfiguredDuration()
	}

	end := p.StartedAt.Add(p.ConfiguredDuration())
	var remaining time.Duration
	if p.IsPaused && p.PausedAt != nil {
		remaining = end.Add(p.PausedDuration).Sub(*p.PausedAt)
	} else {
		remaining = end.Add(p.PausedDuration).Sub(now)
	}
	if remaining < 0 {
		return 0
	}
	return remaining
}
