package services

import (
	"time"

	"collectible-admin-system/models"
)

// Pause accounting. These helpers only touch the in-memory row; callers
// persist it inside the same transaction that validated the phase.

func pausePhase(p *models.Phase, now time.Time) error {
	if p.IsPaused {
		return conflictError(ErrAlreadyPaused.Code, "phase %d of series %d is already paused", p.Number, p.SeriesNumber)
	}
	p.IsPaused = true
	p.PausedAt = &now
	return nil
}

func resumePhase(p *models.Phase, now time.Time) error {
	if !p.IsPaused {
		return conflictError(ErrNotPaused.Code, "phase %d of series %d is not paused", p.Number, p.SeriesNumber)
	}
	settlePause(p, now)
	return nil
}

// settlePause folds an open pause window into PausedDuration and clears it.
// A missing PausedAt (corrupt row) just clears the flag.
func settlePause(p *models.Phase, now time.Time) {
	if p.IsPaused && p.PausedAt != nil {
		if d := now.Sub(*p.PausedAt); d > 0 {
			p.PausedDuration += d
		}
	}
	p.IsPaused = false
	p.PausedAt = nil
}

// resetPause gives a freshly activated phase a clean pause history.
func resetPause(p *models.Phase) {
	p.IsPaused = false
	p.PausedAt = nil
	p.PausedDuration = 0
}
