package services

import (
	"testing"
	"time"

	"collectible-admin-system/models"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activePhase(start time.Time, d time.Duration) *models.Phase {
	return &models.Phase{
		SeriesNumber:    1,
		Number:          1,
		Status:          models.StatusActive,
		DurationSeconds: int64(d / time.Second),
		StartedAt:       &start,
	}
}

func TestTimeRemainingByStatus(t *testing.T) {
	p := activePhase(testEpoch, 48*time.Hour)

	assert.Equal(t, 48*time.Hour, TimeRemaining(p, testEpoch))
	assert.Equal(t, 47*time.Hour, TimeRemaining(p, testEpoch.Add(time.Hour)))
	assert.Equal(t, time.Duration(0), TimeRemaining(p, testEpoch.Add(72*time.Hour)), "floored at zero")

	p.Status = models.StatusPending
	assert.Equal(t, 48*time.Hour, TimeRemaining(p, testEpoch.Add(time.Hour)))

	p.Status = models.StatusCompleted
	assert.Equal(t, time.Duration(0), TimeRemaining(p, testEpoch))

	assert.Equal(t, time.Duration(0), TimeRemaining(nil, testEpoch))
}

func TestPauseHelpers(t *testing.T) {
	p := activePhase(testEpoch, 10*time.Hour)

	require.NoError(t, pausePhase(p, testEpoch.Add(time.Hour)))
	assert.ErrorIs(t, pausePhase(p, testEpoch.Add(2*time.Hour)), ErrAlreadyPaused)
	assert.Equal(t, 9*time.Hour, TimeRemaining(p, testEpoch.Add(5*time.Hour)))

	require.NoError(t, resumePhase(p, testEpoch.Add(3*time.Hour)))
	assert.ErrorIs(t, resumePhase(p, testEpoch.Add(3*time.Hour)), ErrNotPaused)
	assert.Equal(t, 2*time.Hour, p.PausedDuration)
	assert.Equal(t, 9*time.Hour, TimeRemaining(p, testEpoch.Add(3*time.Hour)))

	// second window keeps the deadline where the first resume left it
	require.NoError(t, pausePhase(p, testEpoch.Add(4*time.Hour)))
	assert.Equal(t, 8*time.Hour, TimeRemaining(p, testEpoch.Add(6*time.Hour)))

	resetPause(p)
	assert.False(t, p.IsPaused)
	assert.Nil(t, p.PausedAt)
	assert.Equal(t, time.Duration(0), p.PausedDuration)
}

func TestSettlePauseIgnoresMissingTimestamp(t *testing.T) {
	p := activePhase(testEpoch, time.Hour)
	p.IsPaused = true

	settlePause(p, testEpoch.Add(time.Minute))
	assert.False(t, p.IsPaused)
	assert.Equal(t, time.Duration(0), p.PausedDuration)
}

func TestPhaseClockDeadlineAndExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(testEpoch)
	pc := NewPhaseClock(clock)
	p := activePhase(testEpoch, 2*time.Hour)

	require.NotNil(t, pc.Deadline(p))
	assert.True(t, pc.Deadline(p).Equal(testEpoch.Add(2*time.Hour)))
	assert.False(t, pc.Expired(p))

	clock.Advance(2 * time.Hour)
	assert.True(t, pc.Expired(p))

	require.NoError(t, pausePhase(p, clock.Now()))
	assert.False(t, pc.Expired(p), "a paused phase never counts as expired")

	p.Status = models.StatusCompleted
	assert.Nil(t, pc.Deadline(p))
}
