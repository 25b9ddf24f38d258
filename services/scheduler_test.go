package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickWaitsForExpiry(t *testing.T) {
	f := initialized(t)
	adv := NewAutoAdvancer(f.ctrl, time.Minute)

	f.clock.Advance(testPhaseDuration - time.Second)
	moved, err := adv.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)

	f.clock.Advance(time.Second)
	moved, err = adv.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, moved)

	pos, err := f.ctrl.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, pos.SeriesNumber)
	assert.Equal(t, 2, pos.PhaseNumber)
}

func TestTickSkipsPausedPhase(t *testing.T) {
	f := initialized(t)
	ctx := context.Background()
	adv := NewAutoAdvancer(f.ctrl, time.Minute)

	f.clock.Advance(time.Hour)
	_, err := f.ctrl.Pause(ctx)
	require.NoError(t, err)
	f.clock.Advance(2 * testPhaseDuration)

	moved, err := adv.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = f.ctrl.Resume(ctx)
	require.NoError(t, err)
	moved, err = adv.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, moved, "resume pushes the deadline out by the paused time")
}

func TestTickBeforeInitializeAndAfterExhaustion(t *testing.T) {
	f := newFixture(t)
	adv := NewAutoAdvancer(f.ctrl, time.Minute)

	moved, err := adv.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)

	_, err = f.ctrl.Initialize(context.Background())
	require.NoError(t, err)
	f.advanceN(t, 19)

	f.clock.Advance(testPhaseDuration)
	moved, err = adv.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, moved, "the last phase expiring exhausts the lifecycle")
	assert.Contains(t, f.telemetry.types(), EventExhausted)

	f.clock.Advance(testPhaseDuration)
	moved, err = adv.Tick(context.Background())
	require.NoError(t, err)
	assert.False(t, moved)
}
