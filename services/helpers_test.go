package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"collectible-admin-system/config"
	"collectible-admin-system/models"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testEpoch = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

const testPhaseDuration = 7 * 24 * time.Hour

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, NewGormLifecycleRepository(db).AutoMigrate())
	require.NoError(t, db.AutoMigrate(&models.Item{}))
	return db
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []LifecycleEvent
}

func (r *recordingTelemetry) Emit(e LifecycleEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTelemetry) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recordingTelemetry) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

type fixture struct {
	db        *gorm.DB
	repo      *GormLifecycleRepository
	clock     *clockwork.FakeClock
	telemetry *recordingTelemetry
	ctrl      *LifecycleController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:        db,
		repo:      NewGormLifecycleRepository(db),
		clock:     clockwork.NewFakeClockAt(testEpoch),
		telemetry: &recordingTelemetry{},
	}
	f.ctrl = NewLifecycleController(f.repo, LifecycleDefaults{
		PhaseDuration:     testPhaseDuration,
		BasePricePerPoint: decimal.RequireFromString("0.10"),
	}, WithClock(f.clock), WithTelemetry(f.telemetry))
	return f
}

// initialized returns a fixture with the roster seeded.
func initialized(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	_, err := f.ctrl.Initialize(context.Background())
	require.NoError(t, err)
	return f
}

// advanceN advances n times, requiring success.
func (f *fixture) advanceN(t *testing.T, n int) *AdvanceResult {
	t.Helper()
	var res *AdvanceResult
	for i := 0; i < n; i++ {
		var err error
		res, err = f.ctrl.Advance(context.Background())
		require.NoError(t, err, "advance #%d", i+1)
	}
	return res
}

func (f *fixture) status(t *testing.T) *StatusReport {
	t.Helper()
	s, err := f.ctrl.Status(context.Background())
	require.NoError(t, err)
	return s
}

func defaultClassifier(t *testing.T) *TierClassifier {
	t.Helper()
	c, err := NewTierClassifier(config.DefaultTierTable())
	require.NoError(t, err)
	return c
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
