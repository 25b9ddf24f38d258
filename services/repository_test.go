package services

import (
	"context"
	"errors"
	"testing"

	"collectible-admin-system/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockRepository(t *testing.T) (*GormLifecycleRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return NewGormLifecycleRepository(db), mock
}

func TestReadSnapshotWrapsDatabaseFailure(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "lifecycle_pointers"`).WillReturnError(errors.New("connection reset by peer"))
	mock.ExpectRollback()

	_, err := repo.ReadSnapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Contains(t, err.Error(), "connection reset by peer")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionKeepsDomainErrorKind(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectRollback()

	err := repo.Transaction(context.Background(), func(tx LifecycleTx) error {
		return conflictError("phase_completed", "phase already completed")
	})
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.False(t, errors.Is(err, ErrPersistence))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompareAndSwapLosesOnZeroRows(t *testing.T) {
	repo, mock := newMockRepository(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "lifecycle_pointers"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transaction(context.Background(), func(tx LifecycleTx) error {
		return tx.CompareAndSwapPointer(&models.LifecyclePointer{SeriesNumber: 1, PhaseNumber: 2}, 3)
	})
	assert.ErrorIs(t, err, ErrStaleVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotBeforeInitialize(t *testing.T) {
	repo := NewGormLifecycleRepository(newTestDB(t))

	snap, err := repo.ReadSnapshot(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap.Pointer)
	assert.False(t, snap.Pointer.HasActive())
	assert.Empty(t, snap.Series)
	assert.Nil(t, snap.Settings)
	assert.Nil(t, snap.ActivePhase())
	assert.Nil(t, snap.LastCompletedSeries())
}

// tornRepository hands out snapshots whose pointer is one phase ahead of
// the rows, as a reader racing a commit at READ COMMITTED would see.
type tornRepository struct {
	*GormLifecycleRepository
	torn  int
	reads int
}

func (r *tornRepository) ReadSnapshot(ctx context.Context) (*Snapshot, error) {
	r.reads++
	snap, err := r.GormLifecycleRepository.ReadSnapshot(ctx)
	if err != nil || r.reads > r.torn {
		return snap, err
	}
	ahead := *snap.Pointer
	ahead.PhaseNumber++
	ahead.Version++
	snap.Pointer = &ahead
	return snap, nil
}

func newTornController(t *testing.T, torn int) (*LifecycleController, *tornRepository) {
	t.Helper()
	f := initialized(t)
	repo := &tornRepository{GormLifecycleRepository: f.repo, torn: torn}
	ctrl := NewLifecycleController(repo, LifecycleDefaults{
		PhaseDuration:     testPhaseDuration,
		BasePricePerPoint: dec("0.10"),
	}, WithClock(f.clock))
	return ctrl, repo
}

func TestSnapshotConsistency(t *testing.T) {
	f := initialized(t)
	snap, err := f.repo.ReadSnapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Consistent())

	snap.Pointer.PhaseNumber = 2
	assert.False(t, snap.Consistent(), "phase 2 is still PENDING")

	snap.Pointer.Exhausted = true
	assert.True(t, snap.Consistent())
}

func TestStatusRetriesTornSnapshot(t *testing.T) {
	ctrl, repo := newTornController(t, 2)

	report, err := ctrl.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, repo.reads)
	assert.Equal(t, 1, report.Position.SeriesNumber)
	assert.Equal(t, 1, report.Position.PhaseNumber)
	require.NotNil(t, report.ActivePhase)
	assert.Equal(t, models.StatusActive, report.ActivePhase.Status)
	assert.True(t, report.CurrentMultiplier.Equal(dec("1")))
}

func TestPersistentlyTornSnapshotIsAConflict(t *testing.T) {
	ctrl, repo := newTornController(t, 10)

	_, err := ctrl.Status(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTornSnapshot)
	assert.ErrorIs(t, err, ErrStateConflict)
	assert.Equal(t, snapshotAttempts, repo.reads)

	pricing := NewPricingService(repo.DB, repo, newTestCalculator(t), dec("0.10"))
	_, err = pricing.Quote(context.Background(), 400, "")
	assert.ErrorIs(t, err, ErrTornSnapshot)
}
