package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"collectible-admin-system/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LifecycleRepository is the storage boundary of the lifecycle engine.
// Mutations run inside Transaction; a returned error rolls everything back.
type LifecycleRepository interface {
	Transaction(ctx context.Context, fn func(tx LifecycleTx) error) error
	// ReadSnapshot loads pointer, roster and settings from one consistent read.
	ReadSnapshot(ctx context.Context) (*Snapshot, error)
}

// LifecycleTx is the set of row operations available inside a transaction.
type LifecycleTx interface {
	// LockPointer re-reads the pointer row, locking it where the database
	// supports row locks. Returns nil, nil before initialization.
	LockPointer() (*models.LifecyclePointer, error)
	// CompareAndSwapPointer writes the pointer only if its version is still
	// expected, bumping Version. Losing the race yields ErrStaleVersion.
	CompareAndSwapPointer(p *models.LifecyclePointer, expected int64) error
	CreatePointer(p *models.LifecyclePointer) error

	SeriesByNumber(number int) (*models.Series, error)
	PhaseAt(seriesNumber, phaseNumber int) (*models.Phase, error)
	PhasesByNumber(phaseNumber int) ([]models.Phase, error)
	SaveSeries(s *models.Series) error
	SavePhase(p *models.Phase) error
	CreateRoster(series []models.Series) error

	Settings() (*models.LifecycleSettings, error)
	SaveSettings(s *models.LifecycleSettings) error
}

// Snapshot is a read-only copy of the full lifecycle state.
type Snapshot struct {
	Pointer  *models.LifecyclePointer
	Series   []models.Series
	Settings *models.LifecycleSettings
}

// ActiveSeries returns the series named by the pointer, if any.
func (s *Snapshot) ActiveSeries() *models.Series {
	if !s.Pointer.HasActive() {
		return nil
	}
	for i := range s.Series {
		if s.Series[i].Number == s.Pointer.SeriesNumber {
			return &s.Series[i]
		}
	}
	return nil
}

// ActivePhase returns the phase named by the pointer, if any.
func (s *Snapshot) ActivePhase() *models.Phase {
	series := s.ActiveSeries()
	if series == nil {
		return nil
	}
	for i := range series.Phases {
		if series.Phases[i].Number == s.Pointer.PhaseNumber {
			return &series.Phases[i]
		}
	}
	return nil
}

// LastCompletedSeries returns the highest-numbered completed series.
func (s *Snapshot) LastCompletedSeries() *models.Series {
	var last *models.Series
	for i := range s.Series {
		if s.Series[i].Status == models.StatusCompleted && (last == nil || s.Series[i].Number > last.Number) {
			last = &s.Series[i]
		}
	}
	return last
}

// Consistent reports whether the pointer and the rows agree: an active
// pointer must name a series and phase that are both ACTIVE.
func (s *Snapshot) Consistent() bool {
	if !s.Pointer.HasActive() {
		return true
	}
	series, phase := s.ActiveSeries(), s.ActivePhase()
	return series != nil && phase != nil &&
		series.Status == models.StatusActive && phase.Status == models.StatusActive
}

// snapshotAttempts bounds how often a torn read is retried.
const snapshotAttempts = 3

// readSnapshot reads until pointer and rows agree. A store that keeps
// returning torn reads yields ErrTornSnapshot.
func readSnapshot(ctx context.Context, repo LifecycleRepository) (*Snapshot, error) {
	for attempt := 1; ; attempt++ {
		snap, err := repo.ReadSnapshot(ctx)
		if err != nil {
			return nil, err
		}
		if snap.Consistent() {
			return snap, nil
		}
		if attempt == snapshotAttempts {
			return nil, conflictError(ErrTornSnapshot.Code,
				"pointer %d/%d does not match the stored roster", snap.Pointer.SeriesNumber, snap.Pointer.PhaseNumber)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
}

// GormLifecycleRepository implements LifecycleRepository on gorm.
type GormLifecycleRepository struct {
	DB *gorm.DB
}

func NewGormLifecycleRepository(db *gorm.DB) *GormLifecycleRepository {
	return &GormLifecycleRepository{DB: db}
}

// AutoMigrate creates the lifecycle tables.
func (r *GormLifecycleRepository) AutoMigrate() error {
	return r.DB.AutoMigrate(
		&models.Series{},
		&models.Phase{},
		&models.LifecyclePointer{},
		&models.LifecycleSettings{},
	)
}

func (r *GormLifecycleRepository) Transaction(ctx context.Context, fn func(tx LifecycleTx) error) error {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormLifecycleTx{db: tx})
	})
	return persistenceError("lifecycle transaction", err)
}

// ReadSnapshot runs its three reads in one read-only transaction. On
// postgres it asks for REPEATABLE READ so all reads share one MVCC view.
func (r *GormLifecycleRepository) ReadSnapshot(ctx context.Context) (*Snapshot, error) {
	opts := &sql.TxOptions{ReadOnly: true}
	if r.DB.Dialector.Name() == "postgres" {
		opts.Isolation = sql.LevelRepeatableRead
	}

	var snap Snapshot
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ptr models.LifecyclePointer
		err := tx.Where("id = ?", models.LifecyclePointerID).First(&ptr).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			snap.Pointer = &models.LifecyclePointer{ID: models.LifecyclePointerID}
		case err != nil:
			return err
		default:
			snap.Pointer = &ptr
		}

		if err := tx.Preload("Phases", func(db *gorm.DB) *gorm.DB {
			return db.Order("number ASC")
		}).Order("number ASC").Find(&snap.Series).Error; err != nil {
			return err
		}

		settings, err := (&gormLifecycleTx{db: tx}).Settings()
		if err != nil {
			return err
		}
		snap.Settings = settings
		return nil
	}, opts)
	if err != nil {
		return nil, persistenceError("read lifecycle snapshot", err)
	}
	return &snap, nil
}

type gormLifecycleTx struct {
	db *gorm.DB
}

func (t *gormLifecycleTx) LockPointer() (*models.LifecyclePointer, error) {
	var ptr models.LifecyclePointer
	err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", models.LifecyclePointerID).
		First(&ptr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock lifecycle pointer: %w", err)
	}
	return &ptr, nil
}

func (t *gormLifecycleTx) CompareAndSwapPointer(p *models.LifecyclePointer, expected int64) error {
	result := t.db.Model(&models.LifecyclePointer{}).
		Where("id = ? AND version = ?", models.LifecyclePointerID, expected).
		Updates(map[string]interface{}{
			"series_number": p.SeriesNumber,
			"phase_number":  p.PhaseNumber,
			"exhausted":     p.Exhausted,
			"version":       expected + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update lifecycle pointer: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return conflictError(ErrStaleVersion.Code, "lifecycle changed concurrently (expected version %d)", expected)
	}
	p.Version = expected + 1
	return nil
}

func (t *gormLifecycleTx) CreatePointer(p *models.LifecyclePointer) error {
	p.ID = models.LifecyclePointerID
	if err := t.db.Create(p).Error; err != nil {
		return fmt.Errorf("failed to create lifecycle pointer: %w", err)
	}
	return nil
}

func (t *gormLifecycleTx) SeriesByNumber(number int) (*models.Series, error) {
	var s models.Series
	err := t.db.Where("number = ?", number).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("series_not_found", "series %d does not exist", number)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load series %d: %w", number, err)
	}
	return &s, nil
}

func (t *gormLifecycleTx) PhaseAt(seriesNumber, phaseNumber int) (*models.Phase, error) {
	var p models.Phase
	err := t.db.Where("series_number = ? AND number = ?", seriesNumber, phaseNumber).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFoundError("phase_not_found", "phase %d of series %d does not exist", phaseNumber, seriesNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load phase %d/%d: %w", seriesNumber, phaseNumber, err)
	}
	return &p, nil
}

func (t *gormLifecycleTx) PhasesByNumber(phaseNumber int) ([]models.Phase, error) {
	var phases []models.Phase
	if err := t.db.Where("number = ?", phaseNumber).Order("series_number ASC").Find(&phases).Error; err != nil {
		return nil, fmt.Errorf("failed to load phases numbered %d: %w", phaseNumber, err)
	}
	return phases, nil
}

func (t *gormLifecycleTx) SaveSeries(s *models.Series) error {
	if err := t.db.Save(s).Error; err != nil {
		return fmt.Errorf("failed to save series %d: %w", s.Number, err)
	}
	return nil
}

func (t *gormLifecycleTx) SavePhase(p *models.Phase) error {
	if err := t.db.Save(p).Error; err != nil {
		return fmt.Errorf("failed to save phase %d/%d: %w", p.SeriesNumber, p.Number, err)
	}
	return nil
}

// CreateRoster inserts series first, then their phases with SeriesID set.
func (t *gormLifecycleTx) CreateRoster(series []models.Series) error {
	for i := range series {
		phases := series[i].Phases
		series[i].Phases = nil
		if err := t.db.Create(&series[i]).Error; err != nil {
			return fmt.Errorf("failed to create series %d: %w", series[i].Number, err)
		}
		for j := range phases {
			phases[j].SeriesID = series[i].ID
		}
		if err := t.db.Create(&phases).Error; err != nil {
			return fmt.Errorf("failed to create phases of series %d: %w", series[i].Number, err)
		}
		series[i].Phases = phases
	}
	return nil
}

func (t *gormLifecycleTx) Settings() (*models.LifecycleSettings, error) {
	var s models.LifecycleSettings
	err := t.db.Where("id = ?", models.LifecycleSettingsID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load lifecycle settings: %w", err)
	}
	return &s, nil
}

func (t *gormLifecycleTx) SaveSettings(s *models.LifecycleSettings) error {
	s.ID = models.LifecycleSettingsID
	if err := t.db.Save(s).Error; err != nil {
		return fmt.Errorf("failed to save lifecycle settings: %w", err)
	}
	return nil
}
