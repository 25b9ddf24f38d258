package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LifecycleStatus is shared by Series and Phase rows. Rows only ever move
// PENDING → ACTIVE → COMPLETED.
type LifecycleStatus string

const (
	StatusPending   LifecycleStatus = "PENDING"
	StatusActive    LifecycleStatus = "ACTIVE"
	StatusCompleted LifecycleStatus = "COMPLETED"
)

// Fixed marketplace layout.
const (
	SeriesCount     = 4
	PhasesPerSeries = 5
)

// Series is one of the four promotional generations.
type Series struct {
	ID              uint             `json:"id" gorm:"primaryKey"`
	Number          int              `json:"number" gorm:"uniqueIndex;not null"`
	Status          LifecycleStatus  `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	// Multiplier is zero while PENDING and fixed when the series activates.
	Multiplier      decimal.Decimal  `json:"multiplier" gorm:"type:numeric(10,4);not null"`
	StartedAt       *time.Time       `json:"started_at,omitempty"`
	EndedAt         *time.Time       `json:"ended_at,omitempty"`
	TotalItems      int64            `json:"total_items" gorm:"not null;default:0"`
	SoldItems       int64            `json:"sold_items" gorm:"not null;default:0"`
	SellThroughRate *decimal.Decimal `json:"sell_through_rate,omitempty" gorm:"type:numeric(6,4)"`
	Revenue         decimal.Decimal  `json:"revenue" gorm:"type:numeric(20,4);not null;default:0"`
	CreatedAt       time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time        `json:"updated_at" gorm:"autoUpdateTime"`

	Phases []Phase `json:"phases,omitempty" gorm:"foreignKey:SeriesID"`
}

// Phase is one of the five timed sub-periods of a Series.
type Phase struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	SeriesID        uint            `json:"series_id" gorm:"not null;index"`
	SeriesNumber    int             `json:"series_number" gorm:"not null;uniqueIndex:idx_phase_position"`
	Number          int             `json:"number" gorm:"not null;uniqueIndex:idx_phase_position"`
	Status          LifecycleStatus `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	DurationSeconds int64           `json:"duration_seconds" gorm:"not null"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
	IsPaused        bool            `json:"is_paused" gorm:"not null;default:false"`
	PausedAt        *time.Time      `json:"paused_at,omitempty"`
	PausedDuration  time.Duration   `json:"paused_duration_ns" gorm:"not null;default:0"`
	TotalItems      int64           `json:"total_items" gorm:"not null;default:0"`
	SoldItems       int64           `json:"sold_items" gorm:"not null;default:0"`
	CreatedAt       time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// ConfiguredDuration converts the stored seconds into a time.Duration.
func (p *Phase) ConfiguredDuration() time.Duration {
	return time.Duration(p.DurationSeconds) * time.Second
}

// LifecyclePointerID is the primary key of the single pointer row.
const LifecyclePointerID = 1

// LifecyclePointer names the active Series/Phase. Version is bumped by every
// mutating transaction and doubles as the optimistic concurrency token.
type LifecyclePointer struct {
	ID           uint      `json:"-" gorm:"primaryKey"`
	SeriesNumber int       `json:"series_number" gorm:"not null;default:0"`
	PhaseNumber  int       `json:"phase_number" gorm:"not null;default:0"`
	Version      int64     `json:"version" gorm:"not null;default:0"`
	Exhausted    bool      `json:"exhausted" gorm:"not null;default:false"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// HasActive reports whether the pointer currently names an ACTIVE pair.
func (p *LifecyclePointer) HasActive() bool {
	return p != nil && !p.Exhausted && p.SeriesNumber > 0 && p.PhaseNumber > 0
}
