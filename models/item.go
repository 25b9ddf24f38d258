// models/item.go
package models

import (
	"time"
)

// Item mirrors an inventory record owned by the inventory service.
// Only the fields pricing needs are kept; price is computed on read.
// Table name: items
type Item struct {
	ID        string    `gorm:"primaryKey;type:varchar(64);not null" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Category  string    `gorm:"type:varchar(64);not null;default:'';index" json:"category"`
	Score     int       `gorm:"not null" json:"score"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;index" json:"updated_at"`
}
