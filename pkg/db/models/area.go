package models

import (
	"time"

	"github.com/google/uuid"
)

// Area is a node in the site location hierarchy. Roots sit at level 0.
type Area struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string     `gorm:"type:text;not null"`
	Description *string    `gorm:"type:text"`
	ParentID    *uuid.UUID `gorm:"column:parent_id;type:uuid;index"`
	Level       int        `gorm:"column:level;not null;default:0"`
	IsActive    bool       `gorm:"column:is_active;not null;default:true"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
