package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/safetrackhq/safetrack-backend/pkg/enums"
)

// User represents the canonical identity entity.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TelegramID   *int64     `gorm:"column:telegram_id;uniqueIndex"`
	StaffID      *string    `gorm:"column:staff_id;type:text;uniqueIndex"`
	Username     *string    `gorm:"column:username;type:text"`
	FullName     string     `gorm:"column:full_name;not null"`
	Department   *string    `gorm:"column:department;type:text"`
	Section      *string    `gorm:"column:section;type:text"`
	PasswordHash *string    `gorm:"column:password_hash;type:text"`
	Role         enums.Role `gorm:"column:role;type:user_role;not null;default:reporter"`
	IsActive     bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt  *time.Time `gorm:"column:last_login_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
