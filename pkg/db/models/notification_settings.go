package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationSettings holds a user's per-channel delivery preferences.
type NotificationSettings struct {
	ID            uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID        uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	NewFinding    bool      `gorm:"column:notify_new_finding;not null;default:true"`
	StatusChange  bool      `gorm:"column:notify_status_change;not null;default:true"`
	Assignment    bool      `gorm:"column:notify_assignment;not null;default:true"`
	DailySummary  bool      `gorm:"column:daily_summary;not null;default:false"`
	WeeklySummary bool      `gorm:"column:weekly_summary;not null;default:true"`
	// DailySummaryTime is the local "HH:MM" the user wants digests at.
	DailySummaryTime string `gorm:"column:daily_summary_time;type:text;not null;default:09:00"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName pins the plural-breaking table name.
func (NotificationSettings) TableName() string {
	return "notification_settings"
}
